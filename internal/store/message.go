package store

import "encoding/json"

// UpsertMessage inserts or updates a message (idempotent on id).
func (db *DB) UpsertMessage(m *Message) error {
	now := db.now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (id, chat_id, author_id, content, created_at, pending, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			pending = excluded.pending,
			synced = excluded.synced,
			updated_at = excluded.updated_at`,
		m.ID, m.ChatID, m.AuthorID, m.Content, m.CreatedAt, m.Pending, m.Synced, now)
	return storageErr("upsert message", err)
}

// ListMessages returns the most recent messages for a chat, oldest first.
// Equal timestamps are broken by insertion order (rowid), so two sends
// landing in the same millisecond keep their send order.
func (db *DB) ListMessages(chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, chat_id, author_id, content, created_at, pending, synced
		FROM (
			SELECT rowid AS rid, id, chat_id, author_id, content, created_at, pending, synced
			FROM messages
			WHERE chat_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, rid ASC`, chatID, limit)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.Pending, &m.Synced); err != nil {
			return nil, storageErr("scan message", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, storageErr("list messages", rows.Err())
}

// CreateLocalMessage inserts a pending message and its queue entry in one
// transaction, so a pending row and its operation are never observable apart.
func (db *DB) CreateLocalMessage(m *Message, idempotencyKey string) error {
	payload, err := json.Marshal(MessagePayload{
		ChatID:    m.ChatID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	})
	if err != nil {
		return storageErr("encode message payload", err)
	}

	now := db.now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return storageErr("create local message", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO messages (id, chat_id, author_id, content, created_at, pending, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, 0, ?)`,
		m.ID, m.ChatID, m.AuthorID, m.Content, m.CreatedAt, now); err != nil {
		return storageErr("insert local message", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO pending_ops (kind, target_id, local_id, idempotency_key, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		OpMessage, m.ChatID, m.ID, idempotencyKey, string(payload), now); err != nil {
		return storageErr("enqueue message op", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("create local message", err)
	}
	m.Pending = true
	m.Synced = false
	return nil
}

// MarkMessageSynced atomically replaces a temp id with the server-issued id,
// flips pending/synced, and removes the queue entry. Calling it again for an
// already-synced message is a no-op. When the server copy was already
// mirrored locally (a fetch raced the queue drain, or a redelivery was
// deduped by its idempotency key) the temp row is folded into the mirror
// instead of renamed, so the id swap never trips the primary key.
func (db *DB) MarkMessageSynced(localID, serverID string) error {
	now := db.now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return storageErr("mark message synced", err)
	}
	defer func() { _ = tx.Rollback() }()

	var mirrored bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM messages WHERE id = ?)`,
		serverID).Scan(&mirrored); err != nil {
		return storageErr("check mirrored message", err)
	}
	if mirrored && localID != serverID {
		if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, localID); err != nil {
			return storageErr("fold synced message", err)
		}
		if _, err := tx.Exec(`
			UPDATE messages SET pending = 0, synced = 1, updated_at = ?
			WHERE id = ?`, now, serverID); err != nil {
			return storageErr("update synced message", err)
		}
	} else if _, err := tx.Exec(`
		UPDATE messages SET id = ?, pending = 0, synced = 1, updated_at = ?
		WHERE id = ?`, serverID, now, localID); err != nil {
		return storageErr("update synced message", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM pending_ops WHERE kind = ? AND local_id = ?`,
		OpMessage, localID); err != nil {
		return storageErr("dequeue message op", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("mark message synced", err)
	}
	return nil
}
