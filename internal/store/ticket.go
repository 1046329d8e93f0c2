package store

import "encoding/json"

// UpsertTicket inserts or updates a ticket (idempotent on id).
func (db *DB) UpsertTicket(tk *Ticket) error {
	now := db.now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO tickets (id, company_id, title, description, priority, status, created_at, pending, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			pending = excluded.pending,
			synced = excluded.synced,
			updated_at = excluded.updated_at`,
		tk.ID, tk.CompanyID, tk.Title, tk.Description, tk.Priority, tk.Status, tk.CreatedAt, tk.Pending, tk.Synced, now)
	return storageErr("upsert ticket", err)
}

// ListTickets returns tickets for a company, newest first.
func (db *DB) ListTickets(companyID string, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, company_id, title, description, priority, status, created_at, pending, synced
		FROM tickets
		WHERE company_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, storageErr("list tickets", err)
	}
	defer func() { _ = rows.Close() }()

	var tickets []Ticket
	for rows.Next() {
		var tk Ticket
		if err := rows.Scan(&tk.ID, &tk.CompanyID, &tk.Title, &tk.Description, &tk.Priority, &tk.Status, &tk.CreatedAt, &tk.Pending, &tk.Synced); err != nil {
			return nil, storageErr("scan ticket", err)
		}
		tickets = append(tickets, tk)
	}
	return tickets, storageErr("list tickets", rows.Err())
}

// CreateLocalTicket inserts a pending ticket and its queue entry in one
// transaction.
func (db *DB) CreateLocalTicket(tk *Ticket, idempotencyKey string) error {
	payload, err := json.Marshal(TicketPayload{
		CompanyID:   tk.CompanyID,
		Title:       tk.Title,
		Description: tk.Description,
		Priority:    tk.Priority,
		CreatedAt:   tk.CreatedAt,
	})
	if err != nil {
		return storageErr("encode ticket payload", err)
	}

	now := db.now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return storageErr("create local ticket", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO tickets (id, company_id, title, description, priority, status, created_at, pending, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?)`,
		tk.ID, tk.CompanyID, tk.Title, tk.Description, tk.Priority, tk.Status, tk.CreatedAt, now); err != nil {
		return storageErr("insert local ticket", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO pending_ops (kind, target_id, local_id, idempotency_key, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		OpTicket, tk.CompanyID, tk.ID, idempotencyKey, string(payload), now); err != nil {
		return storageErr("enqueue ticket op", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("create local ticket", err)
	}
	tk.Pending = true
	tk.Synced = false
	return nil
}

// MarkTicketSynced atomically replaces a temp id with the server-issued id
// and removes the queue entry. Idempotent, and folds the temp row into an
// already-mirrored server copy rather than renaming onto it (see
// MarkMessageSynced).
func (db *DB) MarkTicketSynced(localID, serverID string) error {
	now := db.now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return storageErr("mark ticket synced", err)
	}
	defer func() { _ = tx.Rollback() }()

	var mirrored bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM tickets WHERE id = ?)`,
		serverID).Scan(&mirrored); err != nil {
		return storageErr("check mirrored ticket", err)
	}
	if mirrored && localID != serverID {
		if _, err := tx.Exec(`DELETE FROM tickets WHERE id = ?`, localID); err != nil {
			return storageErr("fold synced ticket", err)
		}
		if _, err := tx.Exec(`
			UPDATE tickets SET pending = 0, synced = 1, updated_at = ?
			WHERE id = ?`, now, serverID); err != nil {
			return storageErr("update synced ticket", err)
		}
	} else if _, err := tx.Exec(`
		UPDATE tickets SET id = ?, pending = 0, synced = 1, updated_at = ?
		WHERE id = ?`, serverID, now, localID); err != nil {
		return storageErr("update synced ticket", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM pending_ops WHERE kind = ? AND local_id = ?`,
		OpTicket, localID); err != nil {
		return storageErr("dequeue ticket op", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("mark ticket synced", err)
	}
	return nil
}
