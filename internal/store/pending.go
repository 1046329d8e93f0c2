package store

// PendingOps returns the full write queue ordered by sequence.
func (db *DB) PendingOps() ([]PendingOp, error) {
	rows, err := db.Query(`
		SELECT seq, kind, target_id, local_id, idempotency_key, payload, attempts, enqueued_at
		FROM pending_ops ORDER BY seq ASC`)
	if err != nil {
		return nil, storageErr("list pending ops", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []PendingOp
	for rows.Next() {
		var op PendingOp
		var payload string
		if err := rows.Scan(&op.Seq, &op.Kind, &op.TargetID, &op.LocalID, &op.IdempotencyKey, &payload, &op.Attempts, &op.EnqueuedAt); err != nil {
			return nil, storageErr("scan pending op", err)
		}
		op.Payload = []byte(payload)
		ops = append(ops, op)
	}
	return ops, storageErr("list pending ops", rows.Err())
}

// CountPending returns the number of queued operations.
func (db *DB) CountPending() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pending_ops`).Scan(&n)
	return n, storageErr("count pending ops", err)
}

// IncrementAttempts bumps the attempt counter for a queued operation and
// returns the new count.
func (db *DB) IncrementAttempts(seq int64) (int, error) {
	if _, err := db.Exec(`UPDATE pending_ops SET attempts = attempts + 1 WHERE seq = ?`, seq); err != nil {
		return 0, storageErr("increment attempts", err)
	}
	var n int
	err := db.QueryRow(`SELECT attempts FROM pending_ops WHERE seq = ?`, seq).Scan(&n)
	return n, storageErr("read attempts", err)
}

// AbandonOp removes a queued operation the backend permanently rejected and
// clears the pending flag on its local record, which stays local-only with
// synced=false so the UI can render it as undelivered.
func (db *DB) AbandonOp(op *PendingOp) error {
	table := "messages"
	if op.Kind == OpTicket {
		table = "tickets"
	}

	now := db.now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return storageErr("abandon op", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM pending_ops WHERE seq = ?`, op.Seq); err != nil {
		return storageErr("delete pending op", err)
	}
	if _, err := tx.Exec(
		"UPDATE "+table+" SET pending = 0, updated_at = ? WHERE id = ?",
		now, op.LocalID); err != nil {
		return storageErr("clear pending flag", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("abandon op", err)
	}
	return nil
}
