package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// DefaultCacheTTL applies when CacheSet is called with a non-positive TTL.
const DefaultCacheTTL = time.Hour

const lastSyncKey = "last_sync"

// CacheSet stores a JSON-encoded value under key with an expiry.
func (db *DB) CacheSet(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return storageErr("encode cache value", err)
	}
	expiresAt := db.now().Add(ttl).UnixMilli()
	_, err = db.Exec(`
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at`,
		key, string(data), expiresAt)
	return storageErr("cache set", err)
}

// CacheGet loads the value stored under key into dest. It reports absent both
// when the key was never set and when the entry has expired; expired rows are
// deleted lazily.
func (db *DB) CacheGet(key string, dest any) (bool, error) {
	var data string
	var expiresAt int64
	err := db.QueryRow(`SELECT value, expires_at FROM cache WHERE key = ?`, key).
		Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("cache get", err)
	}
	if expiresAt > 0 && db.now().UnixMilli() > expiresAt {
		_, _ = db.Exec(`DELETE FROM cache WHERE key = ?`, key)
		return false, nil
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, storageErr("decode cache value", err)
	}
	return true, nil
}

// SetLastSync records the completion time of the most recent sync pass.
// The entry never expires.
func (db *DB) SetLastSync(t time.Time) error {
	data, _ := json.Marshal(t.UnixMilli())
	_, err := db.Exec(`
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`,
		lastSyncKey, string(data))
	return storageErr("set last sync", err)
}

// LastSync returns the recorded last sync time, if any.
func (db *DB) LastSync() (time.Time, bool, error) {
	var millis int64
	found, err := db.CacheGet(lastSyncKey, &millis)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis), true, nil
}
