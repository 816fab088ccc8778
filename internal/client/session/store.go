package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zyx3721/ops-integrated-admin-console/internal/dbx"
)

// Durable storage keys for the persisted credential.
const (
	keyToken    = "ops_token"
	keyUsername = "ops_username"
	keyExpireAt = "ops_expire_at"
)

// Store persists the credential across process restarts.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}

// SQLiteStore keeps the credential in a local sqlite key/value table so a
// restarted client resumes its session.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) get(ctx context.Context, q dbx.DBTX, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, q dbx.DBTX, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func del(ctx context.Context, q dbx.DBTX, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// Load reads the persisted credential. Missing keys produce a zero
// credential; an unparsable expiry is treated as no expiry.
func (s *SQLiteStore) Load(ctx context.Context) (Credential, error) {
	var cred Credential

	token, err := s.get(ctx, s.db, keyToken)
	if err != nil {
		return cred, err
	}
	username, err := s.get(ctx, s.db, keyUsername)
	if err != nil {
		return cred, err
	}
	rawExpire, err := s.get(ctx, s.db, keyExpireAt)
	if err != nil {
		return cred, err
	}

	cred.Token = token
	cred.Username = username
	if rawExpire != "" {
		if t, parseErr := time.Parse(time.RFC3339, rawExpire); parseErr == nil {
			cred.ExpiresAt = t
		}
	}
	return cred, nil
}

// Save writes all credential keys in a single transaction. A zero expiry is
// stored as absence, not as an empty value.
func (s *SQLiteStore) Save(ctx context.Context, cred Credential) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := set(ctx, tx, keyToken, cred.Token); err != nil {
			return err
		}
		if err := set(ctx, tx, keyUsername, cred.Username); err != nil {
			return err
		}
		if cred.ExpiresAt.IsZero() {
			return del(ctx, tx, keyExpireAt)
		}
		return set(ctx, tx, keyExpireAt, cred.ExpiresAt.Format(time.RFC3339))
	})
}

// Clear removes every credential key atomically.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range []string{keyToken, keyUsername, keyExpireAt} {
			if err := del(ctx, tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
