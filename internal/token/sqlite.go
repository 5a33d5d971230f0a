package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists connection tokens in SQLite. The single-use
// guarantee rides on an update-if-unused statement, so it holds across
// processes sharing the database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS connection_tokens (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	used_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_connection_tokens_expires_at ON connection_tokens(expires_at);
`

// OpenSQLite opens (and migrates) the token database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open token database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping token database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate token database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, t Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connection_tokens (id, user_id, token_hash, created_at, expires_at, used, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.TokenHash, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), boolToInt(t.Used), nullableTime(t.UsedAt))
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	// Lazy sweep: expired rows are already dead, reclaim them on the write
	// path instead of running a background job.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM connection_tokens WHERE expires_at <= ?`, time.Now().UTC()); err != nil {
		return fmt.Errorf("sweep expired tokens: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetByHash(ctx context.Context, hash string) (Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, used, used_at
		FROM connection_tokens WHERE token_hash = ?
	`, hash)

	var t Token
	var used int
	var usedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &used, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("scan token: %w", err)
	}
	t.Used = used != 0
	if usedAt.Valid {
		at := usedAt.Time
		t.UsedAt = &at
	}
	return t, nil
}

// MarkUsed flips used=0 to used=1 for the given hash. The WHERE used = 0
// clause makes the check-and-set a single serialized statement, so N
// concurrent verifiers race to exactly one affected row.
func (s *SQLiteStore) MarkUsed(ctx context.Context, hash string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE connection_tokens SET used = 1, used_at = ?
		WHERE token_hash = ? AND used = 0
	`, at.UTC(), hash)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	return n == 1, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
