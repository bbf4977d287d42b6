package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SQLStore persists credentials in a key/value table through database/sql.
// It works against sqlite3 and postgres; rows are namespaced by session ID
// so one database can back many concurrent gateway sessions.
type SQLStore struct {
	db        *sql.DB
	session   string
	rebindPos bool // rewrite ? placeholders to $N for postgres
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS credentials (
	session TEXT NOT NULL,
	k       TEXT NOT NULL,
	v       TEXT NOT NULL,
	PRIMARY KEY (session, k)
)`

// NewSQLStore creates a store over an open database handle. driver selects
// placeholder style ("postgres" uses $N, anything else uses ?). The schema
// is created if missing.
func NewSQLStore(db *sql.DB, driver, sessionID string) (*SQLStore, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("credstore: session ID is required")
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}
	return &SQLStore{
		db:        db,
		session:   sessionID,
		rebindPos: driver == "postgres",
	}, nil
}

// rebind rewrites ? placeholders for the postgres driver.
func (s *SQLStore) rebind(query string) string {
	if !s.rebindPos {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Credentials returns the current snapshot.
func (s *SQLStore) Credentials(ctx context.Context) (Credentials, error) {
	var creds Credentials

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT k, v FROM credentials WHERE session = ?`), s.session)
	if err != nil {
		return creds, fmt.Errorf("failed to load credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return creds, fmt.Errorf("failed to scan credential row: %w", err)
		}
		switch k {
		case keyAccessToken:
			creds.AccessToken = v
		case keyRefreshToken:
			creds.RefreshToken = v
		case keyTenantSlug:
			creds.TenantSlug = v
		}
	}
	if err := rows.Err(); err != nil {
		return creds, fmt.Errorf("failed to read credential rows: %w", err)
	}
	return creds, nil
}

// SetTokens stores both tokens in a single transaction.
func (s *SQLStore) SetTokens(ctx context.Context, access, refresh string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin token transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertTx(ctx, tx, keyAccessToken, access); err != nil {
		return err
	}
	if err := s.upsertTx(ctx, tx, keyRefreshToken, refresh); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tokens: %w", err)
	}
	return nil
}

// SetAccessToken replaces only the access token.
func (s *SQLStore) SetAccessToken(ctx context.Context, access string) error {
	return s.upsert(ctx, keyAccessToken, access)
}

// SetTenantSlug persists the tenant slug.
func (s *SQLStore) SetTenantSlug(ctx context.Context, slug string) error {
	return s.upsert(ctx, keyTenantSlug, slug)
}

// ClearTenantSlug removes the tenant slug.
func (s *SQLStore) ClearTenantSlug(ctx context.Context) error {
	return s.delete(ctx, keyTenantSlug)
}

// ClearTokens removes both tokens, preserving the tenant slug.
func (s *SQLStore) ClearTokens(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM credentials WHERE session = ? AND k IN (?, ?)`),
		s.session, keyAccessToken, keyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

const upsertQuery = `INSERT INTO credentials (session, k, v) VALUES (?, ?, ?)
ON CONFLICT (session, k) DO UPDATE SET v = excluded.v`

func (s *SQLStore) upsert(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(upsertQuery), s.session, key, value)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) upsertTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, s.rebind(upsertQuery), s.session, key, value)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM credentials WHERE session = ? AND k = ?`), s.session, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
