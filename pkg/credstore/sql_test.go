package credstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockSQLStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS credentials").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLStore(db, driver, "sess-1")
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	return store, mock
}

func TestSQLStore_Credentials(t *testing.T) {
	store, mock := newMockSQLStore(t, "sqlite3")

	rows := sqlmock.NewRows([]string{"k", "v"}).
		AddRow(keyAccessToken, "access-1").
		AddRow(keyRefreshToken, "refresh-1").
		AddRow(keyTenantSlug, "acme")
	mock.ExpectQuery("SELECT k, v FROM credentials WHERE session = \\?").
		WithArgs("sess-1").
		WillReturnRows(rows)

	creds, err := store.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.AccessToken != "access-1" || creds.RefreshToken != "refresh-1" || creds.TenantSlug != "acme" {
		t.Errorf("unexpected credentials: %+v", creds)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_SetTokensIsTransactional(t *testing.T) {
	store, mock := newMockSQLStore(t, "sqlite3")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credentials").
		WithArgs("sess-1", keyAccessToken, "access-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO credentials").
		WithArgs("sess-1", keyRefreshToken, "refresh-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := store.SetTokens(context.Background(), "access-1", "refresh-1"); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_ClearTokensPreservesSlug(t *testing.T) {
	store, mock := newMockSQLStore(t, "sqlite3")

	// Only the two token rows are deleted; the tenant slug row is untouched.
	mock.ExpectExec("DELETE FROM credentials WHERE session = \\? AND k IN").
		WithArgs("sess-1", keyAccessToken, keyRefreshToken).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := store.ClearTokens(context.Background()); err != nil {
		t.Fatalf("ClearTokens() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_PostgresPlaceholders(t *testing.T) {
	store, mock := newMockSQLStore(t, "postgres")

	mock.ExpectExec(`INSERT INTO credentials \(session, k, v\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("sess-1", keyTenantSlug, "acme").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SetTenantSlug(context.Background(), "acme"); err != nil {
		t.Fatalf("SetTenantSlug() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewSQLStore_RequiresSessionID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	if _, err := NewSQLStore(db, "sqlite3", ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}
