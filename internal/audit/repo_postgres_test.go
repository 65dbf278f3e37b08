package audit

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Skipped unless TEST_DATABASE_DSN points at a database with migrations/ applied.
func TestPostgresRepo_Append(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	svc := NewService(NewPostgresRepo(db))
	if err := svc.EngagementUnassociated(context.Background(), "9001", "123", "RE1", errors.New("timeout")); err != nil {
		t.Fatalf("append: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT count(*) FROM audit_events WHERE engagement_id = '9001' AND type = $1`,
		string(EventTypeEngagementUnassociated)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected appended row")
	}
}

func TestPostgresRepo_NilDB(t *testing.T) {
	if err := NewPostgresRepo(nil).Append(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error")
	}
}
