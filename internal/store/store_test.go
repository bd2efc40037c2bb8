package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/presenze/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.Open(context.Background(), database.MemoryPath, logger)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
