// Package testutil provides shared test helpers for setting up notes
// directories and parse-cache databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/noteban/internal/cache"
	"github.com/starford/noteban/internal/storage"
)

// TestDB creates a temporary parse-cache database that is automatically
// cleaned up.
func TestDB(t *testing.T) *cache.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "noteban-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNotesDir creates a temporary notes directory with a storage.Provider.
func TestNotesDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestLogger returns a logger that swallows output.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
