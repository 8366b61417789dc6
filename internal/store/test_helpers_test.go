package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a fresh database in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.now = fixedNow
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}
