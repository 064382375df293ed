package testutil

import (
	"path/filepath"
	"testing"

	"github.com/filament-ui/filament/internal/journal"
)

// TempJournal opens a journal backed by a SQLite file under the test's
// temp directory. It is closed on test cleanup.
func TempJournal(t testing.TB) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open temp journal: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("close temp journal: %v", err)
		}
	})
	return j
}
