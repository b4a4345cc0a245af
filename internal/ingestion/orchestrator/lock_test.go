package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTickLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireTickLock(dir, "live")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := acquireTickLock(dir, "live"); !errors.Is(err, ErrTickInProgress) {
		t.Fatalf("second acquire: want ErrTickInProgress got=%v", err)
	}

	// Per-store locks are independent.
	devLock, err := acquireTickLock(dir, "dev")
	if err != nil {
		t.Fatalf("dev acquire while live held: %v", err)
	}
	devLock.release()

	lock.release()
	relock, err := acquireTickLock(dir, "live")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	relock.release()
}

func TestTickLockReclaimsStaleHolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest-live.lock")

	// A lock file owned by a process that no longer exists.
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}
	lock, err := acquireTickLock(dir, "live")
	if err != nil {
		t.Fatalf("stale lock must be reclaimed: %v", err)
	}
	lock.release()
}
