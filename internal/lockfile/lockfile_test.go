package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("lock file not readable: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("lock file contents = %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock file still present after release")
	}
	// Release is idempotent.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release errored: %v", err)
	}
}

func TestSecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(dir)
	if err == nil {
		t.Fatal("second AcquireLock succeeded while lock held")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("error is %T, want *LockError", err)
	}
	if !strings.Contains(lockErr.ExistingInfo, "pid=") {
		t.Errorf("ExistingInfo = %q", lockErr.ExistingInfo)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	second.Release()
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
}
