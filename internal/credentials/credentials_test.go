package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var testPair = Pair{
	AccessToken:  "access-abc",
	RefreshToken: "refresh-def",
	ExpiresIn:    900,
}

func roundTrip(t *testing.T, store Store) {
	t.Helper()

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := store.Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load after Save: ok=%v err=%v", ok, err)
	}
	if got != testPair {
		t.Fatalf("pair did not round-trip: %+v", got)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("Load after Clear: ok=%v err=%v", ok, err)
	}
	// Clearing an already-empty store is a no-op.
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	roundTrip(t, NewFileStore(path))
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	if err := store.Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", perm)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := NewFileStore(path).Load(); err == nil {
		t.Fatalf("expected error on corrupt file")
	}
}

func TestSealedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.sealed")
	roundTrip(t, NewSealedFileStore(path, "correct horse"))
}

func TestSealedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.sealed")
	if err := NewSealedFileStore(path, "right").Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, _, err := NewSealedFileStore(path, "wrong").Load()
	if !errors.Is(err, ErrSealOpen) {
		t.Fatalf("expected ErrSealOpen, got %v", err)
	}
}

func TestSealedFileStoreTamper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.sealed")
	store := NewSealedFileStore(path, "pass")
	if err := store.Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := store.Load(); !errors.Is(err, ErrSealOpen) {
		t.Fatalf("expected ErrSealOpen after tamper, got %v", err)
	}
}

func TestSelector(t *testing.T) {
	session := NewMemoryStore()
	persistent := NewMemoryStore()
	sel := NewSelector(session)

	if err := sel.Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, _ := session.Load(); !ok {
		t.Fatalf("pair should land in the session backend")
	}
	if _, ok, _ := persistent.Load(); ok {
		t.Fatalf("persistent backend should stay empty")
	}

	sel.Use(persistent)
	if _, ok, _ := sel.Load(); ok {
		t.Fatalf("selector should now read the empty persistent backend")
	}
	if err := sel.Save(testPair); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, _ := persistent.Load(); !ok {
		t.Fatalf("pair should land in the persistent backend after Use")
	}
}
