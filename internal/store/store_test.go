package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGetMissingKey(t *testing.T) {
	db := openTemp(t)
	got, err := db.Get("transactions")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get(missing) = %q, want nil", got)
	}
}

func TestPutReplaces(t *testing.T) {
	db := openTemp(t)
	if err := db.Put("currency", []byte(`"USD"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put("currency", []byte(`"EUR"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get("currency")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `"EUR"` {
		t.Fatalf("Get = %s, want \"EUR\"", got)
	}
}

func TestUpdateReadModifyWrite(t *testing.T) {
	db := openTemp(t)
	appendX := func(old []byte) ([]byte, error) {
		return append(old, 'x'), nil
	}
	for i := 0; i < 3; i++ {
		if err := db.Update("q", appendX); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	got, _ := db.Get("q")
	if string(got) != "xxx" {
		t.Fatalf("after 3 updates = %q, want xxx", got)
	}
}

func TestUpdateAbortKeepsOldValue(t *testing.T) {
	db := openTemp(t)
	if err := db.Put("q", []byte("keep")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	boom := errors.New("boom")
	err := db.Update("q", func([]byte) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v, want boom", err)
	}
	got, _ := db.Get("q")
	if string(got) != "keep" {
		t.Fatalf("value after aborted update = %q, want keep", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put("workspace", []byte(`"business"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "workspace" {
		t.Fatalf("Keys = %v, want [workspace]", keys)
	}
}
