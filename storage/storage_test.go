package storage

import (
	"os"
	"testing"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir, err := os.MkdirTemp("", "storage-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommitThenReadIsVisible(t *testing.T) {
	s := openTestStorage(t)
	w := s.OpenWriteSnapshot()
	w.Insert(KeyspaceThingVertex, []byte("alice"), []byte("person"))
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	r := s.OpenReadSnapshot()
	v, ok := r.Get(KeyspaceThingVertex, []byte("alice"))
	if !ok || string(v) != "person" {
		t.Fatalf("expected visible committed value, got %q ok=%v", v, ok)
	}
}

func TestSnapshotReadDoesNotSeeLaterCommit(t *testing.T) {
	s := openTestStorage(t)
	r := s.OpenReadSnapshot() // opened before any commit

	w := s.OpenWriteSnapshot()
	w.Insert(KeyspaceThingVertex, []byte("bob"), []byte("person"))
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.Get(KeyspaceThingVertex, []byte("bob")); ok {
		t.Fatal("snapshot opened before the commit must not observe it")
	}
}

func TestInsertThenDeleteReturnsToPreInsertState(t *testing.T) {
	s := openTestStorage(t)
	w := s.OpenWriteSnapshot()
	w.Insert(KeyspaceThingVertex, []byte("x"), []byte("v"))
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	w2 := s.OpenWriteSnapshot()
	w2.Delete(KeyspaceThingVertex, []byte("x"))
	if _, err := w2.Commit(); err != nil {
		t.Fatal(err)
	}
	r := s.OpenReadSnapshot()
	if _, ok := r.Get(KeyspaceThingVertex, []byte("x")); ok {
		t.Fatal("deleted key must not be visible")
	}
}

// TestConcurrentDeleteConflict mirrors spec.md §8 scenario 6: two write
// transactions both read the same key and one deletes it; if they overlap,
// the later committer must fail with an isolation conflict.
func TestConcurrentDeleteConflict(t *testing.T) {
	s := openTestStorage(t)
	seed := s.OpenWriteSnapshot()
	seed.Insert(KeyspaceThingVertex, []byte("name"), []byte("Alice"))
	if _, err := seed.Commit(); err != nil {
		t.Fatal(err)
	}

	t1 := s.OpenWriteSnapshot()
	t2 := s.OpenWriteSnapshot()

	if _, ok := t1.Get(KeyspaceThingVertex, []byte("name")); !ok {
		t.Fatal("t1 should see seeded value")
	}
	if _, ok := t2.Get(KeyspaceThingVertex, []byte("name")); !ok {
		t.Fatal("t2 should see seeded value")
	}
	t1.Delete(KeyspaceThingVertex, []byte("name"))
	t2.Delete(KeyspaceThingVertex, []byte("name"))

	if _, err := t1.Commit(); err != nil {
		t.Fatalf("t1 commit should succeed: %v", err)
	}
	if _, err := t2.Commit(); err == nil {
		t.Fatal("t2 commit should fail with isolation conflict")
	}
}

func TestPutTwiceIsIdempotent(t *testing.T) {
	s := openTestStorage(t)
	w := s.OpenWriteSnapshot()
	w.Put(KeyspaceThingVertex, []byte("k"), []byte("v1"), false)
	w.Put(KeyspaceThingVertex, []byte("k"), []byte("v2"), false)
	if _, err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	r := s.OpenReadSnapshot()
	v, ok := r.Get(KeyspaceThingVertex, []byte("k"))
	if !ok || string(v) != "v2" {
		t.Fatalf("expected last Put to win, got %q", v)
	}
}
