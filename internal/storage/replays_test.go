package storage

import (
	"bytes"
	"errors"
	"testing"

	"github.com/osudroid-server/internal/domain"
)

func TestReplayStoreRoundTrip(t *testing.T) {
	store, err := NewReplayStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewReplayStore: %v", err)
	}

	data := []byte("odr-binary-payload")
	if err := store.Put(12345, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(12345)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get: got %q, want %q", got, data)
	}

	exists, err := store.Exists(12345)
	if err != nil || !exists {
		t.Errorf("Exists: got (%v, %v), want (true, nil)", exists, err)
	}
}

func TestReplayStoreMissing(t *testing.T) {
	store, err := NewReplayStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewReplayStore: %v", err)
	}

	if _, err := store.Get(999); !errors.Is(err, domain.ErrScoreNotFound) {
		t.Errorf("Get missing: got %v, want ErrScoreNotFound", err)
	}

	exists, err := store.Exists(999)
	if err != nil || exists {
		t.Errorf("Exists missing: got (%v, %v), want (false, nil)", exists, err)
	}
}

func TestReplayStoreRemove(t *testing.T) {
	store, err := NewReplayStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewReplayStore: %v", err)
	}

	if err := store.Put(7, []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Remove(7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(7); err != nil {
		t.Errorf("removing twice must be silent: %v", err)
	}
	if _, err := store.Get(7); !errors.Is(err, domain.ErrScoreNotFound) {
		t.Errorf("Get after remove: got %v", err)
	}
}

func TestReplayStoreSharding(t *testing.T) {
	store, err := NewReplayStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewReplayStore: %v", err)
	}

	// Same shard residue, different scores: files must not collide.
	if err := store.Put(1, []byte("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(257, []byte("second")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := store.Get(1)
	if err != nil || string(first) != "first" {
		t.Errorf("Get(1): got (%q, %v)", first, err)
	}
	second, err := store.Get(257)
	if err != nil || string(second) != "second" {
		t.Errorf("Get(257): got (%q, %v)", second, err)
	}
}
