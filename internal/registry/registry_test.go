package registry

import (
	"os"
	"path/filepath"
	"testing"

	"RedScrip/internal/identity"
	"RedScrip/internal/storage"
)

// testService is the service address used by test stores.
var testService = testAddress(0xee)

// newTestStore creates a type store over a temporary storage.
func newTestStore(t *testing.T) (*Store, *storage.Storage, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "registry-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	db, err := storage.New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}

	return NewStore(db, testService), db, cleanup
}

// testID returns an ID filled with the given byte.
func testID(b byte) identity.ID {
	var id identity.ID
	for i := range id {
		id[i] = b
	}
	return id
}

// testAddress returns an address filled with the given byte.
func testAddress(b byte) identity.Address {
	var addr identity.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func TestCreateAndRead(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	delegates := []identity.Address{testAddress(2), testAddress(3)}

	id, created, err := s.Create(100, delegates, "ipfs://x")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Fatal("Create returned false for a new type")
	}

	want := identity.ComputeCertificateID(100, testService, delegates, "ipfs://x")
	if id != want {
		t.Errorf("ID mismatch: got %s, want %s", id, want)
	}

	amount, found, err := s.Amount(id)
	if err != nil {
		t.Fatalf("Amount failed: %v", err)
	}
	if !found {
		t.Fatal("Amount did not find the created type")
	}
	if amount != 100 {
		t.Errorf("amount: got %d, want 100", amount)
	}

	metadata, found, err := s.Metadata(id)
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if !found {
		t.Fatal("Metadata did not find the created type")
	}
	if metadata != "ipfs://x" {
		t.Errorf("metadata: got %q, want %q", metadata, "ipfs://x")
	}
}

func TestCreate_Idempotent(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	first, created, err := s.Create(100, nil, "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Fatal("first Create returned false")
	}

	second, created, err := s.Create(100, nil, "m")
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if created {
		t.Error("second Create returned true, want false")
	}
	if second != first {
		t.Errorf("ID changed across identical creates: %s vs %s", second, first)
	}

	// Record must be unchanged.
	amount, found, err := s.Amount(first)
	if err != nil || !found {
		t.Fatalf("Amount after re-create: found=%v err=%v", found, err)
	}
	if amount != 100 {
		t.Errorf("amount changed: %d", amount)
	}
}

func TestCreate_DistinctParams(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	a, _, err := s.Create(100, nil, "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	b, created, err := s.Create(101, nil, "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created {
		t.Error("distinct parameters treated as re-creation")
	}
	if a == b {
		t.Error("distinct parameters produced the same ID")
	}
}

func TestRead_Unknown(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	_, found, err := s.Amount(testID(9))
	if err != nil {
		t.Fatalf("Amount failed: %v", err)
	}
	if found {
		t.Error("Amount found a type that was never created")
	}

	_, found, err = s.Metadata(testID(9))
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if found {
		t.Error("Metadata found a type that was never created")
	}

	exists, err := s.Exists(testID(9))
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Exists reported an unknown type")
	}
}

func TestIsDelegate(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	d1 := testAddress(10)
	d2 := testAddress(11)
	stranger := testAddress(12)

	id, _, err := s.Create(100, []identity.Address{d1, d2}, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other, _, err := s.Create(50, []identity.Address{stranger}, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, d := range []identity.Address{d1, d2} {
		ok, err := s.IsDelegate(id, d)
		if err != nil {
			t.Fatalf("IsDelegate failed: %v", err)
		}
		if !ok {
			t.Errorf("delegate %s not recognized", d)
		}
	}

	// A delegate of one type carries no authority on another.
	ok, err := s.IsDelegate(id, stranger)
	if err != nil {
		t.Fatalf("IsDelegate failed: %v", err)
	}
	if ok {
		t.Error("delegate of another type accepted")
	}

	ok, err = s.IsDelegate(other, d1)
	if err != nil {
		t.Fatalf("IsDelegate failed: %v", err)
	}
	if ok {
		t.Error("delegate accepted on a type that never listed it")
	}
}

func TestDelegates(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	d1 := testAddress(10)
	d2 := testAddress(11)

	id, _, err := s.Create(100, []identity.Address{d2, d1}, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Delegates(id)
	if err != nil {
		t.Fatalf("Delegates failed: %v", err)
	}

	// Markers are scanned in key order, so addresses come back sorted.
	if len(got) != 2 || got[0] != d1 || got[1] != d2 {
		t.Errorf("Delegates returned %v, want [%s %s]", got, d1, d2)
	}
}

func TestCreate_NoDelegates(t *testing.T) {
	s, _, cleanup := newTestStore(t)
	defer cleanup()

	id, _, err := s.Create(100, nil, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Delegates(id)
	if err != nil {
		t.Fatalf("Delegates failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Delegates returned %v for a type with none", got)
	}
}
