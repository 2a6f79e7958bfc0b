package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"RedScrip/internal/storage"
)

// createTestStorage creates a temporary storage for testing.
func createTestStorage(t *testing.T) (*storage.Storage, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "snapshot_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	db, err := storage.New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("create storage: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}

	return db, cleanup
}

// populate writes a small state across the key prefixes used in
// production.
func populate(t *testing.T, db *storage.Storage) map[string][]byte {
	t.Helper()

	pairs := map[string][]byte{
		"t:certificate-one": append(bytes.Repeat([]byte{0}, 8), []byte("ipfs://x")...),
		"d:certificate-one": {1},
		"c:claim-marker":    {1},
		"k:condenser":       {1},
		"b:holder":          {100, 0, 0, 0, 0, 0, 0, 0},
		"n:admin":           {7, 0, 0, 0, 0, 0, 0, 0},
	}

	for k, v := range pairs {
		if err := db.Set([]byte(k), v); err != nil {
			t.Fatalf("set %q: %v", k, err)
		}
	}

	return pairs
}

func TestCreateSnapshot_EmptyStorage(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	data, err := Create(db)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if snap.Version != snapshotVersion {
		t.Errorf("version = %d, want %d", snap.Version, snapshotVersion)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(snap.Entries))
	}
	if snap.Created == 0 {
		t.Error("created stamp missing")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	pairs := populate(t, db)

	data, err := Create(db)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	db2, cleanup2 := createTestStorage(t)
	defer cleanup2()

	snap, err := Apply(db2, data)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(snap.Entries) != len(pairs) {
		t.Errorf("entries = %d, want %d", len(snap.Entries), len(pairs))
	}

	for k, v := range pairs {
		got, err := db2.Get([]byte(k))
		if err != nil {
			t.Fatalf("get %q: %v", k, err)
		}
		if !bytes.Equal(got, v) {
			t.Errorf("%q: got %v, want %v", k, got, v)
		}
	}
}

func TestSnapshotEntriesSorted(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	// Insert in reverse order; the snapshot must come out sorted.
	for _, k := range []string{"c:z", "c:m", "c:a"} {
		if err := db.Set([]byte(k), []byte{1}); err != nil {
			t.Fatalf("set %q: %v", k, err)
		}
	}

	data, err := Create(db)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	snap, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for i := 1; i < len(snap.Entries); i++ {
		if bytes.Compare(snap.Entries[i-1].Key, snap.Entries[i].Key) >= 0 {
			t.Fatalf("entries out of order at %d: %q >= %q",
				i, snap.Entries[i-1].Key, snap.Entries[i].Key)
		}
	}
}

func TestChecksumVerification_Corrupted(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	populate(t, db)

	data, err := Create(db)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	corrupted[len(corrupted)/2] ^= 0xFF

	if _, err := Decode(corrupted); err == nil {
		t.Fatal("Decode accepted corrupted data")
	}

	db2, cleanup2 := createTestStorage(t)
	defer cleanup2()

	if _, err := Apply(db2, corrupted); err == nil {
		t.Fatal("Apply accepted corrupted data")
	}
}

func TestDecode_Truncated(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	populate(t, db)

	data, err := Create(db)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := Decode(data[:len(data)/2]); err == nil {
		t.Error("Decode accepted truncated data")
	}

	if _, err := Decode(nil); err == nil {
		t.Error("Decode accepted empty data")
	}
}

func TestCompressDecompress_Roundtrip(t *testing.T) {
	original := []byte("test data for compression roundtrip")

	compressed, err := Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	if !bytes.Equal(original, decompressed) {
		t.Errorf("roundtrip failed: got %q, want %q", decompressed, original)
	}
}

func TestCompress_ReducesSize(t *testing.T) {
	// Repetitive data that compresses well
	original := bytes.Repeat([]byte("abcdefghij"), 1000)

	compressed, err := Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	if len(compressed) >= len(original) {
		t.Errorf("compression did not reduce size: %d >= %d", len(compressed), len(original))
	}
}

func TestRestoreFile(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	pairs := populate(t, db)

	exporter := NewExporter(db)
	compressed, err := exporter.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	dir, err := os.MkdirTemp("", "snapshot_restore_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot-1.zst")
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	db2, cleanup2 := createTestStorage(t)
	defer cleanup2()

	snap, err := RestoreFile(db2, path)
	if err != nil {
		t.Fatalf("RestoreFile: %v", err)
	}
	if len(snap.Entries) != len(pairs) {
		t.Errorf("entries = %d, want %d", len(snap.Entries), len(pairs))
	}

	for k, v := range pairs {
		got, err := db2.Get([]byte(k))
		if err != nil {
			t.Fatalf("get %q: %v", k, err)
		}
		if !bytes.Equal(got, v) {
			t.Errorf("%q: got %v, want %v", k, got, v)
		}
	}
}

func TestRestoreFile_Missing(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	if _, err := RestoreFile(db, "/nonexistent/snapshot.zst"); err == nil {
		t.Error("RestoreFile accepted a missing file")
	}
}

func TestManagerWriteAndPrune(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	populate(t, db)

	dir, err := os.MkdirTemp("", "snapshot_mgr_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(db, dir, time.Hour)

	// Drive the writer directly instead of waiting on the ticker.
	for i := 0; i < retainCount+3; i++ {
		m.writeSnapshot()
		// Distinct timestamps keep the file names unique.
		time.Sleep(time.Millisecond)
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(dirents) != retainCount {
		t.Errorf("retained %d files, want %d", len(dirents), retainCount)
	}

	latest := m.Latest()
	if latest == "" {
		t.Fatal("Latest returned empty after writes")
	}

	db2, cleanup2 := createTestStorage(t)
	defer cleanup2()

	if _, err := RestoreFile(db2, latest); err != nil {
		t.Fatalf("RestoreFile from latest: %v", err)
	}
}

func TestManagerStartStop(t *testing.T) {
	db, cleanup := createTestStorage(t)
	defer cleanup()

	populate(t, db)

	dir, err := os.MkdirTemp("", "snapshot_mgr_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	m := NewManager(db, dir, time.Hour)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The loop writes an initial snapshot right away.
	deadline := time.Now().Add(5 * time.Second)
	for m.Latest() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	m.Stop()

	if m.Latest() == "" {
		t.Fatal("no snapshot written after Start")
	}
}
