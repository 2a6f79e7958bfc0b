package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// benchStorage creates a storage for benchmarks.
func benchStorage(b *testing.B) (*Storage, func()) {
	b.Helper()

	dir, err := os.MkdirTemp("", "storage-bench-*")
	if err != nil {
		b.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		b.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(dir)
	}

	return s, cleanup
}

// makeClaimKey builds a claim marker key: "c:" + 32-byte id + 20-byte holder.
func makeClaimKey(i int) []byte {
	key := make([]byte, 2+32+20)
	copy(key, "c:")
	binary.BigEndian.PutUint64(key[2:], uint64(i))
	binary.BigEndian.PutUint64(key[34:], uint64(i))
	return key
}

// BenchmarkMarkClaim benchmarks single claim marker writes.
func BenchmarkMarkClaim(b *testing.B) {
	s, cleanup := benchStorage(b)
	defer cleanup()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.Set(makeClaimKey(i), []byte{1}); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
}

// BenchmarkCheckClaim benchmarks existence checks against populated markers.
func BenchmarkCheckClaim(b *testing.B) {
	s, cleanup := benchStorage(b)
	defer cleanup()

	const populated = 10000
	for i := 0; i < populated; i++ {
		if err := s.Set(makeClaimKey(i), []byte{1}); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.Has(makeClaimKey(i % populated)); err != nil {
			b.Fatalf("Has failed: %v", err)
		}
	}
}

// BenchmarkMarkClaimBatch benchmarks batched marker writes, the shape of
// a condensed redemption committing all its claims at once.
func BenchmarkMarkClaimBatch(b *testing.B) {
	s, cleanup := benchStorage(b)
	defer cleanup()

	const batchSize = 32

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		pairs := make([]KeyValue, batchSize)
		for j := 0; j < batchSize; j++ {
			pairs[j] = KeyValue{Key: makeClaimKey(i*batchSize + j), Value: []byte{1}}
		}
		if err := s.SetBatch(pairs); err != nil {
			b.Fatalf("SetBatch failed: %v", err)
		}
	}
}
