package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"RedScrip/internal/storage"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1

	// headerSize is version (4) + created (8) + entry count (4).
	headerSize = 16

	// checksumSize is the trailing blake3 checksum.
	checksumSize = 32
)

// Entry is one key-value pair of a snapshot.
type Entry struct {
	Key   []byte
	Value []byte
}

// Snapshot is a decoded full-state export.
type Snapshot struct {
	Version uint32
	Created uint64 // unix seconds at creation
	Entries []Entry
}

// Create encodes the entire store into a checksummed snapshot:
//
//	version u32 ‖ created u64 ‖ count u32 ‖ (klen u32 ‖ key ‖ vlen u32 ‖ value)* ‖ blake3
//
// Entries are sorted by key, so two snapshots of identical state differ
// only in the created stamp.
func Create(db *storage.Storage) ([]byte, error) {
	entries, err := collectEntries(db)
	if err != nil {
		return nil, fmt.Errorf("collect entries:\n%w", err)
	}

	return encode(entries), nil
}

// collectEntries iterates storage and copies out every pair.
func collectEntries(db *storage.Storage) ([]Entry, error) {
	var entries []Entry

	err := db.Iterate(func(key, value []byte) error {
		// Copy key and value to avoid iterator invalidation.
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)

		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)

		entries = append(entries, Entry{Key: keyCopy, Value: valueCopy})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// encode serializes sorted entries with a trailing checksum.
func encode(entries []Entry) []byte {
	sortEntries(entries)

	var buf bytes.Buffer
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], snapshotVersion)
	buf.Write(scratch[:4])

	binary.LittleEndian.PutUint64(scratch[:], uint64(time.Now().Unix()))
	buf.Write(scratch[:])

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(entries)))
	buf.Write(scratch[:4])

	for _, e := range entries {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(e.Key)))
		buf.Write(scratch[:4])
		buf.Write(e.Key)

		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(e.Value)))
		buf.Write(scratch[:4])
		buf.Write(e.Value)
	}

	checksum := blake3.Sum256(buf.Bytes())
	buf.Write(checksum[:])

	return buf.Bytes()
}

// sortEntries sorts entries by key for deterministic ordering.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
}

// Decode verifies the checksum and parses a snapshot.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	payload := data[:len(data)-checksumSize]
	stored := data[len(data)-checksumSize:]

	computed := blake3.Sum256(payload)
	if !bytes.Equal(computed[:], stored) {
		return nil, fmt.Errorf("checksum mismatch")
	}

	version := binary.LittleEndian.Uint32(payload[0:4])
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}

	created := binary.LittleEndian.Uint64(payload[4:12])
	count := binary.LittleEndian.Uint32(payload[12:16])
	rest := payload[headerSize:]

	// Every entry carries at least two length prefixes.
	if uint64(len(rest)) < uint64(count)*8 {
		return nil, fmt.Errorf("entry count %d exceeds payload size", count)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		var key, value []byte
		var err error

		key, rest, err = readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("entry %d key: %w", i, err)
		}

		value, rest, err = readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("entry %d value: %w", i, err)
		}

		entries = append(entries, Entry{Key: key, Value: value})
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d entries", len(rest), count)
	}

	return &Snapshot{Version: version, Created: created, Entries: entries}, nil
}

// readChunk consumes one length-prefixed chunk and returns the rest.
func readChunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}

	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]

	if uint32(len(data)) < n {
		return nil, nil, fmt.Errorf("truncated chunk: want %d bytes, have %d", n, len(data))
	}

	chunk := make([]byte, n)
	copy(chunk, data[:n])

	return chunk, data[n:], nil
}

// Apply verifies a snapshot and restores all its entries in one atomic
// batch.
func Apply(db *storage.Storage, data []byte) (*Snapshot, error) {
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot:\n%w", err)
	}

	pairs := make([]storage.KeyValue, len(snap.Entries))
	for i, e := range snap.Entries {
		pairs[i] = storage.KeyValue{Key: e.Key, Value: e.Value}
	}

	if err := db.SetBatch(pairs); err != nil {
		return nil, fmt.Errorf("write entries:\n%w", err)
	}

	return snap, nil
}

// RestoreFile decompresses and applies a snapshot file.
func RestoreFile(db *storage.Storage, path string) (*Snapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot:\n%w", err)
	}

	data, err := Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	return Apply(db, data)
}

// Compress compresses snapshot data using zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed snapshot data.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
