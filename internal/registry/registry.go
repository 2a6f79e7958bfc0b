package registry

import (
	"encoding/binary"
	"fmt"

	"RedScrip/internal/identity"
	"RedScrip/internal/storage"
)

const (
	// typePrefix keys certificate type records: "t:" + 32-byte ID.
	typePrefix = "t:"

	// delegatePrefix keys delegate markers: "d:" + 32-byte ID + 20-byte address.
	delegatePrefix = "d:"
)

// Store persists certificate types and their delegate sets. Types are
// append-only: once created they are never modified or removed.
type Store struct {
	db      *storage.Storage
	service identity.Address // this service instance, bound into every type ID
}

// NewStore creates a certificate type store backed by the given storage.
func NewStore(db *storage.Storage, service identity.Address) *Store {
	return &Store{db: db, service: service}
}

// Create registers a certificate type and returns its content-derived ID.
// Re-creating an existing type is a no-op returning created=false; the ID
// covers every parameter, so an existing entry is the same type.
func (s *Store) Create(amount uint64, delegates []identity.Address, metadata string) (identity.ID, bool, error) {
	id := identity.ComputeCertificateID(amount, s.service, delegates, metadata)

	exists, err := s.Exists(id)
	if err != nil {
		return id, false, fmt.Errorf("check type:\n%w", err)
	}
	if exists {
		return id, false, nil
	}

	pairs := make([]storage.KeyValue, 0, 1+len(delegates))
	pairs = append(pairs, storage.KeyValue{
		Key:   typeKey(id),
		Value: encodeRecord(amount, metadata),
	})
	for _, d := range delegates {
		pairs = append(pairs, storage.KeyValue{
			Key:   delegateKey(id, d),
			Value: []byte{1},
		})
	}

	if err := s.db.SetBatch(pairs); err != nil {
		return id, false, fmt.Errorf("store type:\n%w", err)
	}

	return id, true, nil
}

// Amount returns the redemption value of a certificate type. The second
// return is false if the ID is unknown.
func (s *Store) Amount(id identity.ID) (uint64, bool, error) {
	data, err := s.db.Get(typeKey(id))
	if err != nil {
		return 0, false, fmt.Errorf("load type:\n%w", err)
	}
	if data == nil {
		return 0, false, nil
	}

	amount, _, err := decodeRecord(data)
	if err != nil {
		return 0, false, fmt.Errorf("decode type:\n%w", err)
	}

	return amount, true, nil
}

// Metadata returns the metadata of a certificate type. The second return
// is false if the ID is unknown.
func (s *Store) Metadata(id identity.ID) (string, bool, error) {
	data, err := s.db.Get(typeKey(id))
	if err != nil {
		return "", false, fmt.Errorf("load type:\n%w", err)
	}
	if data == nil {
		return "", false, nil
	}

	_, metadata, err := decodeRecord(data)
	if err != nil {
		return "", false, fmt.Errorf("decode type:\n%w", err)
	}

	return metadata, true, nil
}

// Exists reports whether a certificate type is registered.
func (s *Store) Exists(id identity.ID) (bool, error) {
	return s.db.Has(typeKey(id))
}

// IsDelegate reports whether the address is an authorized delegate of
// the certificate type.
func (s *Store) IsDelegate(id identity.ID, delegate identity.Address) (bool, error) {
	return s.db.Has(delegateKey(id, delegate))
}

// Delegates returns the delegate addresses of a certificate type.
func (s *Store) Delegates(id identity.ID) ([]identity.Address, error) {
	prefix := make([]byte, len(delegatePrefix)+identity.IDSize)
	copy(prefix, delegatePrefix)
	copy(prefix[len(delegatePrefix):], id[:])

	var delegates []identity.Address
	err := s.db.IteratePrefix(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+identity.AddressSize {
			return fmt.Errorf("malformed delegate key of length %d", len(key))
		}

		var addr identity.Address
		copy(addr[:], key[len(prefix):])
		delegates = append(delegates, addr)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan delegates:\n%w", err)
	}

	return delegates, nil
}

// typeKey builds the storage key for a certificate type record.
func typeKey(id identity.ID) []byte {
	key := make([]byte, len(typePrefix)+identity.IDSize)
	copy(key, typePrefix)
	copy(key[len(typePrefix):], id[:])
	return key
}

// delegateKey builds the storage key for a delegate marker.
func delegateKey(id identity.ID, delegate identity.Address) []byte {
	key := make([]byte, len(delegatePrefix)+identity.IDSize+identity.AddressSize)
	copy(key, delegatePrefix)
	copy(key[len(delegatePrefix):], id[:])
	copy(key[len(delegatePrefix)+identity.IDSize:], delegate[:])
	return key
}

// encodeRecord serializes a type record: 8-byte LE amount, then metadata.
func encodeRecord(amount uint64, metadata string) []byte {
	buf := make([]byte, 8+len(metadata))
	binary.LittleEndian.PutUint64(buf, amount)
	copy(buf[8:], metadata)
	return buf
}

// decodeRecord parses a stored type record.
func decodeRecord(data []byte) (uint64, string, error) {
	if len(data) < 8 {
		return 0, "", fmt.Errorf("record too short: %d bytes", len(data))
	}

	return binary.LittleEndian.Uint64(data), string(data[8:]), nil
}
