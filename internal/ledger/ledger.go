package ledger

import (
	"fmt"

	"RedScrip/internal/identity"
	"RedScrip/internal/storage"
)

// claimPrefix keys claim markers: "c:" + 32-byte ID + 20-byte holder.
const claimPrefix = "c:"

// Ledger records which holder has redeemed which certificate type.
// A marker, once visible, blocks any further redemption of that pair.
type Ledger struct {
	db *storage.Storage
}

// New creates a claim ledger backed by the given storage.
func New(db *storage.Storage) *Ledger {
	return &Ledger{db: db}
}

// Claimed reports whether the holder has already redeemed the type.
func (l *Ledger) Claimed(id identity.ID, holder identity.Address) (bool, error) {
	return l.db.Has(claimKey(id, holder))
}

// Mark records a single redemption.
func (l *Ledger) Mark(id identity.ID, holder identity.Address) error {
	if err := l.db.Set(claimKey(id, holder), []byte{1}); err != nil {
		return fmt.Errorf("mark claim:\n%w", err)
	}
	return nil
}

// MarkAll records redemptions for every listed type in one batch, so a
// condensed redemption commits all of its claims or none of them.
func (l *Ledger) MarkAll(holder identity.Address, ids []identity.ID) error {
	pairs := make([]storage.KeyValue, len(ids))
	for i, id := range ids {
		pairs[i] = storage.KeyValue{Key: claimKey(id, holder), Value: []byte{1}}
	}

	if err := l.db.SetBatch(pairs); err != nil {
		return fmt.Errorf("mark claims:\n%w", err)
	}

	return nil
}

// Unmark removes a single claim marker.
func (l *Ledger) Unmark(id identity.ID, holder identity.Address) error {
	if err := l.db.Delete(claimKey(id, holder)); err != nil {
		return fmt.Errorf("unmark claim:\n%w", err)
	}
	return nil
}

// UnmarkAll removes the claim markers for every listed type in one batch.
func (l *Ledger) UnmarkAll(holder identity.Address, ids []identity.ID) error {
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = claimKey(id, holder)
	}

	if err := l.db.DeleteBatch(keys); err != nil {
		return fmt.Errorf("unmark claims:\n%w", err)
	}

	return nil
}

// Count returns the total number of recorded claims. Full prefix scan,
// for diagnostics only.
func (l *Ledger) Count() (int, error) {
	count := 0
	err := l.db.IteratePrefix([]byte(claimPrefix), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan claims:\n%w", err)
	}

	return count, nil
}

// claimKey builds the storage key for a claim marker.
func claimKey(id identity.ID, holder identity.Address) []byte {
	key := make([]byte, len(claimPrefix)+identity.IDSize+identity.AddressSize)
	copy(key, claimPrefix)
	copy(key[len(claimPrefix):], id[:])
	copy(key[len(claimPrefix)+identity.IDSize:], holder[:])
	return key
}
