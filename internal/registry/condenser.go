package registry

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"RedScrip/internal/identity"
	"RedScrip/internal/storage"
)

// condenserPrefix keys condenser markers: "k:" + 20-byte address.
const condenserPrefix = "k:"

// CondenserSet holds the addresses trusted to sign condensed redemptions.
// Membership is kept in memory for fast checks and mirrored to storage
// so it survives restarts. It is safe for concurrent access.
type CondenserSet struct {
	mu      sync.RWMutex
	members map[identity.Address]struct{}
	db      *storage.Storage
}

// LoadCondenserSet builds the set from persisted markers.
func LoadCondenserSet(db *storage.Storage) (*CondenserSet, error) {
	cs := &CondenserSet{
		members: make(map[identity.Address]struct{}),
		db:      db,
	}

	prefix := []byte(condenserPrefix)
	err := db.IteratePrefix(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+identity.AddressSize {
			return fmt.Errorf("malformed condenser key of length %d", len(key))
		}

		var addr identity.Address
		copy(addr[:], key[len(prefix):])
		cs.members[addr] = struct{}{}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan condensers:\n%w", err)
	}

	return cs, nil
}

// Add inserts an address into the set. Returns true if added, false if
// already present.
func (cs *CondenserSet) Add(addr identity.Address) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.members[addr]; exists {
		return false, nil
	}

	if err := cs.db.Set(condenserKey(addr), []byte{1}); err != nil {
		return false, fmt.Errorf("store condenser:\n%w", err)
	}

	cs.members[addr] = struct{}{}

	return true, nil
}

// Remove deletes an address from the set. Returns true if removed,
// false if it was not a member.
func (cs *CondenserSet) Remove(addr identity.Address) (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.members[addr]; !exists {
		return false, nil
	}

	if err := cs.db.Delete(condenserKey(addr)); err != nil {
		return false, fmt.Errorf("delete condenser:\n%w", err)
	}

	delete(cs.members, addr)

	return true, nil
}

// Contains checks if an address is in the set.
func (cs *CondenserSet) Contains(addr identity.Address) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	_, exists := cs.members[addr]
	return exists
}

// Len returns the number of condensers.
func (cs *CondenserSet) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.members)
}

// Addresses returns the members in byte order.
func (cs *CondenserSet) Addresses() []identity.Address {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	result := make([]identity.Address, 0, len(cs.members))
	for addr := range cs.members {
		result = append(result, addr)
	}

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i][:], result[j][:]) < 0
	})

	return result
}

// condenserKey builds the storage key for a condenser marker.
func condenserKey(addr identity.Address) []byte {
	key := make([]byte, len(condenserPrefix)+identity.AddressSize)
	copy(key, condenserPrefix)
	copy(key[len(condenserPrefix):], addr[:])
	return key
}
