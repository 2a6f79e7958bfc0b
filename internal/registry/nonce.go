package registry

import (
	"encoding/binary"
	"fmt"

	"RedScrip/internal/storage"
)

// nonceKey stores the last accepted admin nonce.
var nonceKey = []byte("n:admin")

// Nonces persists the admin request counter. The counter only moves
// forward, so a signed request observed on the wire cannot be replayed
// after a restart.
type Nonces struct {
	db *storage.Storage
}

// NewNonces creates a nonce counter over the given store.
func NewNonces(db *storage.Storage) *Nonces {
	return &Nonces{db: db}
}

// Last returns the last accepted nonce, zero when none was accepted yet.
func (n *Nonces) Last() (uint64, error) {
	value, err := n.db.Get(nonceKey)
	if err != nil {
		return 0, err
	}

	if value == nil {
		return 0, nil
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("malformed nonce of %d bytes", len(value))
	}

	return binary.LittleEndian.Uint64(value), nil
}

// SetLast records v as the last accepted nonce.
func (n *Nonces) SetLast(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)

	return n.db.Set(nonceKey, buf[:])
}
