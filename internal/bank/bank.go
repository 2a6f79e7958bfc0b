package bank

import (
	"encoding/binary"
	"fmt"

	"RedScrip/internal/identity"
	"RedScrip/internal/storage"
)

// balancePrefix keys balances: "b:" + 20-byte address.
const balancePrefix = "b:"

// Bank tracks the credit balance of each identity. Redemptions only ever
// add value, so there is no debit path.
type Bank struct {
	db *storage.Storage
}

// New creates a bank backed by the given storage.
func New(db *storage.Storage) *Bank {
	return &Bank{db: db}
}

// Credit adds amount to the identity's balance.
func (b *Bank) Credit(holder identity.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	balance, err := b.Balance(holder)
	if err != nil {
		return fmt.Errorf("read balance:\n%w", err)
	}

	// Overflow check: balance + amount must not wrap
	newBalance := balance + amount
	if newBalance < balance {
		return fmt.Errorf("credit overflow: balance=%d + amount=%d wraps", balance, amount)
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, newBalance)

	if err := b.db.Set(balanceKey(holder), buf); err != nil {
		return fmt.Errorf("store balance:\n%w", err)
	}

	return nil
}

// Balance returns the identity's balance. Unknown identities hold zero.
func (b *Bank) Balance(holder identity.Address) (uint64, error) {
	data, err := b.db.Get(balanceKey(holder))
	if err != nil {
		return 0, fmt.Errorf("load balance:\n%w", err)
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed balance of %d bytes", len(data))
	}

	return binary.LittleEndian.Uint64(data), nil
}

// balanceKey builds the storage key for a balance.
func balanceKey(holder identity.Address) []byte {
	key := make([]byte, len(balancePrefix)+identity.AddressSize)
	copy(key, balancePrefix)
	copy(key[len(balancePrefix):], holder[:])
	return key
}
