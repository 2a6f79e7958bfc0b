package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/zeebo/blake3"
)

const (
	// IDSize is the size of a certificate identifier in bytes.
	IDSize = 32

	// HashSize is the size of a derived message hash in bytes.
	HashSize = 32

	// AddressSize is the size of a signer address in bytes.
	AddressSize = 20
)

// ID is a 32-byte certificate-type identifier.
type ID [IDSize]byte

// Hash is a 32-byte derived message hash.
type Hash [HashSize]byte

// Address is a 20-byte signer identity derived from a public key.
type Address [AddressSize]byte

// FromPublicKey derives the address of a secp256k1 public key.
// The address is the trailing 20 bytes of blake3-256 over the
// 33-byte compressed key encoding.
func FromPublicKey(pub *secp256k1.PublicKey) Address {
	sum := blake3.Sum256(pub.SerializeCompressed())

	var a Address
	copy(a[:], sum[IDSize-AddressSize:])

	return a
}

// String returns the ID as lowercase hex.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// String returns the hash as lowercase hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// String returns the address as lowercase hex.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// MarshalText encodes the ID as hex for JSON and text formats.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes an ID from hex.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// MarshalText encodes the hash as hex for JSON and text formats.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hash from hex.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil || len(b) != HashSize {
		return fmt.Errorf("invalid hash: %q", text)
	}

	copy(h[:], b)

	return nil
}

// MarshalText encodes the address as hex for JSON and text formats.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an address from hex.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// ParseID decodes a 64-char hex string into an ID.
func ParseID(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != IDSize {
		return ID{}, fmt.Errorf("invalid certificate ID: %q", s)
	}

	var id ID
	copy(id[:], b)

	return id, nil
}

// ParseAddress decodes a 40-char hex string into an Address.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressSize {
		return Address{}, fmt.Errorf("invalid address: %q", s)
	}

	var a Address
	copy(a[:], b)

	return a, nil
}
