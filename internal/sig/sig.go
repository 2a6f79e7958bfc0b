package sig

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/zeebo/blake3"

	"RedScrip/internal/identity"
)

const (
	// SignatureSize is the length of a compact signature: header ‖ r ‖ s.
	SignatureSize = 65

	// messagePrefix is written ahead of the message hash before signing,
	// binding signatures to this hashing convention.
	messagePrefix = "\x19RedScrip Signed Message:\n32"
)

// Compact signature header bounds: 27 + recovery code (0-3), plus 4 when
// the signature commits to a compressed public key.
const (
	headerMin = 27
	headerMax = 34
)

var (
	// ErrInvalidFormat reports a malformed signature (wrong length or header).
	ErrInvalidFormat = errors.New("invalid signature format")

	// ErrRecoveryFailed reports that no valid public key could be recovered.
	ErrRecoveryFailed = errors.New("signature recovery failed")
)

// MessageDigest wraps a 32-byte message hash in the signed-message prefix
// and hashes again:
//
//	blake3("\x19RedScrip Signed Message:\n32" ‖ hash)
//
// Signing and recovery both operate on this digest, so a signature produced
// here cannot be replayed as a raw-hash signature elsewhere.
func MessageDigest(hash [32]byte) [32]byte {
	h := blake3.New()
	h.Write([]byte(messagePrefix))
	h.Write(hash[:])

	var out [32]byte
	h.Sum(out[:0])

	return out
}

// SignHash signs a message hash and returns a 65-byte compact signature
// in compressed-key form.
func SignHash(priv *secp256k1.PrivateKey, hash [32]byte) []byte {
	digest := MessageDigest(hash)

	return ecdsa.SignCompact(priv, digest[:], true)
}

// RecoverSigner recovers the address that produced the given compact
// signature over the message hash. This is a pure primitive: it knows
// nothing about certificates or what the hash means.
func RecoverSigner(hash [32]byte, signature []byte) (identity.Address, error) {
	if len(signature) != SignatureSize {
		return identity.Address{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidFormat, len(signature), SignatureSize)
	}

	if signature[0] < headerMin || signature[0] > headerMax {
		return identity.Address{}, fmt.Errorf("%w: header byte %d", ErrInvalidFormat, signature[0])
	}

	digest := MessageDigest(hash)

	pub, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return identity.Address{}, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}

	return identity.FromPublicKey(pub), nil
}
