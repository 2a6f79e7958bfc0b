package api

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"RedScrip/internal/engine"
	"RedScrip/internal/identity"
	"RedScrip/internal/sig"
)

// adminOpTag domain-separates admin request digests from every other
// signed hash in the system.
const adminOpTag = "redscrip/admin-op/v1"

// Admin operation codes bound into the signed digest.
const (
	OpCreateCertificate byte = 1
	OpAddCondenser      byte = 2
	OpRemoveCondenser   byte = 3
)

var (
	// ErrBadNonce is returned when an admin request does not present
	// the next nonce in sequence.
	ErrBadNonce = errors.New("nonce out of sequence")

	// ErrAuthMismatch is returned when an auth signature recovers to an
	// address other than the declared one.
	ErrAuthMismatch = errors.New("signer does not match declared caller")
)

// AdminOpDigest derives the digest an administrative caller signs:
// blake3(tag ‖ op ‖ nonce u64 BE ‖ service ‖ payload). The payload is
// the certificate ID for creation and the delegate address for
// condenser changes, so a signature authorizes exactly one request.
func AdminOpDigest(op byte, nonce uint64, service identity.Address, payload []byte) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)

	h := blake3.New()
	h.Write([]byte(adminOpTag))
	h.Write([]byte{op})
	h.Write(buf[:])
	h.Write(service[:])
	h.Write(payload)

	var digest [32]byte
	h.Sum(digest[:0])

	return digest
}

// NonceStore persists the last accepted admin nonce.
type NonceStore interface {
	Last() (uint64, error)
	SetLast(v uint64) error
}

// AdminAuth authenticates administrative requests. Each request carries
// a signature over its op digest and a nonce that must be exactly one
// past the last accepted nonce, which closes replay of old requests.
// Only the admin can advance the sequence.
type AdminAuth struct {
	service identity.Address
	admin   identity.Address
	nonces  NonceStore
	mu      sync.Mutex // serializes nonce check-and-advance
}

// NewAdminAuth creates an authenticator for the given service identity
// and admin.
func NewAdminAuth(service, admin identity.Address, nonces NonceStore) *AdminAuth {
	return &AdminAuth{service: service, admin: admin, nonces: nonces}
}

// NextNonce returns the nonce the next request must present.
func (a *AdminAuth) NextNonce() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, err := a.nonces.Last()
	if err != nil {
		return 0, fmt.Errorf("load nonce:\n%w", err)
	}

	return last + 1, nil
}

// Verify checks the signature over the op digest, requires the caller
// to be the admin, and consumes the nonce. A verified request advances
// the sequence even when the operation behind it fails afterwards, so
// callers re-fetch the nonce on retry.
func (a *AdminAuth) Verify(op byte, nonce uint64, payload []byte, caller identity.Address, signature []byte) error {
	digest := AdminOpDigest(op, nonce, a.service, payload)

	signer, err := sig.RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if signer != caller {
		return ErrAuthMismatch
	}
	if caller != a.admin {
		return engine.ErrAdminRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	last, err := a.nonces.Last()
	if err != nil {
		return fmt.Errorf("load nonce:\n%w", err)
	}
	if nonce != last+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrBadNonce, nonce, last+1)
	}

	if err := a.nonces.SetLast(nonce); err != nil {
		return fmt.Errorf("store nonce:\n%w", err)
	}

	return nil
}

// verifyHolder checks that auth is the holder's own signature over the
// redemption hash. This keeps the holder parameter unspoofable: only
// the holder can direct a redemption at their address.
func verifyHolder(hash [32]byte, holder identity.Address, auth []byte) error {
	signer, err := sig.RecoverSigner(hash, auth)
	if err != nil {
		return err
	}
	if signer != holder {
		return ErrAuthMismatch
	}

	return nil
}
