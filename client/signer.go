package client

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"RedScrip/internal/api"
	"RedScrip/internal/identity"
	"RedScrip/internal/sig"
)

// Keypair holds a secp256k1 private key used to sign redemption
// approvals and admin requests.
type Keypair struct {
	priv *secp256k1.PrivateKey // priv is the secp256k1 private key
	addr identity.Address      // addr is derived from the public key
}

// NewKeypair generates a keypair with a fresh random private key.
func NewKeypair() (*Keypair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return &Keypair{priv: priv, addr: identity.FromPublicKey(priv.PubKey())}, nil
}

// KeypairFromBytes builds a keypair from a 32-byte private key.
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}

	priv := secp256k1.PrivKeyFromBytes(b)

	return &Keypair{priv: priv, addr: identity.FromPublicKey(priv.PubKey())}, nil
}

// LoadKeypair reads a hex-encoded private key from a file.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %s:\n%w", path, err)
	}

	return KeypairFromBytes(raw)
}

// Save writes the hex-encoded private key to a file readable only by
// the owner.
func (k *Keypair) Save(path string) error {
	encoded := hex.EncodeToString(k.priv.Serialize()) + "\n"

	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write key file:\n%w", err)
	}

	return nil
}

// Address returns the signer identity derived from the public key.
func (k *Keypair) Address() identity.Address {
	return k.addr
}

// SignDigest signs a raw 32-byte digest.
func (k *Keypair) SignDigest(hash [32]byte) []byte {
	return sig.SignHash(k.priv, hash)
}

// SignRedemption produces a single-redemption approval for the holder.
func (k *Keypair) SignRedemption(certificateID identity.ID, service, holder identity.Address) []byte {
	return k.SignDigest(identity.ComputeRedemptionHash(certificateID, service, holder))
}

// SignCondensed produces a condensed-redemption approval covering the
// given certificate IDs and their combined amount.
func (k *Keypair) SignCondensed(certificateIDs []identity.ID, combinedAmount uint64, holder, service identity.Address) []byte {
	idsHash := identity.ComputeCondensedIDsHash(certificateIDs)

	return k.SignDigest(identity.ComputeCondensedRedemptionHash(idsHash, combinedAmount, holder, service))
}

// SignCreate signs an admin certificate-creation request. The digest
// commits to the derived certificate ID, so the signature authorizes
// exactly the given parameters.
func (k *Keypair) SignCreate(amount uint64, service identity.Address, delegates []identity.Address, metadata string, nonce uint64) []byte {
	id := identity.ComputeCertificateID(amount, service, delegates, metadata)

	return k.SignDigest(api.AdminOpDigest(api.OpCreateCertificate, nonce, service, id[:]))
}

// SignCondenserOp signs an admin condenser add or remove request.
func (k *Keypair) SignCondenserOp(op byte, delegate, service identity.Address, nonce uint64) []byte {
	return k.SignDigest(api.AdminOpDigest(op, nonce, service, delegate[:]))
}
