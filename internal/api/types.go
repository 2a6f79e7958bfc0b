package api

import (
	"encoding/hex"
	"fmt"

	"RedScrip/internal/identity"
)

// HexBytes marshals as lowercase hex in JSON bodies, matching the hex
// encoding used for IDs and addresses.
type HexBytes []byte

// MarshalText encodes the bytes as hex.
func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

// UnmarshalText decodes hex into the receiver.
func (b *HexBytes) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid hex: %v", err)
	}

	*b = decoded

	return nil
}

// CreateCertificateRequest is the admin-signed body of POST /certificates.
// The signature covers the derived certificate ID, which in turn commits
// to amount, delegates and metadata.
type CreateCertificateRequest struct {
	Caller    identity.Address   `json:"caller"`
	Nonce     uint64             `json:"nonce"`
	Amount    uint64             `json:"amount"`
	Delegates []identity.Address `json:"delegates"`
	Metadata  string             `json:"metadata"`
	Signature HexBytes           `json:"signature"`
}

// CondenserRequest is the admin-signed body of POST /condensers and
// POST /condensers/remove.
type CondenserRequest struct {
	Caller    identity.Address `json:"caller"`
	Nonce     uint64           `json:"nonce"`
	Delegate  identity.Address `json:"delegate"`
	Signature HexBytes         `json:"signature"`
}

// RedeemRequest is the body of POST /redeem. Signature is the delegate
// approval; Auth is the holder's own signature over the same hash.
type RedeemRequest struct {
	Holder        identity.Address `json:"holder"`
	CertificateID identity.ID      `json:"certificate_id"`
	Signature     HexBytes         `json:"signature"`
	Auth          HexBytes         `json:"auth"`
}

// RedeemCondensedRequest is the body of POST /redeem/condensed.
type RedeemCondensedRequest struct {
	Holder         identity.Address `json:"holder"`
	CombinedAmount uint64           `json:"combined_amount"`
	CertificateIDs []identity.ID    `json:"certificate_ids"`
	Signature      HexBytes         `json:"signature"`
	Auth           HexBytes         `json:"auth"`
}

// HashCertificateIDRequest asks for the certificate ID derived from the
// given parameters under this node's service identity.
type HashCertificateIDRequest struct {
	Amount    uint64             `json:"amount"`
	Delegates []identity.Address `json:"delegates"`
	Metadata  string             `json:"metadata"`
}

// HashRedemptionRequest asks for a single-redemption signing hash.
type HashRedemptionRequest struct {
	CertificateID identity.ID      `json:"certificate_id"`
	Holder        identity.Address `json:"holder"`
}

// HashCondensedIDsRequest asks for the digest of a certificate-ID list.
type HashCondensedIDsRequest struct {
	CertificateIDs []identity.ID `json:"certificate_ids"`
}

// HashCondensedRedemptionRequest asks for a condensed-redemption
// signing hash.
type HashCondensedRedemptionRequest struct {
	CertificateIDs []identity.ID    `json:"certificate_ids"`
	CombinedAmount uint64           `json:"combined_amount"`
	Holder         identity.Address `json:"holder"`
}

// CreateCertificateResponse reports the derived ID and whether the call
// registered a new type.
type CreateCertificateResponse struct {
	ID      identity.ID `json:"id"`
	Created bool        `json:"created"`
}

// ChangedResponse reports whether a condenser change took effect.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}

// AmountResponse carries the amount credited by a redemption.
type AmountResponse struct {
	Amount uint64 `json:"amount"`
}

// CertificateResponse describes a registered certificate type.
type CertificateResponse struct {
	ID        identity.ID        `json:"id"`
	Amount    uint64             `json:"amount"`
	Metadata  string             `json:"metadata"`
	Delegates []identity.Address `json:"delegates"`
}

// ClaimedResponse reports whether a holder has claimed a certificate.
type ClaimedResponse struct {
	Claimed bool `json:"claimed"`
}

// TrustedResponse reports condenser-set membership.
type TrustedResponse struct {
	Trusted bool `json:"trusted"`
}

// BalanceResponse carries a holder's accumulated balance.
type BalanceResponse struct {
	Balance uint64 `json:"balance"`
}

// IDResponse carries a derived certificate ID.
type IDResponse struct {
	ID identity.ID `json:"id"`
}

// HashResponse carries a derived signing hash.
type HashResponse struct {
	Hash identity.Hash `json:"hash"`
}
