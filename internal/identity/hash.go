package identity

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Context tags written into the hasher ahead of the fields, so no two
// derivations can collide on the same input bytes.
const (
	certificateIDTag       = "redscrip/certificate-id/v1"
	redemptionTag          = "redscrip/redemption/v1"
	condensedIDsTag        = "redscrip/condensed-ids/v1"
	condensedRedemptionTag = "redscrip/condensed-redemption/v1"
)

// ComputeCertificateID derives the identifier of a certificate type.
// The encoding is fixed so independent implementations derive identical
// IDs from identical logical inputs:
//
//	tag ‖ amount u64 BE ‖ service 20B ‖ delegate count u32 BE ‖ delegates 20B each ‖ metadata
//
// Delegate order is significant: the same set in a different order yields
// a different ID.
func ComputeCertificateID(amount uint64, service Address, delegates []Address, metadata string) ID {
	h := blake3.New()
	h.Write([]byte(certificateIDTag))

	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	h.Write(amt[:])

	h.Write(service[:])

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(delegates)))
	h.Write(count[:])

	for _, d := range delegates {
		h.Write(d[:])
	}

	h.Write([]byte(metadata))

	var id ID
	h.Sum(id[:0])

	return id
}

// ComputeRedemptionHash derives the hash a per-type delegate signs to
// approve a single redemption. It binds the certificate, the holder, and
// this service instance, so a signature cannot be replayed for another
// holder or against another deployment.
//
//	tag ‖ certificateID 32B ‖ service 20B ‖ holder 20B
func ComputeRedemptionHash(certificateID ID, service, holder Address) Hash {
	h := blake3.New()
	h.Write([]byte(redemptionTag))
	h.Write(certificateID[:])
	h.Write(service[:])
	h.Write(holder[:])

	var out Hash
	h.Sum(out[:0])

	return out
}

// ComputeCondensedIDsHash derives the order-sensitive digest of a
// certificate-ID list.
//
//	tag ‖ id_1 32B ‖ … ‖ id_n 32B
func ComputeCondensedIDsHash(ids []ID) Hash {
	h := blake3.New()
	h.Write([]byte(condensedIDsTag))

	for _, id := range ids {
		h.Write(id[:])
	}

	var out Hash
	h.Sum(out[:0])

	return out
}

// ComputeCondensedRedemptionHash derives the hash a condenser delegate
// signs to approve a batched redemption.
//
//	tag ‖ condensedIDsHash 32B ‖ combinedAmount u64 BE ‖ holder 20B ‖ service 20B
func ComputeCondensedRedemptionHash(idsHash Hash, combinedAmount uint64, holder, service Address) Hash {
	h := blake3.New()
	h.Write([]byte(condensedRedemptionTag))
	h.Write(idsHash[:])

	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], combinedAmount)
	h.Write(amt[:])

	h.Write(holder[:])
	h.Write(service[:])

	var out Hash
	h.Sum(out[:0])

	return out
}
