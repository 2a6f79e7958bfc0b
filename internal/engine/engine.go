package engine

import (
	"fmt"
	"sync"

	"RedScrip/internal/identity"
	"RedScrip/internal/ledger"
	"RedScrip/internal/logger"
	"RedScrip/internal/registry"
	"RedScrip/internal/sig"
)

// CreditLedger receives the value of successful redemptions.
type CreditLedger interface {
	// Credit adds amount to the identity's balance.
	Credit(holder identity.Address, amount uint64) error
}

// AdminGate decides whether a caller may administer the service.
type AdminGate interface {
	// RequireAdmin returns nil if the caller holds the admin role.
	RequireAdmin(caller identity.Address) error
}

// StaticAdmin is an AdminGate recognizing one fixed address.
type StaticAdmin identity.Address

// RequireAdmin implements AdminGate.
func (a StaticAdmin) RequireAdmin(caller identity.Address) error {
	if identity.Address(a) != caller {
		return ErrAdminRequired
	}
	return nil
}

// Engine drives certificate redemption: it authorizes signatures,
// enforces at-most-once claims, and credits holders.
type Engine struct {
	types      *registry.Store
	condensers *registry.CondenserSet
	claims     *ledger.Ledger
	credits    CreditLedger
	admin      AdminGate
	service    identity.Address

	mu     sync.Mutex // serializes claim check-and-mark
	events *events
}

// New creates an engine for the given service identity.
func New(types *registry.Store, condensers *registry.CondenserSet, claims *ledger.Ledger, credits CreditLedger, admin AdminGate, service identity.Address) *Engine {
	return &Engine{
		types:      types,
		condensers: condensers,
		claims:     claims,
		credits:    credits,
		admin:      admin,
		service:    service,
		events:     newEvents(),
	}
}

// Service returns the service identity redemptions are bound to.
func (e *Engine) Service() identity.Address {
	return e.service
}

// Events returns the live event stream. Lagging consumers lose events.
func (e *Engine) Events() <-chan Event {
	return e.events.ch
}

// RecentEvents returns the retained tail of events, oldest first.
func (e *Engine) RecentEvents() []Event {
	return e.events.recent()
}

// CreateCertificateType registers a certificate type. The caller must
// pass the admin gate. Re-creating an existing type returns
// created=false and emits no event.
func (e *Engine) CreateCertificateType(caller identity.Address, amount uint64, delegates []identity.Address, metadata string) (identity.ID, bool, error) {
	if err := e.admin.RequireAdmin(caller); err != nil {
		return identity.ID{}, false, err
	}

	id, created, err := e.types.Create(amount, delegates, metadata)
	if err != nil {
		return identity.ID{}, false, fmt.Errorf("create type:\n%w", err)
	}

	if created {
		e.events.emit(Event{
			Kind:          EventCertificateCreated,
			CertificateID: id,
			Amount:        amount,
			Delegates:     append([]identity.Address(nil), delegates...),
		})
	}

	return id, created, nil
}

// AddCondenserDelegate admits an address into the condenser trust set.
// The caller must pass the admin gate.
func (e *Engine) AddCondenserDelegate(caller, delegate identity.Address) (bool, error) {
	if err := e.admin.RequireAdmin(caller); err != nil {
		return false, err
	}
	return e.condensers.Add(delegate)
}

// RemoveCondenserDelegate revokes an address from the condenser trust
// set. The caller must pass the admin gate.
func (e *Engine) RemoveCondenserDelegate(caller, delegate identity.Address) (bool, error) {
	if err := e.admin.RequireAdmin(caller); err != nil {
		return false, err
	}
	return e.condensers.Remove(delegate)
}

// Redeem redeems one certificate for the holder. The signature must be
// a delegate's over the redemption hash binding certificate, service,
// and holder. Returns the credited amount.
func (e *Engine) Redeem(holder identity.Address, certificateID identity.ID, signature []byte) (uint64, error) {
	hash := identity.ComputeRedemptionHash(certificateID, e.service, holder)

	signer, err := sig.RecoverSigner(hash, signature)
	if err != nil {
		return 0, err
	}

	authorized, err := e.types.IsDelegate(certificateID, signer)
	if err != nil {
		return 0, fmt.Errorf("check delegate:\n%w", err)
	}
	if !authorized {
		// Unknown types have no delegates, so they fail here as well.
		return 0, ErrUnauthorized
	}

	amount, err := e.claimOne(certificateID, holder)
	if err != nil {
		return 0, err
	}

	// The claim is durable before the credit, so a re-entrant call
	// cannot redeem the pair again while the credit is in flight.
	if err := e.credits.Credit(holder, amount); err != nil {
		e.rollbackOne(certificateID, holder)
		return 0, fmt.Errorf("credit holder:\n%w", err)
	}

	e.events.emit(Event{
		Kind:          EventRedeemed,
		CertificateID: certificateID,
		Holder:        holder,
		Amount:        amount,
	})

	return amount, nil
}

// RedeemCondensed redeems a batch of certificates in one call. The
// signature must be a condenser's over the condensed redemption hash;
// per-type delegates carry no authority here. combinedAmount must equal
// the sum of the registered amounts, unregistered IDs counting zero.
// Either every listed type is claimed and the full amount credited, or
// nothing changes.
func (e *Engine) RedeemCondensed(holder identity.Address, combinedAmount uint64, ids []identity.ID, signature []byte) (uint64, error) {
	idsHash := identity.ComputeCondensedIDsHash(ids)
	hash := identity.ComputeCondensedRedemptionHash(idsHash, combinedAmount, holder, e.service)

	signer, err := sig.RecoverSigner(hash, signature)
	if err != nil {
		return 0, err
	}

	if !e.condensers.Contains(signer) {
		return 0, ErrUnauthorized
	}

	sum, err := e.sumAmounts(ids)
	if err != nil {
		return 0, err
	}
	if sum != combinedAmount {
		return 0, fmt.Errorf("%w: declared %d, registered %d", ErrAmountMismatch, combinedAmount, sum)
	}

	if err := e.claimAll(ids, holder); err != nil {
		return 0, err
	}

	if err := e.credits.Credit(holder, combinedAmount); err != nil {
		e.rollbackAll(ids, holder)
		return 0, fmt.Errorf("credit holder:\n%w", err)
	}

	e.events.emit(Event{
		Kind:           EventCondensedRedeemed,
		CertificateIDs: append([]identity.ID(nil), ids...),
		Holder:         holder,
		Amount:         combinedAmount,
	})

	return combinedAmount, nil
}

// claimOne marks a single claim and returns the registered amount.
func (e *Engine) claimOne(id identity.ID, holder identity.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	claimed, err := e.claims.Claimed(id, holder)
	if err != nil {
		return 0, fmt.Errorf("check claim:\n%w", err)
	}
	if claimed {
		return 0, ErrAlreadyClaimed
	}

	amount, found, err := e.types.Amount(id)
	if err != nil {
		return 0, fmt.Errorf("read amount:\n%w", err)
	}
	if !found {
		return 0, fmt.Errorf("type %s has a delegate but no record", id)
	}

	if err := e.claims.Mark(id, holder); err != nil {
		return 0, fmt.Errorf("mark claim:\n%w", err)
	}

	return amount, nil
}

// claimAll checks every claim and marks the batch atomically. A
// duplicate ID in the list fails like an already-claimed entry: the
// second occurrence would observe the first's mark.
func (e *Engine) claimAll(ids []identity.ID, holder identity.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[identity.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrAlreadyClaimed
		}
		seen[id] = struct{}{}

		claimed, err := e.claims.Claimed(id, holder)
		if err != nil {
			return fmt.Errorf("check claim:\n%w", err)
		}
		if claimed {
			return ErrAlreadyClaimed
		}
	}

	if err := e.claims.MarkAll(holder, ids); err != nil {
		return fmt.Errorf("mark claims:\n%w", err)
	}

	return nil
}

// sumAmounts recomputes the combined value of a batch. Unregistered IDs
// contribute zero.
func (e *Engine) sumAmounts(ids []identity.ID) (uint64, error) {
	var sum uint64
	for _, id := range ids {
		amount, found, err := e.types.Amount(id)
		if err != nil {
			return 0, fmt.Errorf("read amount:\n%w", err)
		}
		if !found {
			continue
		}

		next := sum + amount
		if next < sum {
			return 0, fmt.Errorf("combined amount overflows: %d + %d", sum, amount)
		}
		sum = next
	}

	return sum, nil
}

// rollbackOne clears a claim after a failed credit so the redemption
// can be retried.
func (e *Engine) rollbackOne(id identity.ID, holder identity.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.claims.Unmark(id, holder); err != nil {
		logger.Error("claim rollback failed", "id", id, "holder", holder, "err", err)
	}
}

// rollbackAll clears a batch of claims after a failed credit.
func (e *Engine) rollbackAll(ids []identity.ID, holder identity.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.claims.UnmarkAll(holder, ids); err != nil {
		logger.Error("claim rollback failed", "holder", holder, "count", len(ids), "err", err)
	}
}

// CertificateAmount returns the registered amount of a type.
func (e *Engine) CertificateAmount(id identity.ID) (uint64, bool, error) {
	return e.types.Amount(id)
}

// CertificateMetadata returns the registered metadata of a type.
func (e *Engine) CertificateMetadata(id identity.ID) (string, bool, error) {
	return e.types.Metadata(id)
}

// CertificateDelegates returns the delegates of a type.
func (e *Engine) CertificateDelegates(id identity.ID) ([]identity.Address, error) {
	return e.types.Delegates(id)
}

// IsDelegate reports whether addr may sign single redemptions of id.
func (e *Engine) IsDelegate(id identity.ID, addr identity.Address) (bool, error) {
	return e.types.IsDelegate(id, addr)
}

// IsClaimed reports whether holder has redeemed id.
func (e *Engine) IsClaimed(id identity.ID, holder identity.Address) (bool, error) {
	return e.claims.Claimed(id, holder)
}

// IsCondenserDelegate reports whether addr may sign condensed
// redemptions.
func (e *Engine) IsCondenserDelegate(addr identity.Address) bool {
	return e.condensers.Contains(addr)
}

// CondenserDelegates returns the condenser set in byte order.
func (e *Engine) CondenserDelegates() []identity.Address {
	return e.condensers.Addresses()
}

// CondenserCount returns the size of the condenser set.
func (e *Engine) CondenserCount() int {
	return e.condensers.Len()
}

// ClaimCount returns the total number of recorded claims.
func (e *Engine) ClaimCount() (int, error) {
	return e.claims.Count()
}
