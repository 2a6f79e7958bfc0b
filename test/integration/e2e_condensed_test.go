package integration

import (
	"testing"

	"RedScrip/internal/identity"
)

// TestE2ECondensed covers the condensed path against a running node: a
// trusted condenser approves a batch of certificates with a single
// signature, and loses that authority once revoked.
func TestE2ECondensed(t *testing.T) {
	h := NewHarness(t)
	node := h.StartNode()
	cli := h.Client(node)

	admin := h.ServiceKeypair(node)
	condenser := mustKeypair(t)
	delegate := mustKeypair(t)
	holder := mustKeypair(t)
	service := cli.Service()

	// Phase 1: admit the condenser.
	changed, err := cli.AddCondenserDelegate(admin, condenser.Address())
	if err != nil {
		t.Fatalf("add condenser: %v", err)
	}
	if !changed {
		t.Fatal("expected the condenser set to change")
	}

	trusted, err := cli.IsCondenser(condenser.Address())
	if err != nil {
		t.Fatalf("get condenser: %v", err)
	}
	if !trusted {
		t.Fatal("condenser not trusted after add")
	}

	list, err := cli.Condensers()
	if err != nil {
		t.Fatalf("list condensers: %v", err)
	}
	if len(list) != 1 || list[0] != condenser.Address() {
		t.Fatalf("condenser list mismatch: %v", list)
	}

	// Phase 2: register two types and redeem both in one call.
	idA, _, err := cli.CreateCertificateType(admin, 100, []identity.Address{delegate.Address()}, "batch-a")
	if err != nil {
		t.Fatalf("create type a: %v", err)
	}

	idB, _, err := cli.CreateCertificateType(admin, 50, []identity.Address{delegate.Address()}, "batch-b")
	if err != nil {
		t.Fatalf("create type b: %v", err)
	}

	ids := []identity.ID{idA, idB}
	approval := condenser.SignCondensed(ids, 150, holder.Address(), service)

	amount, err := cli.RedeemCondensed(holder, 150, ids, approval)
	if err != nil {
		t.Fatalf("redeem condensed: %v", err)
	}
	if amount != 150 {
		t.Fatalf("redeemed %d, want 150", amount)
	}

	balance, err := cli.Balance(holder.Address())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 150 {
		t.Fatalf("balance %d, want 150", balance)
	}

	for _, id := range ids {
		claimed, err := cli.Claimed(id, holder.Address())
		if err != nil {
			t.Fatalf("get claimed %s: %v", id, err)
		}
		if !claimed {
			t.Fatalf("type %s not claimed", id)
		}
	}

	// Phase 3: a batch overlapping an already-claimed type fails whole
	// and credits nothing.
	idC, _, err := cli.CreateCertificateType(admin, 70, []identity.Address{delegate.Address()}, "batch-c")
	if err != nil {
		t.Fatalf("create type c: %v", err)
	}

	overlap := []identity.ID{idA, idC}
	approval = condenser.SignCondensed(overlap, 170, holder.Address(), service)

	if _, err := cli.RedeemCondensed(holder, 170, overlap, approval); err == nil {
		t.Fatal("overlapping condensed redemption succeeded")
	}

	balance, err = cli.Balance(holder.Address())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 150 {
		t.Fatalf("balance moved on failed batch: %d", balance)
	}

	claimed, err := cli.Claimed(idC, holder.Address())
	if err != nil {
		t.Fatalf("get claimed: %v", err)
	}
	if claimed {
		t.Fatal("failed batch left a claim behind")
	}

	// Phase 4: a declared amount that disagrees with the registered sum
	// is rejected even with a valid condenser signature.
	bad := condenser.SignCondensed([]identity.ID{idC}, 80, holder.Address(), service)
	if _, err := cli.RedeemCondensed(holder, 80, []identity.ID{idC}, bad); err == nil {
		t.Fatal("misdeclared combined amount accepted")
	}

	// Phase 5: revoke the condenser; its signatures lose authority.
	changed, err = cli.RemoveCondenserDelegate(admin, condenser.Address())
	if err != nil {
		t.Fatalf("remove condenser: %v", err)
	}
	if !changed {
		t.Fatal("expected the condenser set to change")
	}

	approval = condenser.SignCondensed([]identity.ID{idC}, 70, holder.Address(), service)
	if _, err := cli.RedeemCondensed(holder, 70, []identity.ID{idC}, approval); err == nil {
		t.Fatal("revoked condenser still authorized a redemption")
	}

	trusted, err = cli.IsCondenser(condenser.Address())
	if err != nil {
		t.Fatalf("get condenser: %v", err)
	}
	if trusted {
		t.Fatal("condenser still trusted after remove")
	}
}
