package integration

import (
	"testing"

	"RedScrip/internal/identity"
)

// TestE2ERestartPersistence restarts a node on its data directory and
// expects identity, certificates, claims, balances, and the admin nonce
// to survive.
func TestE2ERestartPersistence(t *testing.T) {
	h := NewHarness(t)

	node := h.StartNode()
	cli := h.Client(node)

	admin := h.ServiceKeypair(node)
	delegate := mustKeypair(t)
	holder := mustKeypair(t)
	service := cli.Service()

	id, _, err := cli.CreateCertificateType(admin, 100, []identity.Address{delegate.Address()}, "persist")
	if err != nil {
		t.Fatalf("create certificate type: %v", err)
	}

	if _, err := cli.Redeem(holder, id, delegate.SignRedemption(id, service, holder.Address())); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	node.Shutdown(t)

	// The same data directory under a fresh process.
	restarted := h.StartNode(WithDataDir(node.DataDir()))
	cli = h.Client(restarted)

	if cli.Service() != service {
		t.Fatalf("service identity changed across restart: %s, want %s", cli.Service(), service)
	}

	info, found, err := cli.Certificate(id)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if !found {
		t.Fatal("certificate type lost across restart")
	}
	if info.Amount != 100 || info.Metadata != "persist" {
		t.Fatalf("certificate mismatch after restart: amount=%d metadata=%q", info.Amount, info.Metadata)
	}

	claimed, err := cli.Claimed(id, holder.Address())
	if err != nil {
		t.Fatalf("get claimed: %v", err)
	}
	if !claimed {
		t.Fatal("claim lost across restart")
	}

	balance, err := cli.Balance(holder.Address())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("balance after restart %d, want 100", balance)
	}

	// The claim still blocks a re-redemption.
	if _, err := cli.Redeem(holder, id, delegate.SignRedemption(id, service, holder.Address())); err == nil {
		t.Fatal("claim forgotten across restart")
	}

	// The nonce sequence continues where it stopped.
	next, err := cli.NextAdminNonce()
	if err != nil {
		t.Fatalf("get admin nonce: %v", err)
	}
	if next != 2 {
		t.Fatalf("nonce after restart %d, want 2", next)
	}

	// New work proceeds on the restarted node.
	id2, created, err := cli.CreateCertificateType(admin, 25, []identity.Address{delegate.Address()}, "fresh")
	if err != nil {
		t.Fatalf("create certificate type after restart: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh certificate type")
	}

	amount, err := cli.Redeem(holder, id2, delegate.SignRedemption(id2, service, holder.Address()))
	if err != nil {
		t.Fatalf("redeem after restart: %v", err)
	}
	if amount != 25 {
		t.Fatalf("redeemed %d, want 25", amount)
	}

	balance, err = cli.Balance(holder.Address())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 125 {
		t.Fatalf("balance %d, want 125", balance)
	}
}
