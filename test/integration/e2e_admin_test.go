package integration

import (
	"net/http"
	"testing"

	"RedScrip/internal/api"
	"RedScrip/internal/identity"
)

// TestE2ESeparateAdmin runs a node whose admin is not the service key
// and checks the gate follows the configured identity.
func TestE2ESeparateAdmin(t *testing.T) {
	h := NewHarness(t)

	admin := mustKeypair(t)
	node := h.StartNode(WithAdmin(admin.Address().String()))
	cli := h.Client(node)

	if cli.Admin() != admin.Address() {
		t.Fatalf("admin %s, want %s", cli.Admin(), admin.Address())
	}
	if cli.Admin() == cli.Service() {
		t.Fatal("admin should differ from the service identity")
	}

	// The service key no longer passes the admin gate.
	service := h.ServiceKeypair(node)
	if _, _, err := cli.CreateCertificateType(service, 10, nil, "gated"); err == nil {
		t.Fatal("service key passed the admin gate")
	}

	// The configured admin does.
	delegate := mustKeypair(t)
	_, created, err := cli.CreateCertificateType(admin, 10, []identity.Address{delegate.Address()}, "gated")
	if err != nil {
		t.Fatalf("create certificate type: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh certificate type")
	}
}

// TestE2EAdminNonceReplay re-posts a signed admin request byte for
// byte and expects the node to reject it: each signature commits to a
// nonce the node accepts exactly once.
func TestE2EAdminNonceReplay(t *testing.T) {
	h := NewHarness(t)
	node := h.StartNode()
	cli := h.Client(node)

	admin := h.ServiceKeypair(node)
	condenser := mustKeypair(t)

	nonce, err := cli.NextAdminNonce()
	if err != nil {
		t.Fatalf("get admin nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("first nonce %d, want 1", nonce)
	}

	req := api.CondenserRequest{
		Caller:    admin.Address(),
		Nonce:     nonce,
		Delegate:  condenser.Address(),
		Signature: admin.SignCondenserOp(api.OpAddCondenser, condenser.Address(), cli.Service(), nonce),
	}

	status, msg := postJSON(t, node.HTTPAddr(), "/condensers", req)
	if status != http.StatusOK {
		t.Fatalf("add condenser: status %d: %s", status, msg)
	}

	// The identical request again.
	status, msg = postJSON(t, node.HTTPAddr(), "/condensers", req)
	if status == http.StatusOK {
		t.Fatal("replayed admin request accepted")
	}
	t.Logf("Replay rejected: status=%d error=%q", status, msg)

	// A skipped-ahead nonce is rejected as well, fresh signature or not.
	req.Nonce = nonce + 5
	req.Signature = admin.SignCondenserOp(api.OpAddCondenser, condenser.Address(), cli.Service(), req.Nonce)

	status, _ = postJSON(t, node.HTTPAddr(), "/condensers", req)
	if status == http.StatusOK {
		t.Fatal("skipped nonce accepted")
	}

	// The counter advanced exactly once.
	next, err := cli.NextAdminNonce()
	if err != nil {
		t.Fatalf("get admin nonce: %v", err)
	}
	if next != nonce+1 {
		t.Fatalf("next nonce %d, want %d", next, nonce+1)
	}

	// The rejected attempts do not block the next legitimate request.
	changed, err := cli.RemoveCondenserDelegate(admin, condenser.Address())
	if err != nil {
		t.Fatalf("remove condenser: %v", err)
	}
	if !changed {
		t.Fatal("expected the condenser set to change")
	}
}
