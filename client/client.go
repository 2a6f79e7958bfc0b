package client

import (
	"errors"
	"fmt"

	"RedScrip/internal/api"
	"RedScrip/internal/engine"
	"RedScrip/internal/identity"
)

// Client connects to a RedScrip node via HTTP.
type Client struct {
	nodeAddr string           // nodeAddr is the HTTP address (e.g. "127.0.0.1:8080")
	service  identity.Address // service is the node's service identity
	admin    identity.Address // admin is the node's admin identity
}

// Status holds the node status reported by GET /status.
type Status struct {
	Service    identity.Address `json:"service"`
	Admin      identity.Address `json:"admin"`
	Condensers int              `json:"condensers"`
	Claims     int              `json:"claims"`
}

// CertificateInfo describes a registered certificate type.
type CertificateInfo struct {
	ID        identity.ID        // ID is the derived certificate identifier
	Amount    uint64             // Amount is the per-holder redemption amount
	Metadata  string             // Metadata is the opaque descriptor string
	Delegates []identity.Address // Delegates may approve single redemptions
}

// NewClient creates a client connected to a node. It fetches the
// service and admin identities from the node's /status endpoint.
func NewClient(nodeAddr string) (*Client, error) {
	var status Status
	if err := httpGet("http://"+nodeAddr+"/status", &status); err != nil {
		return nil, fmt.Errorf("get status:\n%w", err)
	}

	return &Client{
		nodeAddr: nodeAddr,
		service:  status.Service,
		admin:    status.Admin,
	}, nil
}

// Service returns the node's service identity.
func (c *Client) Service() identity.Address {
	return c.service
}

// Admin returns the node's admin identity.
func (c *Client) Admin() identity.Address {
	return c.admin
}

// Health checks node liveness.
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}

	return httpGet("http://"+c.nodeAddr+"/health", &resp)
}

// Status fetches the node's current counters.
func (c *Client) Status() (*Status, error) {
	var status Status
	if err := httpGet("http://"+c.nodeAddr+"/status", &status); err != nil {
		return nil, fmt.Errorf("get status:\n%w", err)
	}

	return &status, nil
}

// NextAdminNonce returns the nonce the next admin request must carry.
func (c *Client) NextAdminNonce() (uint64, error) {
	var resp struct {
		Nonce uint64 `json:"nonce"`
	}

	if err := httpGet("http://"+c.nodeAddr+"/admin/nonce", &resp); err != nil {
		return 0, fmt.Errorf("get admin nonce:\n%w", err)
	}

	return resp.Nonce, nil
}

// CreateCertificateType registers a certificate type as the admin. It
// fetches the next nonce, signs the request and posts it. Returns the
// derived ID and whether a new type was created.
func (c *Client) CreateCertificateType(admin *Keypair, amount uint64, delegates []identity.Address, metadata string) (identity.ID, bool, error) {
	nonce, err := c.NextAdminNonce()
	if err != nil {
		return identity.ID{}, false, err
	}

	req := api.CreateCertificateRequest{
		Caller:    admin.Address(),
		Nonce:     nonce,
		Amount:    amount,
		Delegates: delegates,
		Metadata:  metadata,
		Signature: admin.SignCreate(amount, c.service, delegates, metadata, nonce),
	}

	var resp api.CreateCertificateResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/certificates", req, &resp); err != nil {
		return identity.ID{}, false, fmt.Errorf("create certificate:\n%w", err)
	}

	return resp.ID, resp.Created, nil
}

// AddCondenserDelegate adds a delegate to the condenser set as the admin.
func (c *Client) AddCondenserDelegate(admin *Keypair, delegate identity.Address) (bool, error) {
	return c.condenserChange(admin, delegate, api.OpAddCondenser, "/condensers")
}

// RemoveCondenserDelegate removes a delegate from the condenser set as
// the admin.
func (c *Client) RemoveCondenserDelegate(admin *Keypair, delegate identity.Address) (bool, error) {
	return c.condenserChange(admin, delegate, api.OpRemoveCondenser, "/condensers/remove")
}

// condenserChange signs and posts a condenser add or remove request.
func (c *Client) condenserChange(admin *Keypair, delegate identity.Address, op byte, path string) (bool, error) {
	nonce, err := c.NextAdminNonce()
	if err != nil {
		return false, err
	}

	req := api.CondenserRequest{
		Caller:    admin.Address(),
		Nonce:     nonce,
		Delegate:  delegate,
		Signature: admin.SignCondenserOp(op, delegate, c.service, nonce),
	}

	var resp api.ChangedResponse
	if err := httpPostJSON("http://"+c.nodeAddr+path, req, &resp); err != nil {
		return false, fmt.Errorf("change condenser set:\n%w", err)
	}

	return resp.Changed, nil
}

// Redeem submits a single redemption for the holder. approval is the
// delegate's signature over the redemption hash; the holder keypair
// signs the same hash to authenticate the request.
func (c *Client) Redeem(holder *Keypair, certificateID identity.ID, approval []byte) (uint64, error) {
	hash := identity.ComputeRedemptionHash(certificateID, c.service, holder.Address())

	req := api.RedeemRequest{
		Holder:        holder.Address(),
		CertificateID: certificateID,
		Signature:     approval,
		Auth:          holder.SignDigest(hash),
	}

	var resp api.AmountResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/redeem", req, &resp); err != nil {
		return 0, fmt.Errorf("redeem:\n%w", err)
	}

	return resp.Amount, nil
}

// RedeemCondensed submits a condensed redemption for the holder.
// approval is a condenser delegate's signature over the condensed
// redemption hash.
func (c *Client) RedeemCondensed(holder *Keypair, combinedAmount uint64, certificateIDs []identity.ID, approval []byte) (uint64, error) {
	idsHash := identity.ComputeCondensedIDsHash(certificateIDs)
	hash := identity.ComputeCondensedRedemptionHash(idsHash, combinedAmount, holder.Address(), c.service)

	req := api.RedeemCondensedRequest{
		Holder:         holder.Address(),
		CombinedAmount: combinedAmount,
		CertificateIDs: certificateIDs,
		Signature:      approval,
		Auth:           holder.SignDigest(hash),
	}

	var resp api.AmountResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/redeem/condensed", req, &resp); err != nil {
		return 0, fmt.Errorf("redeem condensed:\n%w", err)
	}

	return resp.Amount, nil
}

// Certificate fetches a certificate type by ID. The second return
// reports whether the type is registered.
func (c *Client) Certificate(id identity.ID) (*CertificateInfo, bool, error) {
	var resp api.CertificateResponse

	err := httpGet("http://"+c.nodeAddr+"/certificates/"+id.String(), &resp)
	if errors.Is(err, errNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get certificate:\n%w", err)
	}

	return &CertificateInfo{
		ID:        resp.ID,
		Amount:    resp.Amount,
		Metadata:  resp.Metadata,
		Delegates: resp.Delegates,
	}, true, nil
}

// Claimed reports whether the holder has already claimed the certificate.
func (c *Client) Claimed(certificateID identity.ID, holder identity.Address) (bool, error) {
	var resp api.ClaimedResponse

	url := "http://" + c.nodeAddr + "/certificates/" + certificateID.String() + "/claimed/" + holder.String()
	if err := httpGet(url, &resp); err != nil {
		return false, fmt.Errorf("get claimed:\n%w", err)
	}

	return resp.Claimed, nil
}

// Condensers returns the current condenser delegate set.
func (c *Client) Condensers() ([]identity.Address, error) {
	var resp struct {
		Condensers []identity.Address `json:"condensers"`
	}

	if err := httpGet("http://"+c.nodeAddr+"/condensers", &resp); err != nil {
		return nil, fmt.Errorf("get condensers:\n%w", err)
	}

	return resp.Condensers, nil
}

// IsCondenser reports whether the delegate is in the condenser set.
func (c *Client) IsCondenser(delegate identity.Address) (bool, error) {
	var resp api.TrustedResponse

	if err := httpGet("http://"+c.nodeAddr+"/condensers/"+delegate.String(), &resp); err != nil {
		return false, fmt.Errorf("get condenser:\n%w", err)
	}

	return resp.Trusted, nil
}

// Balance returns the holder's accumulated balance.
func (c *Client) Balance(holder identity.Address) (uint64, error) {
	var resp api.BalanceResponse

	if err := httpGet("http://"+c.nodeAddr+"/balances/"+holder.String(), &resp); err != nil {
		return 0, fmt.Errorf("get balance:\n%w", err)
	}

	return resp.Balance, nil
}

// Events returns the node's most recent engine events.
func (c *Client) Events() ([]engine.Event, error) {
	var resp struct {
		Events []engine.Event `json:"events"`
	}

	if err := httpGet("http://"+c.nodeAddr+"/events", &resp); err != nil {
		return nil, fmt.Errorf("get events:\n%w", err)
	}

	return resp.Events, nil
}

// Snapshot downloads a compressed state snapshot.
func (c *Client) Snapshot() ([]byte, error) {
	data, err := httpGetBytes("http://" + c.nodeAddr + "/snapshot")
	if err != nil {
		return nil, fmt.Errorf("get snapshot:\n%w", err)
	}

	return data, nil
}

// CertificateID asks the node to derive a certificate ID under its
// service identity.
func (c *Client) CertificateID(amount uint64, delegates []identity.Address, metadata string) (identity.ID, error) {
	req := api.HashCertificateIDRequest{
		Amount:    amount,
		Delegates: delegates,
		Metadata:  metadata,
	}

	var resp api.IDResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/hash/certificate-id", req, &resp); err != nil {
		return identity.ID{}, fmt.Errorf("derive certificate id:\n%w", err)
	}

	return resp.ID, nil
}

// RedemptionHash asks the node for a single-redemption signing hash.
func (c *Client) RedemptionHash(certificateID identity.ID, holder identity.Address) (identity.Hash, error) {
	req := api.HashRedemptionRequest{CertificateID: certificateID, Holder: holder}

	var resp api.HashResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/hash/redemption", req, &resp); err != nil {
		return identity.Hash{}, fmt.Errorf("derive redemption hash:\n%w", err)
	}

	return resp.Hash, nil
}

// CondensedIDsHash asks the node for the digest of a certificate-ID list.
func (c *Client) CondensedIDsHash(certificateIDs []identity.ID) (identity.Hash, error) {
	req := api.HashCondensedIDsRequest{CertificateIDs: certificateIDs}

	var resp api.HashResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/hash/condensed-ids", req, &resp); err != nil {
		return identity.Hash{}, fmt.Errorf("derive condensed ids hash:\n%w", err)
	}

	return resp.Hash, nil
}

// CondensedRedemptionHash asks the node for a condensed-redemption
// signing hash.
func (c *Client) CondensedRedemptionHash(certificateIDs []identity.ID, combinedAmount uint64, holder identity.Address) (identity.Hash, error) {
	req := api.HashCondensedRedemptionRequest{
		CertificateIDs: certificateIDs,
		CombinedAmount: combinedAmount,
		Holder:         holder,
	}

	var resp api.HashResponse
	if err := httpPostJSON("http://"+c.nodeAddr+"/hash/condensed-redemption", req, &resp); err != nil {
		return identity.Hash{}, fmt.Errorf("derive condensed redemption hash:\n%w", err)
	}

	return resp.Hash, nil
}
