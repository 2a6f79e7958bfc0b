package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"RedScrip/internal/engine"
	"RedScrip/internal/identity"
	"RedScrip/internal/logger"
	"RedScrip/internal/sig"
)

const (
	// maxRequestSize is the maximum request body size in bytes.
	maxRequestSize = 1 << 20 // 1 MB
)

// Redeemer executes redemptions.
type Redeemer interface {
	Redeem(holder identity.Address, certificateID identity.ID, signature []byte) (uint64, error)
	RedeemCondensed(holder identity.Address, combinedAmount uint64, certificateIDs []identity.ID, signature []byte) (uint64, error)
}

// Registrar applies admin-gated registry changes.
type Registrar interface {
	CreateCertificateType(caller identity.Address, amount uint64, delegates []identity.Address, metadata string) (identity.ID, bool, error)
	AddCondenserDelegate(caller, delegate identity.Address) (bool, error)
	RemoveCondenserDelegate(caller, delegate identity.Address) (bool, error)
}

// StateReader exposes engine state for lookups and monitoring.
type StateReader interface {
	Service() identity.Address
	CertificateAmount(id identity.ID) (uint64, bool, error)
	CertificateMetadata(id identity.ID) (string, bool, error)
	CertificateDelegates(id identity.ID) ([]identity.Address, error)
	IsClaimed(id identity.ID, holder identity.Address) (bool, error)
	IsCondenserDelegate(delegate identity.Address) bool
	CondenserDelegates() []identity.Address
	CondenserCount() int
	ClaimCount() (int, error)
	RecentEvents() []engine.Event
}

// BalanceReader exposes credited holder balances.
type BalanceReader interface {
	Balance(holder identity.Address) (uint64, error)
}

// SnapshotProvider produces a compressed state export on demand.
type SnapshotProvider interface {
	Snapshot() ([]byte, error)
}

// Server is the HTTP API server.
type Server struct {
	addr      string           // addr is the HTTP listen address
	admin     identity.Address // admin is the gate identity reported by GET /status
	redeemer  Redeemer         // redeemer executes redemptions
	registrar Registrar        // registrar applies gated registry changes
	state     StateReader      // state serves read endpoints
	balances  BalanceReader    // balances serves GET /balances
	auth      *AdminAuth       // auth verifies admin signatures and nonces
	snapshots SnapshotProvider // snapshots is nil when exports are disabled
	server    *http.Server     // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, admin identity.Address, redeemer Redeemer, registrar Registrar, state StateReader, balances BalanceReader, auth *AdminAuth, snapshots SnapshotProvider) *Server {
	return &Server{
		addr:      addr,
		admin:     admin,
		redeemer:  redeemer,
		registrar: registrar,
		state:     state,
		balances:  balances,
		auth:      auth,
		snapshots: snapshots,
	}
}

// Handler builds the route table. Exported so tests can mount the API
// on httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /admin/nonce", s.handleAdminNonce)

	mux.HandleFunc("POST /certificates", s.handleCreateCertificate)
	mux.HandleFunc("GET /certificates/{id}", s.handleGetCertificate)
	mux.HandleFunc("GET /certificates/{id}/claimed/{holder}", s.handleGetClaimed)

	mux.HandleFunc("POST /condensers", s.handleAddCondenser)
	mux.HandleFunc("POST /condensers/remove", s.handleRemoveCondenser)
	mux.HandleFunc("GET /condensers", s.handleListCondensers)
	mux.HandleFunc("GET /condensers/{identity}", s.handleGetCondenser)

	mux.HandleFunc("POST /redeem", s.handleRedeem)
	mux.HandleFunc("POST /redeem/condensed", s.handleRedeemCondensed)

	mux.HandleFunc("POST /hash/certificate-id", s.handleHashCertificateID)
	mux.HandleFunc("POST /hash/redemption", s.handleHashRedemption)
	mux.HandleFunc("POST /hash/condensed-ids", s.handleHashCondensedIDs)
	mux.HandleFunc("POST /hash/condensed-redemption", s.handleHashCondensedRedemption)

	mux.HandleFunc("GET /balances/{identity}", s.handleGetBalance)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	claims, err := s.state.ClaimCount()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":    s.state.Service(),
		"admin":      s.admin,
		"condensers": s.state.CondenserCount(),
		"claims":     claims,
	})
}

// handleAdminNonce handles GET /admin/nonce requests. It returns the
// nonce the next admin request must carry.
func (s *Server) handleAdminNonce(w http.ResponseWriter, r *http.Request) {
	nonce, err := s.auth.NextNonce()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{
		"nonce": nonce,
	})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid json: %v", err)
	}

	return nil
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, sig.ErrInvalidFormat),
		errors.Is(err, sig.ErrRecoveryFailed),
		errors.Is(err, engine.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrAdminRequired),
		errors.Is(err, ErrAuthMismatch):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, ErrBadNonce):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err under its mapped status code.
func writeDomainError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("internal api error", "error", err)
	}

	writeError(w, status, err.Error())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
