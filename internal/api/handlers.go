package api

import (
	"net/http"

	"RedScrip/internal/identity"
	"RedScrip/internal/logger"
)

// handleCreateCertificate handles POST /certificates requests.
func (s *Server) handleCreateCertificate(w http.ResponseWriter, r *http.Request) {
	var req CreateCertificateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The signed payload is the derived ID, which commits to every
	// creation parameter at once.
	id := identity.ComputeCertificateID(req.Amount, s.state.Service(), req.Delegates, req.Metadata)

	if err := s.auth.Verify(OpCreateCertificate, req.Nonce, id[:], req.Caller, req.Signature); err != nil {
		writeDomainError(w, err)
		return
	}

	id, created, err := s.registrar.CreateCertificateType(req.Caller, req.Amount, req.Delegates, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Info("certificate type registered", "id", id, "created", created)

	writeJSON(w, http.StatusOK, CreateCertificateResponse{ID: id, Created: created})
}

// handleGetCertificate handles GET /certificates/{id} requests.
func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := identity.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, found, err := s.state.CertificateAmount(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown certificate type")
		return
	}

	metadata, _, err := s.state.CertificateMetadata(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	delegates, err := s.state.CertificateDelegates(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CertificateResponse{
		ID:        id,
		Amount:    amount,
		Metadata:  metadata,
		Delegates: delegates,
	})
}

// handleGetClaimed handles GET /certificates/{id}/claimed/{holder}
// requests. Unknown certificates report false rather than 404: a claim
// that was never marked does not exist either way.
func (s *Server) handleGetClaimed(w http.ResponseWriter, r *http.Request) {
	id, err := identity.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	holder, err := identity.ParseAddress(r.PathValue("holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claimed, err := s.state.IsClaimed(id, holder)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimedResponse{Claimed: claimed})
}

// handleAddCondenser handles POST /condensers requests.
func (s *Server) handleAddCondenser(w http.ResponseWriter, r *http.Request) {
	s.handleCondenserChange(w, r, OpAddCondenser, s.registrar.AddCondenserDelegate)
}

// handleRemoveCondenser handles POST /condensers/remove requests.
func (s *Server) handleRemoveCondenser(w http.ResponseWriter, r *http.Request) {
	s.handleCondenserChange(w, r, OpRemoveCondenser, s.registrar.RemoveCondenserDelegate)
}

// handleCondenserChange verifies an admin condenser request and applies it.
func (s *Server) handleCondenserChange(w http.ResponseWriter, r *http.Request, op byte, apply func(caller, delegate identity.Address) (bool, error)) {
	var req CondenserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.auth.Verify(op, req.Nonce, req.Delegate[:], req.Caller, req.Signature); err != nil {
		writeDomainError(w, err)
		return
	}

	changed, err := apply(req.Caller, req.Delegate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Info("condenser set changed", "op", op, "delegate", req.Delegate, "changed", changed)

	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// handleListCondensers handles GET /condensers requests.
func (s *Server) handleListCondensers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"condensers": s.state.CondenserDelegates(),
	})
}

// handleGetCondenser handles GET /condensers/{identity} requests.
func (s *Server) handleGetCondenser(w http.ResponseWriter, r *http.Request) {
	delegate, err := identity.ParseAddress(r.PathValue("identity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TrustedResponse{
		Trusted: s.state.IsCondenserDelegate(delegate),
	})
}

// handleRedeem handles POST /redeem requests.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The holder proves control of the destination address by signing
	// the same hash the delegate signed.
	hash := identity.ComputeRedemptionHash(req.CertificateID, s.state.Service(), req.Holder)
	if err := verifyHolder(hash, req.Holder, req.Auth); err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := s.redeemer.Redeem(req.Holder, req.CertificateID, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Debug("redeemed", "certificate", req.CertificateID, "holder", req.Holder, "amount", amount)

	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

// handleRedeemCondensed handles POST /redeem/condensed requests.
func (s *Server) handleRedeemCondensed(w http.ResponseWriter, r *http.Request) {
	var req RedeemCondensedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idsHash := identity.ComputeCondensedIDsHash(req.CertificateIDs)
	hash := identity.ComputeCondensedRedemptionHash(idsHash, req.CombinedAmount, req.Holder, s.state.Service())

	if err := verifyHolder(hash, req.Holder, req.Auth); err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := s.redeemer.RedeemCondensed(req.Holder, req.CombinedAmount, req.CertificateIDs, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger.Debug("condensed redeemed", "certificates", len(req.CertificateIDs), "holder", req.Holder, "amount", amount)

	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

// handleHashCertificateID handles POST /hash/certificate-id requests.
func (s *Server) handleHashCertificateID(w http.ResponseWriter, r *http.Request) {
	var req HashCertificateIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := identity.ComputeCertificateID(req.Amount, s.state.Service(), req.Delegates, req.Metadata)

	writeJSON(w, http.StatusOK, IDResponse{ID: id})
}

// handleHashRedemption handles POST /hash/redemption requests.
func (s *Server) handleHashRedemption(w http.ResponseWriter, r *http.Request) {
	var req HashRedemptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash := identity.ComputeRedemptionHash(req.CertificateID, s.state.Service(), req.Holder)

	writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

// handleHashCondensedIDs handles POST /hash/condensed-ids requests.
func (s *Server) handleHashCondensedIDs(w http.ResponseWriter, r *http.Request) {
	var req HashCondensedIDsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, HashResponse{
		Hash: identity.ComputeCondensedIDsHash(req.CertificateIDs),
	})
}

// handleHashCondensedRedemption handles POST /hash/condensed-redemption
// requests.
func (s *Server) handleHashCondensedRedemption(w http.ResponseWriter, r *http.Request) {
	var req HashCondensedRedemptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idsHash := identity.ComputeCondensedIDsHash(req.CertificateIDs)
	hash := identity.ComputeCondensedRedemptionHash(idsHash, req.CombinedAmount, req.Holder, s.state.Service())

	writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

// handleGetBalance handles GET /balances/{identity} requests.
func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	holder, err := identity.ParseAddress(r.PathValue("identity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := s.balances.Balance(holder)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// handleEvents handles GET /events requests.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.state.RecentEvents(),
	})
}

// handleSnapshot handles GET /snapshot requests.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots not available")
		return
	}

	data, err := s.snapshots.Snapshot()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
