package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (s *Server) getTier(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Tier())
}

func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Participant string `json:"participant"`
		Referrer    string `json:"referrer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(errBadRequest, errors.New("invalid request body")))
		return
	}

	s.writes.Lock()
	entry, err := s.ledger.AdmitEntry(r.Context(), req.Participant, req.Referrer)
	s.writes.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) getCurrentBatch(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.CurrentBatch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := batchParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := s.ledger.BatchAccount(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) deleteBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := batchParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writes.Lock()
	removed, err := s.ledger.PurgeBatch(r.Context(), r.Header.Get(CallerHeader), batch)
	s.writes.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": batch, "entries_removed": removed})
}

func (s *Server) getEntries(w http.ResponseWriter, r *http.Request) {
	batch, err := batchParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.ledger.Entries(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	batch, err := batchParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		writeError(w, errors.Join(errBadRequest, errors.New("sequence must be an integer")))
		return
	}
	entry, err := s.ledger.Entry(r.Context(), batch, seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) getMinimumNet(w http.ResponseWriter, r *http.Request) {
	batch, err := batchParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.ledger.ValidateMinimumNet(r.Context(), batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) putAuthority(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(errBadRequest, errors.New("invalid request body")))
		return
	}
	s.rotator.Set(req.Authority)
	writeJSON(w, http.StatusOK, req)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) getAccountFunds(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	balance, err := s.faucet.Balance(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	allowance, err := s.faucet.Allowance(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"balance":   balance,
		"allowance": allowance,
	})
}

func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(errBadRequest, errors.New("invalid request body")))
		return
	}
	if err := s.faucet.Deposit(r.Context(), chi.URLParam(r, "account"), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	s.getAccountFunds(w, r)
}

func (s *Server) postApprove(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(errBadRequest, errors.New("invalid request body")))
		return
	}
	if err := s.faucet.Approve(r.Context(), chi.URLParam(r, "account"), req.Amount); err != nil {
		writeError(w, err)
		return
	}
	s.getAccountFunds(w, r)
}
