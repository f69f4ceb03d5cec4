// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/ledger"
)

// CallerHeader identifies who is calling a restricted endpoint.
const CallerHeader = "X-Caller"

// Faucet funds accounts on a development custodian.
type Faucet interface {
	Deposit(ctx context.Context, account string, amount decimal.Decimal) error
	Approve(ctx context.Context, owner string, amount decimal.Decimal) error
	Allowance(ctx context.Context, owner string) (decimal.Decimal, error)
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
}

// Rotator changes the settlement authority at runtime.
type Rotator interface {
	Set(authority string)
}

// Server routes HTTP requests to the ledger. Faucet and Rotator are optional;
// their routes are only mounted when set.
//
// The ledger refuses a mutating call while another is in flight, so the
// server queues admissions and purges and hands them over one at a time.
type Server struct {
	ledger  *ledger.Ledger
	faucet  Faucet
	rotator Rotator
	writes  sync.Mutex
}

func NewServer(l *ledger.Ledger, faucet Faucet, rotator Rotator) *Server {
	return &Server{ledger: l, faucet: faucet, rotator: rotator}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tier", s.getTier)
	r.Post("/entries", s.postEntry)

	r.Route("/batches", func(r chi.Router) {
		r.Get("/current", s.getCurrentBatch)
		r.Route("/{batch}", func(r chi.Router) {
			r.Get("/", s.getBatch)
			r.Delete("/", s.deleteBatch)
			r.Get("/entries", s.getEntries)
			r.Get("/entries/{seq}", s.getEntry)
			r.Get("/minimum-net", s.getMinimumNet)
		})
	})

	if s.rotator != nil {
		r.Put("/authority", s.putAuthority)
	}
	if s.faucet != nil {
		r.Route("/custodian/{account}", func(r chi.Router) {
			r.Get("/", s.getAccountFunds)
			r.Post("/deposit", s.postDeposit)
			r.Post("/approve", s.postApprove)
		})
	}
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidReferrer),
		errors.Is(err, ledger.ErrInvalidParticipant),
		errors.Is(err, custodian.ErrInvalidAmount),
		errors.Is(err, custodian.ErrInvalidAccount),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransferFailed),
		errors.Is(err, ledger.ErrNotificationFailed),
		errors.Is(err, ledger.ErrSettlementAuthorityUnset):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrAllowance):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUnauthorizedPurge):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrBatchFull),
		errors.Is(err, ledger.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrMinimumNetNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrEntryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func batchParam(r *http.Request) (uint64, error) {
	batch, err := strconv.ParseUint(chi.URLParam(r, "batch"), 10, 64)
	if err != nil || batch == 0 {
		return 0, errors.Join(errBadRequest, errors.New("batch must be a positive integer"))
	}
	return batch, nil
}
