// Package api serves a read-only JSON view of the ledger: launches, funding
// records, timelocks, batches, raw accounts and program events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/launchpad"
	"solana-dao-lab/internal/observability"
	"solana-dao-lab/internal/timelock"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Server is the HTTP explorer.
type Server struct {
	rt        *ledger.Runtime
	launches  *launchpad.Client
	timelocks *timelock.Client
	logger    *zap.Logger
	mux       *http.ServeMux
}

// NewServer creates an explorer over rt. A nil logger disables request logging.
func NewServer(rt *ledger.Runtime, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rt:        rt,
		launches:  launchpad.NewClient(rt, logger),
		timelocks: timelock.NewClient(rt, logger),
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())
	s.mux.HandleFunc("GET /slot", s.handleSlot)
	s.mux.HandleFunc("GET /accounts/{address}", s.handleAccount)
	s.mux.HandleFunc("GET /daos/{dao}/launch", s.handleDAOLaunch)
	s.mux.HandleFunc("GET /launches/{address}", s.handleLaunch)
	s.mux.HandleFunc("GET /launches/{address}/funders", s.handleFunders)
	s.mux.HandleFunc("GET /timelocks/{address}", s.handleTimelock)
	s.mux.HandleFunc("GET /batches/{address}", s.handleBatch)
	s.mux.HandleFunc("GET /events", s.handleEvents)
}

// Handler returns the routed handler wrapped in request-id, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	return s.middleware(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown %s: %w", addr, err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status), elapsed.Seconds())
		s.logger.Debug("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "slot": s.rt.Slot()})
}

func (s *Server) handleSlot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"slot": s.rt.Slot()})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	address, ok := pathPubkey(w, r, "address")
	if !ok {
		return
	}
	acct, err := s.rt.Account(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acct))
}

func (s *Server) handleDAOLaunch(w http.ResponseWriter, r *http.Request) {
	dao, ok := pathPubkey(w, r, "dao")
	if !ok {
		return
	}
	l, err := s.launches.LaunchForDAO(r.Context(), dao)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLaunchView(l, s.rt.Slot()))
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	address, ok := pathPubkey(w, r, "address")
	if !ok {
		return
	}
	l, err := s.launches.Launch(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLaunchView(l, s.rt.Slot()))
}

func (s *Server) handleFunders(w http.ResponseWriter, r *http.Request) {
	address, ok := pathPubkey(w, r, "address")
	if !ok {
		return
	}
	if _, err := s.launches.Launch(r.Context(), address); err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.launches.FundingRecords(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]fundingRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newFundingRecordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"launch": address, "funders": views})
}

func (s *Server) handleTimelock(w http.ResponseWriter, r *http.Request) {
	address, ok := pathPubkey(w, r, "address")
	if !ok {
		return
	}
	t, err := s.timelocks.Timelock(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTimelockView(t))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	address, ok := pathPubkey(w, r, "address")
	if !ok {
		return
	}
	b, err := s.timelocks.Batch(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.timelocks.Timelock(r.Context(), b.Timelock)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchView(b, t, s.rt.Slot()))
}

// handleEvents serves ?address=<pubkey> or ?from=<slot>&to=<slot>.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	store := s.rt.EventStore()
	if store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "event store not configured"})
		return
	}

	q := r.URL.Query()
	var (
		events []*domain.Event
		err    error
	)
	switch {
	case q.Get("address") != "":
		address, perr := domain.ParsePubkey(q.Get("address"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid address: " + perr.Error()})
			return
		}
		events, err = store.GetByAddress(r.Context(), address)
	case q.Get("from") != "" || q.Get("to") != "":
		from, ferr := strconv.ParseUint(q.Get("from"), 10, 64)
		to, terr := strconv.ParseUint(q.Get("to"), 10, 64)
		if ferr != nil || terr != nil || from > to {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "from and to must be slots with from <= to"})
			return
		}
		events, err = store.GetBySlotRange(r.Context(), from, to)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "address or from/to is required"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, newEventView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

type errorBody struct {
	Error string `json:"error"`
}

func pathPubkey(w http.ResponseWriter, r *http.Request, name string) (domain.Pubkey, bool) {
	pk, err := domain.ParsePubkey(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid %s: %v", name, err)})
		return domain.Pubkey{}, false
	}
	return pk, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAccountData):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
