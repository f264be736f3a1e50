// Package httpapi serves a read-only operator view of the approval ledger.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/kelsos/approvals/internal/admin"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
	"github.com/kelsos/approvals/internal/models"
)

// Ledger is the read side of the approval ledger.
type Ledger interface {
	admin.Lister
	ListByWallet(ctx context.Context, address string) ([]models.ApprovalRecord, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server routes the operator view.
type Server struct {
	ledger Ledger
	health HealthCheck
	router *mux.Router
}

// ListResponse is the body of the listing endpoints.
type ListResponse struct {
	Records []models.ApprovalRecord `json:"records"`
	Summary SummaryResponse         `json:"summary"`
	Sort    *SortResponse           `json:"sort,omitempty"`
}

type SummaryResponse struct {
	Count   int    `json:"count"`
	Wallets int    `json:"wallets"`
	Total   string `json:"total"`
}

type SortResponse struct {
	Field     admin.Field     `json:"field"`
	Direction admin.Direction `json:"direction"`
}

// NewServer builds the router. health may be nil.
func NewServer(ledger Ledger, health HealthCheck) *Server {
	s := &Server{ledger: ledger, health: health, router: mux.NewRouter()}

	s.router.Use(loggingMiddleware, metricsMiddleware)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals/{wallet}", s.handleListByWallet).Methods(http.MethodGet)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Operator view listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down operator view...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sorter := admin.DefaultSorter()
	q := r.URL.Query()
	if v := q.Get("sort"); v != "" {
		field, ok := admin.ParseField(v)
		if !ok {
			writeError(w, http.StatusBadRequest, errors.New("unknown sort field: "+v))
			return
		}
		sorter.Field = field
	}
	if v := q.Get("dir"); v != "" {
		dir, ok := admin.ParseDirection(v)
		if !ok {
			writeError(w, http.StatusBadRequest, errors.New("sort direction must be asc or desc"))
			return
		}
		sorter.Direction = dir
	}

	records, err := admin.View(r.Context(), s.ledger, sorter)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	resp := listResponse(records)
	resp.Sort = &SortResponse{Field: sorter.Field, Direction: sorter.Direction}
	writeJSON(w, http.StatusOK, resp)
}

// The ledger matches addresses exactly, so the path value is normalised to
// the checksummed form the authorization workflow stores.
func (s *Server) handleListByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]
	if !common.IsHexAddress(wallet) {
		writeError(w, http.StatusBadRequest, errors.New("invalid wallet address: "+wallet))
		return
	}

	records, err := s.ledger.ListByWallet(r.Context(), common.HexToAddress(wallet).Hex())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(records))
}

func listResponse(records []models.ApprovalRecord) ListResponse {
	if records == nil {
		records = []models.ApprovalRecord{}
	}
	sum := admin.Summarize(records)
	return ListResponse{
		Records: records,
		Summary: SummaryResponse{Count: sum.Count, Wallets: sum.Wallets, Total: sum.Total.String()},
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
