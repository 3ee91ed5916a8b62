// Package triageapi exposes triage runs and synchronous categorization over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/triage"
)

const (
	// MaxItemsPerRequest bounds the items in one categorize or ingest request.
	MaxItemsPerRequest = 100

	maxBodyBytes = 4 << 20
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Submit(ctx context.Context, req triage.RunRequest) (*triage.SubmitResult, error)
	Get(ctx context.Context, id string) (*triage.Run, bool, error)
	GetTriage(ctx context.Context, itemID string) (*triage.Record, bool, error)
	Categorize(ctx context.Context, items []item.Item) []triage.CategorizationResult
	PutItems(ctx context.Context, items []item.Item) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", a.handleSubmitRun)
		r.Get("/runs/{id}", a.handleGetRun)
		r.Post("/categorize", a.handleCategorize)
		r.Post("/items", a.handlePutItems)
		r.Get("/items/{id}/triage", a.handleGetItemTriage)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
