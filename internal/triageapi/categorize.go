package triageapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/triage"
)

// itemsRequest is the body shared by categorize and ingest.
type itemsRequest struct {
	Items []item.Item `json:"items"`
}

type categorizeResponse struct {
	Results []triage.CategorizationResult `json:"results"`
	Summary triage.Summary                `json:"summary"`
}

// validate checks every item and reports all problems at once.
func (req *itemsRequest) validate() error {
	if len(req.Items) == 0 {
		return errors.New("items must not be empty")
	}
	if len(req.Items) > MaxItemsPerRequest {
		return fmt.Errorf("at most %d items per request, got %d", MaxItemsPerRequest, len(req.Items))
	}

	var errs []error
	seen := make(map[string]struct{}, len(req.Items))
	for i := range req.Items {
		it := &req.Items[i]
		switch {
		case it.ID == "":
			errs = append(errs, fmt.Errorf("items[%d]: id is required", i))
		case !it.Source.Valid():
			errs = append(errs, fmt.Errorf("items[%d]: unknown source %q", i, it.Source))
		}
		if _, dup := seen[it.ID]; dup && it.ID != "" {
			errs = append(errs, fmt.Errorf("items[%d]: duplicate id %q", i, it.ID))
		}
		seen[it.ID] = struct{}{}
	}
	return errors.Join(errs...)
}

func (a *API) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sort := r.URL.Query().Get("sort")
	if sort != "" && sort != "input" && sort != "priority" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sort %q", sort))
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("sieve.categorize.items", len(req.Items)))

	results := a.svc.Categorize(r.Context(), req.Items)

	resp := categorizeResponse{Results: results, Summary: triage.Summarize(results)}
	if sort == "priority" {
		resp.Results = triage.Rank(results)
	}
	writeJSON(w, http.StatusOK, resp)
}
