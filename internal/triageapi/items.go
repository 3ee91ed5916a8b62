package triageapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

type putItemsResponse struct {
	Stored int `json:"stored"`
}

// handlePutItems stores items for later runs. Items already stored under the
// same ID are replaced.
func (a *API) handlePutItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("sieve.ingest.items", len(req.Items)))

	if err := a.svc.PutItems(r.Context(), req.Items); err != nil {
		a.logger.Error(r.Context(), err, "failed to store items", "items", len(req.Items))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, putItemsResponse{Stored: len(req.Items)})
}

func (a *API) handleGetItemTriage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sieve.item.id", id))

	rec, ok, err := a.svc.GetTriage(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get item triage", "item_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("sieve.triage.priority", string(rec.Priority)))
	writeJSON(w, http.StatusOK, rec)
}
