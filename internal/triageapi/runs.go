package triageapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sieve/internal/triage"
)

func (a *API) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req triage.RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	// an empty body submits a run over every source with defaults
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("sieve.run.source", string(req.Source)),
		attribute.Int("sieve.run.limit", req.Limit),
	)

	res, err := a.svc.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, triage.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "failed to submit run", "source", req.Source)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if res.Skipped {
		span.SetAttributes(attribute.String("sieve.run.skipped", res.Reason))
		writeJSON(w, http.StatusOK, res)
		return
	}
	span.SetAttributes(attribute.String("sieve.run.id", res.ID))
	writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sieve.run.id", id))

	run, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get run", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("sieve.run.status", string(run.Status)))
	writeJSON(w, http.StatusOK, run)
}
