package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	ingestion "github.com/p-vbordei/solar-forecast-sub001/internal/ingestion/domain"
	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
	"github.com/p-vbordei/solar-forecast-sub001/internal/observability/metrics"
)

// Ingester runs the bulk ingestion pipeline for one CSV payload.
type Ingester interface {
	IngestCSV(ctx context.Context, locationID, payload string) (ingestion.Result, error)
}

// IngestHandler accepts production CSV payloads for a location.
type IngestHandler struct {
	service Ingester
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service Ingester, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles POST /api/v1/locations/{id}/production.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	locationID := r.PathValue("id")
	if locationID == "" {
		metrics.IncIngestError("missing_location")
		http.Error(w, "missing location id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("production ingest: read body error: %v", err)
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	result, err := h.service.IngestCSV(r.Context(), locationID, string(body))
	if err != nil {
		h.logger.Printf("production ingest: location=%s error: %v", locationID, err)
		writeIngestError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeIngestError(w http.ResponseWriter, result ingestion.Result, err error) {
	switch {
	case errors.Is(err, locations.ErrLocationNotFound):
		metrics.IncIngestError("location_not_found")
		http.Error(w, "location not found", http.StatusNotFound)
	case errors.Is(err, locations.ErrLocationInactive):
		metrics.IncIngestError("location_inactive")
		http.Error(w, "location not active", http.StatusConflict)
	case errors.Is(err, ingestion.ErrMalformedInput), errors.Is(err, ingestion.ErrMissingColumns):
		metrics.IncIngestError("invalid_payload")
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ingestion.ErrBatchWrite):
		// Batches written before the failure stay committed; surface the
		// partial counts so the caller can reconcile.
		metrics.IncIngestError("batch_write")
		writeJSON(w, http.StatusInternalServerError, struct {
			ingestion.Result
			Fatal string `json:"fatal"`
		}{Result: result, Fatal: err.Error()})
	default:
		metrics.IncIngestError("internal")
		http.Error(w, "ingest error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
