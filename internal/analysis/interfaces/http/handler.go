package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/p-vbordei/solar-forecast-sub001/internal/analysis/application"
	analysis "github.com/p-vbordei/solar-forecast-sub001/internal/analysis/domain"
	locations "github.com/p-vbordei/solar-forecast-sub001/internal/locations/domain"
)

// Analyzer is the application surface the handlers depend on.
type Analyzer interface {
	Compare(ctx context.Context, query application.Query) ([]analysis.MergedPoint, error)
	Production(ctx context.Context, query application.Query) (application.ProductionResult, error)
	LatestForecast(ctx context.Context, locationID string) (analysis.Sample, error)
}

// AnalysisHandler serves the forecast-versus-actual comparison and the
// production series endpoints.
type AnalysisHandler struct {
	service Analyzer
	logger  *log.Logger
}

// NewAnalysisHandler constructs the handler.
func NewAnalysisHandler(service Analyzer, logger *log.Logger) (*AnalysisHandler, error) {
	if service == nil {
		return nil, errors.New("analysis handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AnalysisHandler{service: service, logger: logger}, nil
}

type comparisonPoint struct {
	Timestamp time.Time              `json:"timestamp"`
	Forecast  seriesPoint            `json:"forecast"`
	Series    map[string]seriesPoint `json:"series,omitempty"`
}

type seriesPoint struct {
	Aggregates  map[string]aggregateOut `json:"aggregates"`
	SampleCount int                     `json:"sample_count"`
}

type aggregateOut struct {
	Value      float64 `json:"value"`
	Provenance string  `json:"provenance"`
	Basis      string  `json:"basis,omitempty"`
}

// Compare handles GET /api/v1/analysis.
func (h *AnalysisHandler) Compare(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	points, err := h.service.Compare(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]comparisonPoint, 0, len(points))
	for _, point := range points {
		cp := comparisonPoint{
			Timestamp: point.Timestamp,
			Forecast:  toSeriesPoint(point.Primary),
		}
		if len(point.Series) > 0 {
			cp.Series = make(map[string]seriesPoint, len(point.Series))
			for name, bucket := range point.Series {
				cp.Series[name] = toSeriesPoint(bucket)
			}
		}
		out = append(out, cp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location_id": query.LocationID,
		"interval":    query.Interval,
		"points":      out,
	})
}

// Production handles GET /api/v1/production.
func (h *AnalysisHandler) Production(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	result, err := h.service.Production(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := map[string]any{
		"location_id": query.LocationID,
		"interval":    result.Interval,
	}
	if result.Interval == analysis.IntervalRaw {
		body["samples"] = result.Samples
	} else {
		buckets := make([]map[string]any, 0, len(result.Buckets))
		for _, bucket := range result.Buckets {
			point := toSeriesPoint(bucket)
			buckets = append(buckets, map[string]any{
				"bucket_start": bucket.BucketStart,
				"aggregates":   point.Aggregates,
				"sample_count": point.SampleCount,
			})
		}
		body["buckets"] = buckets
	}
	writeJSON(w, http.StatusOK, body)
}

// LatestForecast handles GET /api/v1/forecast/latest.
func (h *AnalysisHandler) LatestForecast(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing location_id"})
		return
	}

	sample, err := h.service.LatestForecast(r.Context(), locationID)
	if err != nil {
		if errors.Is(err, analysis.ErrNoForecast) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func (h *AnalysisHandler) parseQuery(w http.ResponseWriter, r *http.Request) (application.Query, bool) {
	params := r.URL.Query()
	limit, err := parseIntParam(params.Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return application.Query{}, false
	}
	offset, err := parseIntParam(params.Get("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
		return application.Query{}, false
	}

	query, err := application.NewQuery(
		params.Get("location_id"),
		params.Get("start_date"),
		params.Get("end_date"),
		params.Get("interval"),
		limit,
		offset,
	)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return application.Query{}, false
	}
	return query, true
}

func (h *AnalysisHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, locations.ErrLocationNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, locations.ErrLocationInactive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, analysis.ErrUnknownInterval), errors.Is(err, analysis.ErrInvalidRange):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Printf("analysis query %s: %v", r.URL.RawQuery, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toSeriesPoint(bucket analysis.Bucket) seriesPoint {
	point := seriesPoint{
		Aggregates:  make(map[string]aggregateOut, len(bucket.Aggregates)),
		SampleCount: bucket.SampleCount,
	}
	for metric, value := range bucket.Aggregates {
		point.Aggregates[metric] = aggregateOut{
			Value:      value.Value,
			Provenance: string(value.Provenance),
			Basis:      value.Basis,
		}
	}
	return point
}

func parseIntParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
