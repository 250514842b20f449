package zipbed

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// geohashPrecision gives cells of roughly 5m x 5m.
const geohashPrecision = 9

// ResultView is a record as returned by the HTTP handler, with the geohash of
// its coordinates when they parse.
type ResultView struct {
	Record
	Geohash string `json:"geohash,omitempty"`
}

// NewResult wraps r, computing its geohash.
func NewResult(r Record) ResultView {
	res := ResultView{Record: r}
	if lat, lon, ok := r.Coordinates(); ok && validCoordinates(lat, lon) {
		res.Geohash = geohash.EncodeWithPrecision(lat, lon, geohashPrecision)
	}
	return res
}

// NewResults wraps every record of rs.
func NewResults(rs []Record) []ResultView {
	out := make([]ResultView, len(rs))
	for i, r := range rs {
		out[i] = NewResult(r)
	}
	return out
}

// HandlerOption configures the HTTP handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// Handler serves Search over HTTP. Query parameters become the filter map,
// using the first value of each parameter.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler returns an HTTP handler for e.
func NewHandler(e *Engine, opts ...HandlerOption) *Handler {
	h := &Handler{engine: e, logger: e.logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	params := r.URL.Query()
	filters := make(Filters, len(params))
	for key, values := range params {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	// Blank latitude and longitude parameters count as absent, so
	// "?latitude=&longitude=" adds no geo constraint.
	records, err := h.engine.Search(filters)
	if err != nil {
		status := http.StatusInternalServerError
		var qe *QueryError
		if errors.As(err, &qe) {
			status = http.StatusBadRequest
		}
		h.logger.Info("request failed",
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", status,
			"error", err,
		)
		h.writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, NewResults(records))
	h.logger.Info("request served",
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"results", len(records),
		"duration", time.Since(start),
	)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("writing response", "error", err)
	}
}
