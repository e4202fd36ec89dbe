package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
)

const (
	// maxRequestBytes bounds a scenario request body.
	maxRequestBytes = 1 << 20
	// maxFieldCells bounds rows*cols*levels for a synchronous request.
	maxFieldCells = 4 << 20
)

// FieldService builds the serializable document for a scenario.
type FieldService interface {
	Document(ctx context.Context, s domain.Scenario) (codec.Document, error)
}

// Server exposes health, readiness, metrics, and on-demand field endpoints.
type Server struct {
	httpServer *http.Server
	fields     FieldService
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 field routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, fields FieldService, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		fields:  fields,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/fields", s.handleField)
	mux.HandleFunc("GET /v1/grid-index", handleGridIndex)
	mux.HandleFunc("GET /v1/grid-size", handleGridSize)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleField builds the field for a JSON scenario body. The response is a
// JSON document unless ?encoding=msgpack+zstd is given.
func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	enc := codec.EncodingJSON
	if v := r.URL.Query().Get("encoding"); v != "" {
		parsed, err := codec.ParseEncoding(v)
		if err != nil {
			s.fieldError(w, http.StatusBadRequest, err)
			return
		}
		enc = parsed
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		s.fieldError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	scenario, err := domain.ParseScenario(body)
	if err != nil {
		s.fieldError(w, http.StatusBadRequest, err)
		return
	}
	if err := scenario.Region.Validate(); err != nil {
		s.fieldError(w, http.StatusBadRequest, err)
		return
	}
	// Validate bounds rows*cols, so this product cannot overflow.
	if cells := scenario.Region.Size().Cells() * len(scenario.Levels); cells > maxFieldCells {
		s.fieldError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("field of %d cells exceeds the %d cell limit", cells, maxFieldCells))
		return
	}

	doc, err := s.fields.Document(r.Context(), scenario)
	if err != nil {
		if domain.IsInputError(err) {
			s.fieldError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("field build failed", "error", err, "scenario_id", scenario.Key())
		s.fieldError(w, http.StatusInternalServerError, errors.New("field build failed"))
		return
	}

	data, err := codec.Encode(doc, enc)
	if err != nil {
		s.logger.Error("field encode failed", "error", err, "scenario_id", scenario.Key())
		s.fieldError(w, http.StatusInternalServerError, errors.New("field encode failed"))
		return
	}

	s.metrics.HTTPFieldRequests.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("X-Scenario-Fingerprint", doc.Scenario.Fingerprint())
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}

func (s *Server) fieldError(w http.ResponseWriter, status int, err error) {
	outcome := "invalid"
	if status >= http.StatusInternalServerError {
		outcome = "error"
	}
	s.metrics.HTTPFieldRequests.WithLabelValues(outcome).Inc()
	writeError(w, status, err)
}

// handleGridIndex maps ?coord= on ?axis= (lat|lon) to its grid index at
// ?resolution=.
func handleGridIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := floatParam(q.Get("resolution"), "resolution")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	coord, err := floatParam(q.Get("coord"), "coord")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	axis, err := domain.ParseAxis(q.Get("axis"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	idx, err := domain.GridIndex(res, coord, axis)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"axis": axis.String(), "index": idx})
}

// handleGridSize reports the grid shape of a bounding box.
func handleGridSize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [5]float64
	for i, name := range []string{"south", "north", "east", "west", "resolution"} {
		v, err := floatParam(q.Get(name), name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		vals[i] = v
	}
	size := domain.CalcArraySize(vals[0], vals[1], vals[2], vals[3], vals[4])
	sharedobs.WriteJSON(w, http.StatusOK, size)
}

func floatParam(v, name string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return f, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
