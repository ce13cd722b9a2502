// Package server exposes the clock reader over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	clockreader "github.com/pinthoz/analogic-watch-detector"
	"github.com/pinthoz/analogic-watch-detector/internal/store"
	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/clock"
	"github.com/pinthoz/analogic-watch-detector/pkg/fallback"
)

// History persists readings. A nil History disables the readings routes.
type History interface {
	Record(ctx context.Context, r *store.Reading) error
	Get(ctx context.Context, id string) (*store.Reading, error)
	List(ctx context.Context, limit int) ([]store.Reading, error)
}

// Options holds HTTP API settings
type Options struct {
	CORSOrigins    []string
	MaxBodyBytes   int64
	OverlayQuality int
	// Stats, when set, is reported under "detector" by /metrics
	Stats func() any
}

// Server serves the detect-time API
type Server struct {
	reader  *clockreader.Reader
	history History
	opts    Options
	logger  *slog.Logger
	metrics metrics
	started time.Time
}

type metrics struct {
	requests atomic.Int64
	direct   atomic.Int64
	zoomed   atomic.Int64
	failed   atomic.Int64
	errors   atomic.Int64
}

// TimeJSON is the time part of a detect-time response. Absent minutes and
// seconds are reported as 0.
type TimeJSON struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// DetectTimeResponse is returned by POST /api/detect-time
type DetectTimeResponse struct {
	ID             string   `json:"id,omitempty"`
	Time           TimeJSON `json:"time"`
	Formatted      string   `json:"formatted"`
	Description    string   `json:"description"`
	Confidence     float64  `json:"confidence"`
	Stage          string   `json:"stage"`
	DetectionImage *string  `json:"detectionImage"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	TechnicalDetails string `json:"technical_details,omitempty"`
}

// New creates a server. history may be nil.
func New(reader *clockreader.Reader, history History, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	if opts.OverlayQuality <= 0 {
		opts.OverlayQuality = 90
	}
	return &Server{
		reader:  reader,
		history: history,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the routed handler with logging and CORS middleware
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger, corsMiddleware(s.opts.CORSOrigins))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/detect-time", s.handleDetectTime).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/readings", s.handleListReadings).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/readings/{id}", s.handleGetReading).Methods(http.MethodGet, http.MethodOptions)

	s.addMonitoringRoutes(r)
	return r
}

func (s *Server) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) handleDetectTime(w http.ResponseWriter, r *http.Request) {
	s.metrics.requests.Add(1)
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	imgBytes, source, err := readImageBytes(r)
	if err != nil {
		sendErrorResponse(w, "invalid_request", "Could not read the uploaded image", err.Error(), http.StatusBadRequest)
		return
	}

	img, err := s.reader.DecodeImage(imgBytes)
	if err != nil {
		sendErrorResponse(w, "invalid_image", "Failed to decode image", err.Error(), http.StatusBadRequest)
		return
	}

	if source != "" {
		ctx = client.WithSource(ctx, source)
	}
	result, err := s.reader.ReadImage(ctx, img)
	if err != nil {
		s.sendReadError(w, r, err)
		return
	}

	switch result.Stage {
	case fallback.StageZoomed:
		s.metrics.zoomed.Add(1)
	default:
		s.metrics.direct.Add(1)
	}

	resp := DetectTimeResponse{
		Time:        toTimeJSON(result),
		Formatted:   result.Reading.String(),
		Description: clock.Describe(&result.Reading),
		Confidence:  s.reader.Confidence(result),
		Stage:       string(result.Stage),
	}

	if uri, err := s.reader.OverlayDataURI(result, s.opts.OverlayQuality); err != nil {
		s.logger.Warn("overlay not rendered", "request_id", requestID(ctx), "error", err)
	} else {
		resp.DetectionImage = &uri
	}

	if s.history != nil {
		rec := &store.Reading{
			Source:     source,
			Reading:    result.Reading,
			Confidence: resp.Confidence,
			Stage:      resp.Stage,
			Detections: result.Detections,
		}
		if err := s.history.Record(ctx, rec); err != nil {
			s.logger.Warn("reading not stored", "request_id", requestID(ctx), "error", err)
		} else {
			resp.ID = rec.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sendReadError(w http.ResponseWriter, r *http.Request, err error) {
	var failed *fallback.DetectionFailedError
	switch {
	case errors.As(err, &failed):
		s.metrics.failed.Add(1)
		details := failed.Reason
		if len(failed.Missing) > 0 {
			details = fmt.Sprintf("Elements not detected: %s", strings.Join(failed.Missing, ", "))
		}
		sendErrorResponse(w, "detection_failed", "It was not possible to process the clock time", details, http.StatusBadRequest)
	case errors.Is(err, clockreader.ErrInvalidImage):
		sendErrorResponse(w, "invalid_image", "Image does not meet the minimum requirements", err.Error(), http.StatusBadRequest)
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		s.metrics.errors.Add(1)
		sendErrorResponse(w, "detector_unavailable", "The detector is not available", err.Error(), http.StatusServiceUnavailable)
	default:
		s.metrics.errors.Add(1)
		s.logger.Error("detect-time failed", "request_id", requestID(r.Context()), "error", err)
		sendErrorResponse(w, "processing_error", "Error processing image", err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		sendErrorResponse(w, "history_disabled", "Reading history is not enabled", "", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendErrorResponse(w, "invalid_request", "limit must be a positive integer", v, http.StatusBadRequest)
			return
		}
		limit = n
	}

	readings, err := s.history.List(r.Context(), limit)
	if err != nil {
		sendErrorResponse(w, "storage_error", "Could not list readings", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		sendErrorResponse(w, "history_disabled", "Reading history is not enabled", "", http.StatusNotFound)
		return
	}

	id := mux.Vars(r)["id"]
	reading, err := s.history.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, "not_found", "Reading not found", id, http.StatusNotFound)
		return
	}
	if err != nil {
		sendErrorResponse(w, "storage_error", "Could not load reading", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"requests_total":  s.metrics.requests.Load(),
		"readings_direct": s.metrics.direct.Load(),
		"readings_zoomed": s.metrics.zoomed.Load(),
		"readings_failed": s.metrics.failed.Load(),
		"errors_total":    s.metrics.errors.Load(),
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
	}
	if s.opts.Stats != nil {
		response["detector"] = s.opts.Stats()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": clockreader.GetVersion(),
	})
}

// readImageBytes accepts multipart "file", JSON {"image": base64} or a raw body
func readImageBytes(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return handleMultipartRequest(r)
	case strings.HasPrefix(contentType, "application/json"):
		data, err := handleJSONRequest(r)
		return data, "upload", err
	default:
		data, err := io.ReadAll(r.Body)
		if err == nil && len(data) == 0 {
			err = fmt.Errorf("empty request body")
		}
		return data, "upload", err
	}
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, fmt.Errorf("missing image field")
	}

	// accept data URIs as sent by browsers
	b64 := req.Image
	if i := strings.Index(b64, ";base64,"); i >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(b64)
}

func handleMultipartRequest(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return nil, "", err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	return data, header.Filename, err
}

func toTimeJSON(res *fallback.Result) TimeJSON {
	t := TimeJSON{Hours: res.Reading.Hours}
	if res.Reading.Minutes != nil {
		t.Minutes = *res.Reading.Minutes
	}
	if res.Reading.Seconds != nil {
		t.Seconds = *res.Reading.Seconds
	}
	return t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message, details string, status int) {
	writeJSON(w, status, ErrorResponse{
		Code:             code,
		Message:          message,
		TechnicalDetails: details,
	})
}
