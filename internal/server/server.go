package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/windlayout/internal/config"
	"github.com/copyleftdev/windlayout/internal/logging"
	"github.com/copyleftdev/windlayout/internal/metrics"
	"github.com/copyleftdev/windlayout/internal/optimization/evolutionary"
	"github.com/copyleftdev/windlayout/internal/scenario"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
	Zap() *zap.Logger
}

// PopulationStore persists named populations between runs.
type PopulationStore interface {
	evolutionary.Store
	List() ([]string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables load_from and save_to on layout runs.
func WithStore(store PopulationStore) Option {
	return func(s *Server) { s.store = store }
}

// WithRecorder exports run metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// Server implements the HTTP and JSON-RPC server for layout runs.
// It manages runs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg      *config.Config
	logger   Logger
	scenario *scenario.File
	store    PopulationStore
	recorder *metrics.Recorder

	layouts   map[string]*LayoutState
	layoutsMu sync.RWMutex
}

// NewServer creates a server that runs layouts on the given base scenario.
func NewServer(cfg *config.Config, logger Logger, base *scenario.File, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		scenario: base,
		layouts:  make(map[string]*LayoutState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/layouts", s.handleStart)
		r.Get("/layouts", s.handleList)
		r.Get("/layouts/{id}", s.handleStatus)
		r.Delete("/layouts/{id}", s.handleCancel)
		r.Get("/populations", s.handlePopulations)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type layoutIDParams struct {
	ID string `json:"layout_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "layout.start":
		var req StartRequest
		if err = decodeParams(request.Params, &req); err == nil {
			var state *LayoutState
			if state, err = s.startLayout(req); err == nil {
				result = map[string]interface{}{"layout_id": state.ID, "status": StatusPending}
			}
		}
	case "layout.status":
		var p layoutIDParams
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.layoutStatus(p.ID)
		}
	case "layout.cancel":
		var p layoutIDParams
		if err = decodeParams(request.Params, &p); err == nil {
			if err = s.cancelLayout(p.ID); err == nil {
				result = map[string]interface{}{"layout_id": p.ID, "status": StatusCancelling}
			}
		}
	case "layout.list":
		result = s.listLayouts()
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			s.respondWithError(w, codeInvalidParams, err.Error(), request.ID)
			return
		}
		s.respondWithError(w, codeServerError, err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      request.ID,
	})
}

// decodeParams accepts params as an object or as a one-element array
// holding the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return &requestError{err: err}
		}
		if len(list) == 0 {
			return nil
		}
		if len(list) > 1 {
			return invalid("expected a single params object, got %d", len(list))
		}
		raw = list[0]
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &requestError{err: err}
	}
	return nil
}

// respondWithError sends a JSON-RPC error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err})
	}
}

func (s *Server) respondHTTPError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		status = http.StatusBadRequest
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errTerminal):
		status = http.StatusConflict
	case errors.Is(err, errTooManyRuns):
		status = http.StatusTooManyRequests
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// Close cancels every unfinished run and waits for them to stop.
func (s *Server) Close() error {
	s.layoutsMu.Lock()
	var pending []chan struct{}
	for _, state := range s.layouts {
		if state.CancelFunc != nil {
			state.CancelFunc()
		}
		pending = append(pending, state.done)
	}
	s.layoutsMu.Unlock()

	for _, done := range pending {
		<-done
	}
	return nil
}

// REST API Handlers

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondHTTPError(w, invalid("invalid request body: %v", err))
		return
	}

	state, err := s.startLayout(req)
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"layout_id": state.ID,
		"status":    StatusPending,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.listLayouts())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.layoutStatus(chi.URLParam(r, "id"))
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancelLayout(id); err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"layout_id": id,
		"status":    StatusCancelling,
	})
}

func (s *Server) handlePopulations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondHTTPError(w, errNotFound)
		return
	}
	names, err := s.store.List()
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"populations": names})
}
