package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/filibuster/internal/engine"
	"github.com/roach88/filibuster/internal/instrument"
	"github.com/roach88/filibuster/internal/ir"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 4 << 20

// Server routes coordinator requests to an engine.
type Server struct {
	eng    *engine.Engine
	schema *jsonschema.Schema
	mux    *http.ServeMux
}

// New builds a Server for eng. The engine's Run loop must be started
// separately.
func New(eng *engine.Engine) (*Server, error) {
	schema, err := compileEventSchema()
	if err != nil {
		return nil, err
	}
	s := &Server{eng: eng, schema: schema, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST "+instrument.PathEvents, s.handleEvent)
	s.mux.HandleFunc("POST "+instrument.PathBeginIteration, s.handleBegin)
	s.mux.HandleFunc("POST "+instrument.PathEndIteration, s.handleEnd)
	s.mux.HandleFunc("GET "+instrument.PathState, s.handleState)
	s.mux.HandleFunc("GET "+instrument.PathHealth, s.handleHealth)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, invalidEvent("read body: "+err.Error()))
		return
	}
	if err := validateAgainstSchema(s.schema, raw); err != nil {
		slog.Warn("rejected instrumentation event", "error", err)
		writeError(w, http.StatusBadRequest, invalidEvent(err.Error()))
		return
	}

	var ev ir.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		writeError(w, http.StatusBadRequest, invalidEvent(err.Error()))
		return
	}

	d, err := s.eng.Submit(r.Context(), ev)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	it, err := s.eng.BeginIteration(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var result engine.IterationResult
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, &engine.RuntimeError{Code: engine.ErrCodeInvalidEvent, Message: "decode iteration result: " + err.Error()})
		return
	}
	if result.Outcome != "" && !result.Outcome.Valid() {
		writeError(w, http.StatusBadRequest, &engine.RuntimeError{Code: engine.ErrCodeInvalidEvent, Message: fmt.Sprintf("unknown outcome %q", result.Outcome)})
		return
	}

	summary, err := s.eng.EndIteration(r.Context(), result)
	// A fault_not_injected outcome is carried in the summary itself.
	if err != nil && !engine.IsFaultNotInjectedError(err) {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func invalidEvent(msg string) *engine.RuntimeError {
	return &engine.RuntimeError{Code: engine.ErrCodeInvalidEvent, Message: msg}
}

// statusFor maps engine error codes to HTTP status codes.
func statusFor(code engine.RuntimeErrorCode) int {
	switch code {
	case engine.ErrCodeInvalidEvent:
		return http.StatusBadRequest
	case engine.ErrCodeNoActiveIteration, engine.ErrCodeIterationActive:
		return http.StatusConflict
	case engine.ErrCodeExhausted:
		return http.StatusGone
	case engine.ErrCodeDecisionTimeout:
		return http.StatusGatewayTimeout
	case engine.ErrCodeEngineStopped:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, err error) {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		writeError(w, statusFor(re.Code), re)
		return
	}
	slog.Error("coordinator request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeError(w http.ResponseWriter, status int, re *engine.RuntimeError) {
	writeJSON(w, status, re)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Serve runs an HTTP server for h on ln until ctx is cancelled, then shuts
// it down gracefully.
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-done
}
