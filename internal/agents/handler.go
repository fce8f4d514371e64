package agents

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

const maxTaskBody = 1 << 20

// Handler exposes one agent over HTTP:
//
//	POST /task   -> 200 output | 400 invalid input | 502 upstream unavailable | 500
//	GET  /health -> 200 {"status":"ok","agent":<name>}
type Handler struct {
	agent   Agent
	timeout time.Duration
	log     *logger.Logger
	mux     *http.ServeMux
}

// NewHandler wires the agent routes. timeout bounds a single task; zero disables it.
func NewHandler(agent Agent, timeout time.Duration, log *logger.Logger) *Handler {
	h := &Handler{
		agent:   agent,
		timeout: timeout,
		log:     log.With("agent", agent.Name()),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /task", h.HandleTask)
	h.mux.HandleFunc("GET /health", h.HandleHealth)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// HandleHealth reports liveness for the supervisor
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  h.agent.Name(),
	})
}

// HandleTask runs one analysis
func (h *Handler) HandleTask(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Errorw("Agent panicked", "panic", rec)
			metrics.RecordAgentTask(h.agent.Name(), "error")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	in, err := decodeInput(r.Body)
	if err != nil {
		metrics.RecordAgentTask(h.agent.Name(), "invalid_input")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := Run(ctx, h.agent, in)
	if err != nil {
		status, label := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.ErrorWithContext(ctx, err, map[string]string{"agent": h.agent.Name()})
		} else {
			h.log.Warnw("Task failed", "status", status, "error", err, "duration", time.Since(start))
		}
		metrics.RecordAgentTask(h.agent.Name(), label)
		writeError(w, status, err.Error())
		return
	}

	h.log.Debugw("Task completed", "confidence", out[FieldConfidence], "duration", time.Since(start))
	metrics.RecordAgentTask(h.agent.Name(), "ok")
	writeJSON(w, http.StatusOK, out)
}

// decodeInput reads a JSON object body; an empty body is an empty input
func decodeInput(body io.Reader) (Input, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxTaskBody))
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "read body")
	}

	in := Input{}
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "body must be a JSON object: %v", err)
	}
	return in, nil
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errors.ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
