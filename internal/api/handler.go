package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"marketscanner/internal/coordinator"
	"marketscanner/internal/hub"
	"marketscanner/internal/supervisor"
	"marketscanner/internal/workers"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

const maxRequestBytes = 1 << 20

// WorkflowRunner executes one workflow
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflow string, fields map[string]interface{}) (*coordinator.WorkflowResult, error)
}

// SupervisorView is the read side of the supervisor
type SupervisorView interface {
	Agents() []supervisor.AgentHealth
	Remaining(ctx context.Context, agent string) (int64, error)
}

// WorkerView reports background job statistics
type WorkerView interface {
	WorkerHealth() []workers.WorkerHealth
}

// Handler serves the coordinator API. supervisor, store and jobs may be nil.
type Handler struct {
	runner     WorkflowRunner
	catalog    *coordinator.Catalog
	supervisor SupervisorView
	store      hub.Store
	jobs       WorkerView
	log        *logger.Logger
	now        func() time.Time
}

func NewHandler(runner WorkflowRunner, catalog *coordinator.Catalog, sup SupervisorView, store hub.Store, log *logger.Logger) *Handler {
	return &Handler{
		runner:     runner,
		catalog:    catalog,
		supervisor: sup,
		store:      store,
		log:        log.With("component", "api"),
		now:        time.Now,
	}
}

// WithWorkers exposes scheduler statistics on GET /workers
func (h *Handler) WithWorkers(jobs WorkerView) *Handler {
	h.jobs = jobs
	return h
}

// Register mounts the coordinator routes
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /run-workflow", h.HandleRunWorkflow)
	mux.HandleFunc("GET /agents", h.HandleAgents)
	mux.HandleFunc("GET /workflows", h.HandleWorkflows)
	mux.HandleFunc("GET /supervisor/health", h.HandleSupervisorHealth)
	mux.HandleFunc("GET /hub/{workflow}/{symbol}", h.HandleHub)
	mux.HandleFunc("GET /workers", h.HandleWorkers)
}

// HandleRunWorkflow runs the workflow named by the body's "workflow" member
// or, failing that, the ?workflow= query parameter. The rest of the body is
// the request fields.
func (h *Handler) HandleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := coordinator.RequestFromMap(body)
	if req.Workflow == "" {
		req.Workflow = r.URL.Query().Get("workflow")
	}
	if req.Workflow == "" {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrInvalidWorkflow, "workflow name is required"))
		return
	}

	result, err := h.runner.RunWorkflow(r.Context(), req.Workflow, req.Fields)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrInvalidWorkflow) || errors.Is(err, errors.ErrInvalidInput) {
			status = http.StatusBadRequest
		} else {
			h.log.Errorw("Workflow run failed", "workflow", req.Workflow, "error", err)
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type agentView struct {
	Name     string   `json:"name"`
	Endpoint string   `json:"endpoint"`
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// HandleAgents lists configured agents and their declared inputs
func (h *Handler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	specs := h.catalog.Agents()
	out := make([]agentView, 0, len(specs))
	for _, a := range specs {
		out = append(out, agentView{
			Name:     a.Name,
			Endpoint: a.Endpoint,
			Required: nonNil(a.Required),
			Optional: nonNil(a.Optional),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type workflowView struct {
	Name   string   `json:"name"`
	Agents []string `json:"agents"`
}

func (h *Handler) HandleWorkflows(w http.ResponseWriter, r *http.Request) {
	specs := h.catalog.Workflows()
	out := make([]workflowView, 0, len(specs))
	for _, wf := range specs {
		out = append(out, workflowView{Name: wf.Name, Agents: nonNil(wf.Agents)})
	}
	writeJSON(w, http.StatusOK, out)
}

type agentHealthView struct {
	supervisor.AgentHealth
	LastSeenAgo     string `json:"last_seen_ago"`
	BudgetRemaining *int64 `json:"budget_remaining"`
}

// HandleSupervisorHealth reports every agent's last probe and remaining
// budget; budget_remaining is null for agents without a limit.
func (h *Handler) HandleSupervisorHealth(w http.ResponseWriter, r *http.Request) {
	if h.supervisor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "supervisor disabled"})
		return
	}

	agents := h.supervisor.Agents()
	out := make([]agentHealthView, 0, len(agents))
	for _, a := range agents {
		v := agentHealthView{AgentHealth: a, LastSeenAgo: "never"}
		if a.LastSeen != nil {
			v.LastSeenAgo = humanize.RelTime(*a.LastSeen, h.now(), "ago", "from now")
		}

		remaining, err := h.supervisor.Remaining(r.Context(), a.Agent)
		switch {
		case err != nil:
			h.log.Warnw("Failed to read budget", "agent", a.Agent, "error", err)
		case remaining != supervisor.Unlimited:
			v.BudgetRemaining = &remaining
		}

		out = append(out, v)
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleHub returns the latest stored result of workflow over symbol
func (h *Handler) HandleHub(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "hub disabled"})
		return
	}

	key := hub.Key(r.PathValue("workflow"), r.PathValue("symbol"))

	var result coordinator.WorkflowResult
	if err := h.store.Get(r.Context(), key, &result); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no result for " + key})
			return
		}
		h.log.Errorw("Failed to read hub", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type workerView struct {
	workers.WorkerHealth
	LastRunAgo string `json:"last_run_ago"`
}

// HandleWorkers lists the health poller and scanner run statistics
func (h *Handler) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeJSON(w, http.StatusOK, []workerView{})
		return
	}

	stats := h.jobs.WorkerHealth()
	out := make([]workerView, 0, len(stats))
	for _, st := range stats {
		v := workerView{WorkerHealth: st, LastRunAgo: "never"}
		if !st.LastRun.IsZero() {
			v.LastRunAgo = humanize.RelTime(st.LastRun, h.now(), "ago", "from now")
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeBody reads a JSON object; an empty body is an empty object
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "read body: %v", err)
	}
	if len(raw) > maxRequestBytes {
		return nil, errors.Wrap(errors.ErrInvalidInput, "request body too large")
	}
	if strings.TrimSpace(string(raw)) == "" {
		return map[string]interface{}{}, nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed JSON: %v", err)
	}
	if body == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "body must be a JSON object")
	}
	return body, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {error, code} where code is the classified reason
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.Classify(err),
	})
}
