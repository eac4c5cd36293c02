// Package agenthttp exposes an agent.Agent over HTTP: the evaluate
// endpoint (backed by a thread-pinned worker pool), project-info,
// health and version, matching libvuln/handler.go's ServeMux-based
// dispatcher shape.
package agenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/quay/zlog"

	"github.com/fluxmodel/agent"
)

// maxRequestBody bounds request body size per spec.md §6.
const maxRequestBody = 16 << 20 // 16 MiB

var _ http.Handler = (*Handler)(nil)

// Handler serves the agent's HTTP surface.
type Handler struct {
	*http.ServeMux
	a    *agent.Agent
	pool *Pool
}

// New builds a Handler around a, backed by a worker pool of
// agent.WorkerCount() threads.
func New(a *agent.Agent) *Handler {
	h := &Handler{a: a, pool: NewPool(agent.WorkerCount())}
	m := http.NewServeMux()
	m.HandleFunc("POST /api/projects/{project}/evaluate/{key...}", h.evaluate)
	m.HandleFunc("GET /api/projects/{project}", h.projectInfo)
	m.HandleFunc("GET /api/health", h.health)
	m.HandleFunc("GET /api/version", h.version)
	h.ServeMux = m
	return h
}

// Close releases the worker pool.
func (h *Handler) Close() { h.pool.Close() }

type evaluateRequest struct {
	Context any   `json:"context"`
	Trace   *bool `json:"trace"`
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	projectID := r.PathValue("project")
	key := r.PathValue("key")
	token := r.Header.Get("X-Access-Token")

	p := h.a.Project(projectID)
	if p == nil {
		writeError(w, "not-found", "Project not found", http.StatusNotFound)
		return
	}
	if !p.Catalogue.CanAccess(token) {
		writeError(w, "unauthorized", "Invalid X-Access-Token Header", http.StatusUnauthorized)
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "bad-request", fmt.Sprintf("could not decode request body: %v", err), http.StatusBadRequest)
		return
	}
	trace := req.Trace != nil && *req.Trace

	opts := agent.EvaluationOptions{Trace: trace, MaxDepth: 10}
	body, err := h.pool.Submit(ctx, func(ctx context.Context) (map[string]any, error) {
		return p.Evaluator.Evaluate(ctx, key, req.Context, opts)
	})
	if err != nil {
		zlog.Warn(ctx).Err(err).Str("project", projectID).Str("key", key).Msg("evaluation failed")

		var evalErr *agent.ErrEvaluationFailed
		if errors.As(err, &evalErr) && evalErr.Body != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(evalErr.Body)
			return
		}
		writeError(w, "evaluation-failed", err.Error(), http.StatusBadRequest)
		return
	}

	body = mergeDetails(body, p, key)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to encode response")
	}
}

// mergeDetails sets details.releaseId and details.versionId on body,
// creating the "details" object if the evaluator's own result didn't
// include one. A nil body is treated as an empty one, matching the
// original's flattening of a null evaluator response onto just the
// details object.
func mergeDetails(body map[string]any, p *agent.Project, key string) map[string]any {
	if body == nil {
		body = map[string]any{}
	}
	details, ok := body["details"].(map[string]any)
	if !ok {
		details = map[string]any{}
	}
	if releaseID, ok := p.ReleaseID(); ok {
		details["releaseId"] = releaseID
	}
	if version, ok := p.Catalogue.Version(key); ok {
		details["versionId"] = version
	}
	body["details"] = details
	return body
}

func (h *Handler) projectInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := r.PathValue("project")

	p := h.a.Project(projectID)
	if p == nil {
		writeError(w, "not-found", "Project not found", http.StatusNotFound)
		return
	}

	rd := p.Catalogue.ReleaseData()
	if rd == nil {
		writeError(w, "bad-request", "Project data not available", http.StatusBadRequest)
		return
	}

	resp := map[string]any{
		"projectId":      rd.Project.ID,
		"projectKey":     rd.Project.Key,
		"releaseId":      rd.Release.ID,
		"releaseVersion": rd.Release.Version,
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write([]byte(`"healthy"`))
}

func (h *Handler) version(w http.ResponseWriter, r *http.Request) {
	v := os.Getenv("SERVICE_VERSION")
	if v == "" {
		v = "unknown"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
