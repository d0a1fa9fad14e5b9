package web

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/pipeline"
)

// Runner is the part of pipeline.Runner the handlers use.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	Last() (pipeline.RunResult, bool)
}

// Handlers contains the HTTP handlers for the ops server.
type Handlers struct {
	runner  Runner
	log     *zap.SugaredLogger
	baseCtx context.Context
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(runner Runner, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		runner:  runner,
		log:     log,
		baseCtx: context.Background(),
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// StartRun starts a full run in the background (POST /runs).
// It does not wait for, or guard against, a run already in progress.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := h.runner.Run(h.baseCtx); err != nil {
			h.log.Errorw("manual run failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// LatestRun returns the last finished run (GET /runs/latest).
func (h *Handlers) LatestRun(w http.ResponseWriter, r *http.Request) {
	last, ok := h.runner.Last()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
