// Package agent implements a long-running sync agent that mirrors
// decision-project bundles from a pluggable storage backend into an
// in-memory snapshot, refreshes them on a wall-clock-aligned schedule,
// and evaluates decisions against that snapshot on demand.
package agent

import (
	"context"
	"fmt"

	"github.com/fluxmodel/agent/catalogue"
)

// Project is one decision project currently held in the snapshot: its
// catalogue of decision content plus the evaluator bound to it.
type Project struct {
	// Catalogue holds the project's decision content and release
	// manifest. Never nil.
	Catalogue *catalogue.Catalogue
	// Evaluator runs a decision from this project's catalogue.
	Evaluator Evaluator
	// ContentHash is the hash reported by the provider at fetch time,
	// or nil for providers that never report one.
	ContentHash []byte
}

// Hash implements store.Entry.
func (p *Project) Hash() []byte { return p.ContentHash }

// ReleaseID returns the release id from the project's release manifest,
// if present.
func (p *Project) ReleaseID() (string, bool) {
	rd := p.Catalogue.ReleaseData()
	if rd == nil {
		return "", false
	}
	return rd.Release.ID, true
}

// EvaluationOptions configures a single evaluator invocation.
type EvaluationOptions struct {
	// Trace requests that the evaluator attach a trace of the decision
	// graph nodes it visited to the result.
	Trace bool
	// MaxDepth bounds how many nested decisions the evaluator may
	// traverse before failing; the dispatcher always sets this to 10.
	MaxDepth int
}

// Evaluator runs one decision document against a supplied context.
//
// Implementations are permitted to hold thread-local state for the
// duration of a single Evaluate call; the caller (agenthttp's worker
// pool) guarantees a single call runs to completion on one worker
// without being resumed on another.
type Evaluator interface {
	Evaluate(ctx context.Context, key string, input any, opts EvaluationOptions) (map[string]any, error)
}

// ErrEvaluationFailed wraps an evaluator's own failure so dispatchers can
// recognize it and forward the evaluator's JSON error body unmodified.
type ErrEvaluationFailed struct {
	Body map[string]any
	Err  error
}

func (e *ErrEvaluationFailed) Error() string {
	return fmt.Sprintf("evaluation failed: %v", e.Err)
}

func (e *ErrEvaluationFailed) Unwrap() error { return e.Err }
