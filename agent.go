package agent

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/quay/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/internal/ticker"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/provider/azureblob"
	"github.com/fluxmodel/agent/provider/gcs"
	"github.com/fluxmodel/agent/provider/localdir"
	"github.com/fluxmodel/agent/provider/localzip"
	"github.com/fluxmodel/agent/provider/s3"
	"github.com/fluxmodel/agent/store"
)

// maxInFlightFetches bounds concurrent fetches during one refresh, per
// spec.md §4.4's "bounded parallelism of 100 in-flight downloads".
const maxInFlightFetches = 100

// Agent mirrors one configured provider's project bundles into an
// in-memory snapshot and keeps it refreshed on a schedule.
type Agent struct {
	p            provider.Provider
	newEvaluator func(*catalogue.Catalogue) Evaluator
	snap         store.Snapshot

	mu sync.Mutex // serializes Refresh against itself
}

// New constructs the configured provider, performs a blocking initial
// refresh, and — if the provider reports ShouldRefresh — registers the
// periodic scheduler in a background goroutine. The returned Agent is
// ready to serve lookups the instant New returns.
//
// Construction fails if the configured cloud client cannot be built with
// the supplied credentials, or if the initial refresh itself fails.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.NewEvaluator == nil {
		return nil, fmt.Errorf("agent: Config.NewEvaluator must be set")
	}

	p, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to construct provider: %w", err)
	}

	a := &Agent{p: p, newEvaluator: cfg.NewEvaluator}

	zlog.Info(ctx).Msg("performing initial refresh")
	if err := a.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("agent: initial refresh failed: %w", err)
	}

	if p.ShouldRefresh() {
		interval := cfg.PollInterval
		if interval == 0 {
			interval = DefaultPollInterval
		}
		t := ticker.New(interval)
		go t.Run(ctx, func(ctx context.Context) {
			if err := a.Refresh(ctx); err != nil {
				zlog.Error(ctx).Err(err).Msg("refresh failed, retaining previous snapshot")
			}
		})
	}

	return a, nil
}

func newProvider(ctx context.Context, cfg Config) (provider.Provider, error) {
	switch {
	case cfg.Provider.Zip != nil:
		return localzip.New(*cfg.Provider.Zip, cfg.ReleaseZipPassword), nil
	case cfg.Provider.Filesystem != nil:
		return localdir.New(*cfg.Provider.Filesystem), nil
	case cfg.Provider.S3 != nil:
		return s3.New(ctx, *cfg.Provider.S3, cfg.ReleaseZipPassword)
	case cfg.Provider.AzureStorage != nil:
		return azureblob.New(*cfg.Provider.AzureStorage, cfg.ReleaseZipPassword)
	case cfg.Provider.GCS != nil:
		return gcs.New(ctx, *cfg.Provider.GCS, cfg.ReleaseZipPassword)
	default:
		return nil, fmt.Errorf("agent: no provider configured (type %q)", cfg.Provider.Type)
	}
}

// Refresh runs one full listing → diff → fetch → apply cycle against
// the agent's provider. Refresh serializes against itself: a call made
// while another is in flight blocks until the first completes, matching
// spec.md §4.7's "at most one refresh in flight" guarantee without
// relying on the scheduler alone to enforce it.
func (a *Agent) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	diff, toFetch, err := a.p.List(ctx, &a.snap)
	if err != nil {
		return fmt.Errorf("agent: listing failed: %w", err)
	}

	fetched := a.fetchAll(ctx, toFetch)

	applied := store.Apply(&a.snap, diff, fetched)
	for _, ch := range applied {
		zlog.Info(ctx).Str("change", ch.Kind.String()).Str("key", ch.Key).Msg("project changed")
	}

	return nil
}

// fetchAll downloads every key in keys with bounded parallelism,
// returning only the ones that succeeded. A key whose fetch failed is
// simply absent from the result; store.Apply treats that as "drop the
// key" for Created/Updated changes.
func (a *Agent) fetchAll(ctx context.Context, keys []string) map[string]store.Entry {
	results := make(map[string]store.Entry, len(keys))
	if len(keys) == 0 {
		return results
	}

	var mu sync.Mutex
	sem := semaphore.NewWeighted(maxInFlightFetches)
	var wg sync.WaitGroup

	for _, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			defer sem.Release(1)

			f, err := a.p.Fetch(ctx, key)
			if err != nil || f == nil {
				return
			}
			entry := &Project{
				Catalogue:   f.Catalogue,
				Evaluator:   a.newEvaluator(f.Catalogue),
				ContentHash: f.ContentHash,
			}
			mu.Lock()
			results[key] = entry
			mu.Unlock()
		}(key)
	}

	wg.Wait()
	return results
}

// Project resolves identifier to a stored project: first by direct
// snapshot key, then — if absent — by a linear scan for the first
// project whose release manifest's project id equals identifier.
func (a *Agent) Project(identifier string) *Project {
	if e, ok := a.snap.Load(identifier); ok {
		return e.(*Project)
	}

	var found *Project
	a.snap.Range(func(_ string, e store.Entry) bool {
		p := e.(*Project)
		rd := p.Catalogue.ReleaseData()
		if rd != nil && rd.Project.ID == identifier {
			found = p
			return false
		}
		return true
	})
	return found
}

// parallelism is exposed for agenthttp's worker pool sizing, matching
// spec.md §4.9's "sized to available CPU parallelism (min 1)".
func parallelism() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// WorkerCount returns the worker pool size agenthttp should use.
func WorkerCount() int { return parallelism() }
