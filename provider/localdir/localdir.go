// Package localdir implements the local unpacked-directory provider
// variant: a directory of subdirectories, one per project, each holding
// an already-unpacked bundle tree.
package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

// Provider lists and loads unpacked project directories from a single
// root directory.
type Provider struct {
	rootDir string
}

// New returns a Provider rooted at cfg.RootDir.
func New(cfg provider.FilesystemConfig) *Provider {
	return &Provider{rootDir: cfg.RootDir}
}

// ShouldRefresh always returns false, for the same reason as localzip:
// there is no cheap hash to diff a re-scan against.
func (p *Provider) ShouldRefresh() bool { return false }

// List performs a one-level scan of the root directory for
// subdirectories and diffs the discovered keys against snap.
func (p *Provider) List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error) {
	entries, err := os.ReadDir(p.rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("localdir: failed to read directory %q: %w", p.rootDir, err)
	}

	var listing []store.Listed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == "" {
			continue
		}
		listing = append(listing, store.Listed{Key: e.Name()})
	}

	diff := store.CalculateDiff(snap, listing)
	keys := make([]string, 0, len(diff))
	for _, ch := range diff {
		if ch.Kind == store.Created || ch.Kind == store.Updated {
			keys = append(keys, ch.Key)
		}
	}
	return diff, keys, nil
}

// Fetch loads the subtree at "<key>" under the root directory directly,
// without a zip step.
func (p *Provider) Fetch(ctx context.Context, key string) (*provider.Fetched, error) {
	dir := filepath.Join(p.rootDir, key)
	cat, err := catalogue.LoadDir(ctx, dir)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "localdir").Str("key", key).Err(err).Msg("failed to parse project directory")
		return nil, nil
	}
	return &provider.Fetched{Catalogue: cat}, nil
}
