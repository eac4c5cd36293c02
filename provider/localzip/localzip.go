// Package localzip implements the local directory-of-archives provider
// variant: a flat directory of "*.zip" files, one per project, keyed by
// filename without the extension.
package localzip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

// Provider lists and loads zip archives from a single flat directory.
type Provider struct {
	rootDir  string
	password string
}

// New returns a Provider rooted at cfg.RootDir.
func New(cfg provider.ZipConfig, releaseZipPassword string) *Provider {
	return &Provider{rootDir: cfg.RootDir, password: releaseZipPassword}
}

// ShouldRefresh always returns false: local archives carry no content
// hash, so a re-scan could only notice archives being added or removed,
// never an archive's content changing; the directory is scanned once, at
// the initial load.
func (p *Provider) ShouldRefresh() bool { return false }

// List performs a one-level scan of the root directory for "*.zip"
// files and diffs the discovered keys against snap. Local archives never
// report a content hash, so every discovered key not already present is
// Created and nothing is ever Updated.
func (p *Provider) List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error) {
	entries, err := os.ReadDir(p.rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("localzip: failed to read directory %q: %w", p.rootDir, err)
	}

	var listing []store.Listed
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".zip")
		if key == "" {
			continue
		}
		listing = append(listing, store.Listed{Key: key})
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

// Fetch opens "<key>.zip" under the root directory and runs the archive
// loader against it.
func (p *Provider) Fetch(ctx context.Context, key string) (*provider.Fetched, error) {
	path := filepath.Join(p.rootDir, key+".zip")
	f, err := os.Open(path)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "localzip").Str("key", key).Err(err).Msg("failed to open archive")
		return nil, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "localzip").Str("key", key).Err(err).Msg("failed to stat archive")
		return nil, nil
	}

	cat, err := catalogue.LoadZip(ctx, f, info.Size(), p.password)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "localzip").Str("key", key).Err(err).Msg("failed to parse archive")
		return nil, nil
	}

	return &provider.Fetched{Catalogue: cat}, nil
}
