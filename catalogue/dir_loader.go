package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quay/zlog"
)

// LoadDir parses an unpacked project directory tree rooted at dir into a
// Catalogue. It applies the same rules as LoadZip, but against a real
// filesystem tree instead of an archive: ".config/project.json" is the
// release manifest (absent or malformed, the project is open), every
// other path under ".config/" is ignored, and every remaining regular
// file must parse as a decision document or the whole load fails.
func LoadDir(ctx context.Context, dir string) (*Catalogue, error) {
	release := tryLoadReleaseFile(ctx, filepath.Join(dir, filepath.FromSlash(releaseManifestName)))

	decisions := make(map[string]DecisionContent)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("catalogue: failed to walk %q: %w", p, err)
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf("catalogue: failed to compute relative path for %q: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if rel == releaseManifestName || strings.HasPrefix(rel, configPrefix) {
			return nil
		}

		raw, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("catalogue: failed to read %q: %w", rel, err)
		}

		var content DecisionContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return fmt.Errorf("catalogue: failed to parse decision %q: %w", rel, err)
		}

		key := strings.ToLower(rel)
		if _, exists := decisions[key]; exists {
			zlog.Warn(ctx).Str("path", key).Msg("duplicate decision path after case folding, keeping last entry")
		}
		decisions[key] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	return New(decisions, release), nil
}

// tryLoadReleaseFile reads and parses the release manifest at path,
// tolerating any failure: an absent or malformed manifest leaves the
// project open.
func tryLoadReleaseFile(ctx context.Context, path string) *ReleaseData {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Warn(ctx).Err(err).Msg("failed to read release manifest, treating project as open")
		}
		return nil
	}

	var out ReleaseData
	if err := json.Unmarshal(raw, &out); err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to parse release manifest, treating project as open")
		return nil
	}
	return &out
}
