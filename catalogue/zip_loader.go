package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/quay/zlog"
	"github.com/yeka/zip"
)

const configPrefix = ".config/"

const releaseManifestName = ".config/project.json"

// LoadZip parses the zip archive in r into a Catalogue.
//
// Every entry whose enclosed name escapes the archive root, or that
// resolves to something other than a regular file, is skipped. Entries
// under ".config/" are never treated as decisions: ".config/project.json"
// is parsed as the release manifest (a malformed or absent manifest is
// tolerated — the project is simply treated as open), every other
// ".config/" entry is ignored outright. Every remaining entry must parse
// as a decision document; one that doesn't fails the whole load, since a
// single malformed decision makes the bundle's content untrustworthy as a
// whole.
//
// If password is non-empty, each entry is first attempted with
// password-based decryption; an entry that isn't encrypted, or that
// doesn't decrypt under password, falls back to being read as plaintext.
func LoadZip(ctx context.Context, r io.ReaderAt, size int64, password string) (*Catalogue, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("catalogue: failed to open zip archive: %w", err)
	}

	var release *ReleaseData
	decisions := make(map[string]DecisionContent, len(archive.File))

	for _, f := range archive.File {
		name := cleanEntryName(f.Name)
		if name == "" {
			continue
		}
		if !f.FileInfo().Mode().IsRegular() {
			continue
		}

		if name == releaseManifestName {
			if rd, ok := tryParseRelease(ctx, f, password); ok {
				release = rd
			}
			continue
		}
		if strings.HasPrefix(name, configPrefix) {
			continue
		}

		rc, err := openEntry(f, password)
		if err != nil {
			return nil, fmt.Errorf("catalogue: failed to read entry %q: %w", name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("catalogue: failed to read entry %q: %w", name, err)
		}

		var content DecisionContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("catalogue: failed to parse decision %q: %w", name, err)
		}

		key := strings.ToLower(name)
		if _, exists := decisions[key]; exists {
			zlog.Warn(ctx).Str("path", key).Msg("duplicate decision path after case folding, keeping last entry")
		}
		decisions[key] = content
	}

	return New(decisions, release), nil
}

// tryParseRelease reads and parses the release manifest entry, tolerating
// any failure by reporting ok=false: an unreadable or malformed manifest
// leaves the project open rather than failing the whole bundle.
func tryParseRelease(ctx context.Context, f *zip.File, password string) (rd *ReleaseData, ok bool) {
	rc, err := openEntry(f, password)
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to open release manifest, treating project as open")
		return nil, false
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to read release manifest, treating project as open")
		return nil, false
	}

	var out ReleaseData
	if err := json.Unmarshal(raw, &out); err != nil {
		zlog.Warn(ctx).Err(err).Msg("failed to parse release manifest, treating project as open")
		return nil, false
	}
	return &out, true
}

// openEntry opens f for reading, trying password decryption first (when f
// is marked encrypted and password is set) and falling back to a
// plaintext read.
func openEntry(f *zip.File, password string) (io.ReadCloser, error) {
	if f.IsEncrypted() && password != "" {
		f.SetPassword(password)
		if rc, err := f.Open(); err == nil {
			return rc, nil
		}
	}
	return f.Open()
}

// cleanEntryName validates and normalizes a zip entry's name the way
// Rust's `enclosed_name` does: reject absolute paths and any entry that
// escapes the archive root via "..", and normalize "./" and repeated
// slashes away. An entry that fails validation yields "".
func cleanEntryName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") {
		return ""
	}
	clean := path.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return ""
	}
	return clean
}
