package localzip

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %q: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %q: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
}

func TestListFindsZipFilesByTrimmedName(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "alpha.zip"), map[string]string{"a.json": "{}"})
	writeZip(t, filepath.Join(dir, "beta.zip"), map[string]string{"a.json": "{}"})
	if err := os.WriteFile(filepath.Join(dir, "not-a-zip.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(provider.ZipConfig{RootDir: dir}, "")
	var snap store.Snapshot
	diff, keys, err := p.List(ctx, &snap)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(diff) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(diff), diff)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys to fetch, got %d: %v", len(keys), keys)
	}
}

func TestFetchLoadsNamedArchive(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "alpha.zip"), map[string]string{"a.json": `{"meta":{"versionId":"v1"}}`})

	p := New(provider.ZipConfig{RootDir: dir}, "")
	fetched, err := p.Fetch(ctx, "alpha")
	if err != nil {
		t.Fatalf("Fetch returned an error: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected a non-nil Fetched result")
	}
	if _, ok := fetched.Catalogue.Load("a.json"); !ok {
		t.Error("expected a.json to be loaded")
	}
}

func TestFetchMissingArchiveReturnsNilNil(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	p := New(provider.ZipConfig{RootDir: t.TempDir()}, "")
	fetched, err := p.Fetch(ctx, "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fetched != nil {
		t.Fatal("expected a nil Fetched result for a missing archive")
	}
}

func TestShouldRefreshIsFalse(t *testing.T) {
	p := New(provider.ZipConfig{RootDir: "."}, "")
	if p.ShouldRefresh() {
		t.Error("expected ShouldRefresh to be false for the local zip variant")
	}
}
