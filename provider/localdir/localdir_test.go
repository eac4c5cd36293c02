package localdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListFindsSubdirectories(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "alpha", "a.json"), "{}")
	mustWrite(t, filepath.Join(dir, "beta", "a.json"), "{}")
	mustWrite(t, filepath.Join(dir, "stray-file.txt"), "x")

	p := New(provider.FilesystemConfig{RootDir: dir})
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

func TestFetchLoadsNamedSubdirectory(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "alpha", "a.json"), `{"meta":{"versionId":"v1"}}`)

	p := New(provider.FilesystemConfig{RootDir: dir})
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

func TestFetchMissingSubdirectoryReturnsNilNil(t *testing.T) {
	ctx := zlog.Test(context.Background(), t)
	p := New(provider.FilesystemConfig{RootDir: t.TempDir()})
	fetched, err := p.Fetch(ctx, "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fetched != nil {
		t.Fatal("expected a nil Fetched result for a missing directory")
	}
}
