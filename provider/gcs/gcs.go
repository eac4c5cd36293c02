// Package gcs implements the Google Cloud Storage provider variant.
package gcs

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/quay/zlog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/internal/poison"
	"github.com/fluxmodel/agent/internal/prefix"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

// Provider lists and fetches project bundles from a Google Cloud
// Storage bucket.
type Provider struct {
	client   *storage.Client
	bucket   string
	prefix   prefix.Prefix
	password string
}

// New constructs a Provider. If cfg.Base64Credentials is set, it is
// base64-decoded into a service-account JSON key file and used directly;
// otherwise the client falls back to application-default credentials.
func New(ctx context.Context, cfg provider.GCSConfig, releaseZipPassword string) (*Provider, error) {
	var opts []option.ClientOption
	if cfg.Base64Credentials != "" {
		raw, err := base64.StdEncoding.DecodeString(cfg.Base64Credentials)
		if err != nil {
			return nil, fmt.Errorf("gcs: invalid base64 credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed to build client: %w", err)
	}

	return &Provider{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   prefix.New(cfg.Prefix),
		password: releaseZipPassword,
	}, nil
}

// ShouldRefresh always returns true: every object reports an ETag, so a
// re-list is cheap to diff against on every scheduler tick.
func (p *Provider) ShouldRefresh() bool { return true }

// List enumerates objects under the configured prefix (delimiter "/",
// page size 1000) and diffs the result against snap.
func (p *Provider) List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error) {
	var listing []store.Listed

	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{
		Prefix:    p.prefix.String(),
		Delimiter: "/",
	})
	it.PageInfo().MaxSize = 1000

	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("gcs: failed to list objects: %w", err)
		}

		key := p.prefix.Strip(obj.Name)
		if key == "" {
			continue
		}

		hash := []byte(obj.Etag)
		if poison.HasFailed(hash) {
			continue
		}

		listing = append(listing, store.Listed{Key: key, Hash: hash})
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

// Fetch downloads the object at key (prefix-prepended) and runs the
// archive loader against it.
func (p *Provider) Fetch(ctx context.Context, key string) (*provider.Fetched, error) {
	remoteKey := p.prefix.Prepend(key)
	obj := p.client.Bucket(p.bucket).Object(remoteKey)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "gcs").Str("key", key).Err(err).Msg("failed to stat object")
		return nil, nil
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "gcs").Str("key", key).Err(err).Msg("failed to open object reader")
		return nil, nil
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "gcs").Str("key", key).Err(err).Msg("failed to read object body")
		return nil, nil
	}

	hash := []byte(attrs.Etag)

	cat, err := catalogue.LoadZip(ctx, bytes.NewReader(body), int64(len(body)), p.password)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "gcs").Str("key", key).Bytes("hash", hash).Err(err).Msg("failed to parse archive")
		poison.Insert(hash)
		return nil, nil
	}

	return &provider.Fetched{Catalogue: cat, ContentHash: hash}, nil
}
