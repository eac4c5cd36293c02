// Package s3 implements the S3-compatible object store provider variant:
// a bucket (optionally scoped by prefix) listed with ListObjectsV2 and
// fetched with bounded parallelism.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/internal/poison"
	"github.com/fluxmodel/agent/internal/prefix"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

// maxInFlight is the bound on concurrent object downloads during a
// refresh. This package does not enforce it; see Fetch.
const maxInFlight = 100

// Provider lists and fetches project bundles from an S3-compatible
// bucket.
type Provider struct {
	client   *s3.Client
	bucket   string
	prefix   prefix.Prefix
	password string
}

// New constructs a Provider, building an AWS SDK client from the
// process's default credential chain (environment, shared config, or
// instance role) the same way the rest of the SDK's default config
// loader does.
func New(ctx context.Context, cfg provider.S3Config, releaseZipPassword string) (*Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(regionOrDefault(cfg.Region)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	})

	return &Provider{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   prefix.New(cfg.Prefix),
		password: releaseZipPassword,
	}, nil
}

func regionOrDefault(r string) string {
	if r == "" {
		return "us-east-1"
	}
	return r
}

// ShouldRefresh always returns true: S3 reports an ETag per object, so a
// re-list is cheap to diff against on every scheduler tick.
func (p *Provider) ShouldRefresh() bool { return true }

// List enumerates objects under the configured prefix (delimiter "/",
// page size 1000), strips the prefix and the poisoned/empty entries, and
// diffs the result against snap.
func (p *Provider) List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error) {
	var listing []store.Listed

	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    &p.bucket,
		Delimiter: strPtr("/"),
		MaxKeys:   int32Ptr(1000),
		Prefix:    prefixPtr(p.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("s3: failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key := p.prefix.Strip(*obj.Key)
			if key == "" {
				continue
			}

			var hash []byte
			if obj.ETag != nil {
				hash = []byte(*obj.ETag)
			}
			if poison.HasFailed(hash) {
				continue
			}

			listing = append(listing, store.Listed{Key: key, Hash: hash})
		}
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
// archive loader against its body. Fetch itself is not parallelism-aware
// — the agent's refresh loop is responsible for bounding concurrent
// calls; maxInFlight documents the bound the refresh loop must enforce.
func (p *Provider) Fetch(ctx context.Context, key string) (*provider.Fetched, error) {
	remoteKey := p.prefix.Prepend(key)

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &p.bucket,
		Key:    &remoteKey,
	})
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "s3").Str("key", key).Err(err).Msg("failed to get object")
		return nil, nil
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "s3").Str("key", key).Err(err).Msg("failed to read object body")
		return nil, nil
	}

	var hash []byte
	if out.ETag != nil {
		hash = []byte(*out.ETag)
	}

	cat, err := catalogue.LoadZip(ctx, bytes.NewReader(body), int64(len(body)), p.password)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "s3").Str("key", key).Bytes("hash", hash).Err(err).Msg("failed to parse archive")
		poison.Insert(hash)
		return nil, nil
	}

	return &provider.Fetched{Catalogue: cat, ContentHash: hash}, nil
}

func strPtr(s string) *string { return &s }
func int32Ptr(i int32) *int32 { return &i }

func prefixPtr(p prefix.Prefix) *string {
	if p.Empty() {
		return nil
	}
	s := p.String()
	return &s
}
