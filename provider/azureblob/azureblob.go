// Package azureblob implements the Azure Blob container provider
// variant.
package azureblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/quay/zlog"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/internal/poison"
	"github.com/fluxmodel/agent/internal/prefix"
	"github.com/fluxmodel/agent/provider"
	"github.com/fluxmodel/agent/store"
)

// Provider lists and fetches project bundles from an Azure Blob
// container.
type Provider struct {
	client   *container.Client
	prefix   prefix.Prefix
	password string
}

// New constructs a Provider from a connection string, matching
// azure_storage.rs's use of ConnectionString-derived credentials.
func New(cfg provider.AzureStorageConfig, releaseZipPassword string) (*Provider, error) {
	svc, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azureblob: failed to build client from connection string: %w", err)
	}

	return &Provider{
		client:   svc.ServiceClient().NewContainerClient(cfg.Container),
		prefix:   prefix.New(cfg.Prefix),
		password: releaseZipPassword,
	}, nil
}

// ShouldRefresh always returns true: every blob carries an ETag, so a
// re-list is cheap to diff against on every scheduler tick.
func (p *Provider) ShouldRefresh() bool { return true }

// List enumerates blobs under the configured prefix (delimiter "/", page
// size 1000) using a hierarchical listing, which is Azure's equivalent
// of the delimiter-filtered listing the other cloud variants use; blob
// prefixes (virtual "subdirectories") are skipped, only concrete blobs
// are considered.
func (p *Provider) List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error) {
	var listing []store.Listed

	maxResults := int32(1000)
	pager := p.client.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		MaxResults: &maxResults,
		Prefix:     prefixPtr(p.prefix),
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("azureblob: failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			key := p.prefix.Strip(*blob.Name)
			if key == "" {
				continue
			}

			var hash []byte
			if blob.Properties != nil && blob.Properties.ETag != nil {
				hash = []byte(strings.Trim(string(*blob.Properties.ETag), `"`))
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

// Fetch downloads the blob at key (prefix-prepended) and runs the
// archive loader against it.
func (p *Provider) Fetch(ctx context.Context, key string) (*provider.Fetched, error) {
	remoteKey := p.prefix.Prepend(key)
	blob := p.client.NewBlobClient(remoteKey)

	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "azureblob").Str("key", key).Err(err).Msg("failed to download blob")
		return nil, nil
	}

	var hash []byte
	if resp.ETag != nil {
		hash = []byte(strings.Trim(string(*resp.ETag), `"`))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "azureblob").Str("key", key).Err(err).Msg("failed to read blob body")
		return nil, nil
	}

	cat, err := catalogue.LoadZip(ctx, bytes.NewReader(body), int64(len(body)), p.password)
	if err != nil {
		zlog.Error(ctx).Str("provider.kind", "azureblob").Str("key", key).Bytes("hash", hash).Err(err).Msg("failed to parse archive")
		poison.Insert(hash)
		return nil, nil
	}

	return &provider.Fetched{Catalogue: cat, ContentHash: hash}, nil
}

func prefixPtr(p prefix.Prefix) *string {
	if p.Empty() {
		return nil
	}
	s := p.String()
	return &s
}
