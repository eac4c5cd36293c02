// Package provider abstracts over the storage backend a project bundle
// lives in: a local directory of zip archives, a local directory of
// already-unpacked project trees, or one of three cloud object stores.
// Every variant exposes the same two operations — list and fetch — so
// the agent's refresh loop never needs to know which one it's talking
// to.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/store"
)

// ErrUnchanged is a sentinel for a Fetch that finds a key's content
// identical to what was already requested, without re-downloading it,
// modeled on driver.Unchanged. None of the variants in this module return
// it, and the agent's refresh loop does not treat it specially: like any
// other Fetch error, it leaves the key out of that refresh's results.
var ErrUnchanged = fmt.Errorf("provider: content unchanged")

// Fetched is the result of a successful Fetch: a parsed catalogue plus
// the content hash the provider observed, if any.
type Fetched struct {
	Catalogue   *catalogue.Catalogue
	ContentHash []byte
}

// Provider is the interface every storage backend variant implements.
type Provider interface {
	// List enumerates remote artifacts, filters out any whose content
	// hash is already known to be poisoned or whose post-strip key is
	// empty, and returns both the diff against snap and the set of
	// keys that need fetching to apply it.
	List(ctx context.Context, snap *store.Snapshot) (store.Diff, []string, error)

	// Fetch downloads and parses the bundle stored at key. A nil,nil
	// return means the fetch failed and was already logged; the caller
	// should treat key as absent from this round's results. Any
	// content hash observed on a failed parse is recorded in the
	// poisoned registry by the implementation before it returns.
	Fetch(ctx context.Context, key string) (*Fetched, error)

	// ShouldRefresh reports whether the scheduler should re-invoke this
	// provider on a timer after the initial load. Local providers
	// return false: a full directory scan on every tick would be
	// wasted work for a backend that never reports a hash to diff
	// against cheaply. Cloud providers return true.
	ShouldRefresh() bool
}

// Config is the discriminated union of every variant's configuration, as
// parsed from the agent's "provider" configuration block.
type Config struct {
	Type string `json:"type"`

	Zip          *ZipConfig          `json:"-"`
	Filesystem   *FilesystemConfig   `json:"-"`
	S3           *S3Config           `json:"-"`
	AzureStorage *AzureStorageConfig `json:"-"`
	GCS          *GCSConfig          `json:"-"`
}

// ZipConfig configures the local directory-of-archives variant.
type ZipConfig struct {
	RootDir string `json:"rootDir"`
}

// FilesystemConfig configures the local unpacked-directory variant.
type FilesystemConfig struct {
	RootDir string `json:"rootDir"`
}

// S3Config configures the S3-compatible object store variant.
type S3Config struct {
	Bucket         string `json:"bucket"`
	Prefix         string `json:"prefix"`
	Endpoint       string `json:"endpoint"`
	ForcePathStyle bool   `json:"forcePathStyle"`
	Region         string `json:"region"`
}

// AzureStorageConfig configures the Azure Blob container variant.
type AzureStorageConfig struct {
	ConnectionString string `json:"connectionString"`
	Container        string `json:"container"`
	Prefix           string `json:"prefix"`
}

// GCSConfig configures the Google Cloud Storage variant.
type GCSConfig struct {
	Bucket            string `json:"bucket"`
	Prefix            string `json:"prefix"`
	Base64Credentials string `json:"base64Credentials"`
}

// DecodeConfig parses raw into a Config, dispatching on the "type"
// discriminator field before decoding the variant-specific payload. This
// mirrors driver.ConfigUnmarshaler's shape: a generic decode step that
// hands a typed sub-config to whichever variant claims it.
func DecodeConfig(raw json.RawMessage) (Config, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Config{}, fmt.Errorf("provider: failed to decode type discriminator: %w", err)
	}

	cfg := Config{Type: head.Type}
	switch head.Type {
	case "Zip":
		var c ZipConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("provider: failed to decode Zip config: %w", err)
		}
		cfg.Zip = &c
	case "Filesystem":
		var c FilesystemConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("provider: failed to decode Filesystem config: %w", err)
		}
		cfg.Filesystem = &c
	case "S3":
		var c S3Config
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("provider: failed to decode S3 config: %w", err)
		}
		cfg.S3 = &c
	case "AzureStorage":
		var c AzureStorageConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("provider: failed to decode AzureStorage config: %w", err)
		}
		cfg.AzureStorage = &c
	case "GCS":
		var c GCSConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("provider: failed to decode GCS config: %w", err)
		}
		cfg.GCS = &c
	default:
		return Config{}, fmt.Errorf("provider: unknown provider type %q", head.Type)
	}

	return cfg, nil
}
