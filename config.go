package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxmodel/agent/catalogue"
	"github.com/fluxmodel/agent/provider"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// MinPollInterval is the lowest accepted poll interval; Config
// validation rejects anything below it.
const MinPollInterval = 1 * time.Second

// Config configures an Agent's provider and refresh schedule.
//
// Config intentionally carries nothing about logging, HTTP transport or
// process-level flags — those stay in cmd/agent. CORSPermissive and
// HTTPSSL are recognised here only because the provider/release-password
// fields live alongside them in the same configuration document; they
// are otherwise unused by this package and are surfaced for
// agenthttp/cmd callers to consume.
type Config struct {
	Provider provider.Config
	// ReleaseZipPassword is applied per-entry, with fallback to
	// plaintext, by every variant that loads zip archives (Zip, S3,
	// AzureStorage, GCS); FilesystemConfig never uses it.
	ReleaseZipPassword string
	PollInterval       time.Duration
	CORSPermissive     bool
	HTTPSSL            *HTTPSSLConfig

	// NewEvaluator binds a freshly loaded catalogue to an Evaluator.
	// The actual decision-evaluation engine is an external collaborator
	// (see SPEC_FULL.md §1); production callers supply their own
	// implementation here. Required — New returns an error if nil.
	NewEvaluator func(*catalogue.Catalogue) Evaluator
}

// HTTPSSLConfig is the base64 PEM key/cert pair recognised by spec.md
// §6's "http_ssl" option; cmd/agent decodes it into a crypto/tls.Config,
// this package only carries it through.
type HTTPSSLConfig struct {
	KeyBase64  string
	CertBase64 string
}

// rawConfig mirrors the wire shape of the agent's configuration
// document, milliseconds-as-int poll interval included, before it's
// normalized into Config.
type rawConfig struct {
	Provider           json.RawMessage `json:"provider"`
	PollIntervalMillis *int64          `json:"pollInterval"`
	ReleaseZipPassword string          `json:"releaseZipPassword"`
	CORSPermissive     bool            `json:"corsPermissive"`
	OtelEnabled        bool            `json:"otelEnabled"`
	HTTPSSL            *struct {
		Key  string `json:"key"`
		Cert string `json:"cert"`
	} `json:"httpSsl"`
}

// DecodeConfig parses raw into a Config, validating PollInterval against
// MinPollInterval and defaulting it to DefaultPollInterval when absent.
func DecodeConfig(raw json.RawMessage) (Config, error) {
	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Config{}, fmt.Errorf("agent: failed to decode config: %w", err)
	}

	pcfg, err := provider.DecodeConfig(rc.Provider)
	if err != nil {
		return Config{}, err
	}

	interval := DefaultPollInterval
	if rc.PollIntervalMillis != nil {
		interval = time.Duration(*rc.PollIntervalMillis) * time.Millisecond
	}
	if interval < MinPollInterval {
		return Config{}, fmt.Errorf("agent: poll interval %s is below the minimum of %s", interval, MinPollInterval)
	}

	cfg := Config{
		Provider:           pcfg,
		ReleaseZipPassword: rc.ReleaseZipPassword,
		PollInterval:       interval,
		CORSPermissive:     rc.CORSPermissive,
	}
	if rc.HTTPSSL != nil {
		cfg.HTTPSSL = &HTTPSSLConfig{KeyBase64: rc.HTTPSSL.Key, CertBase64: rc.HTTPSSL.Cert}
	}
	return cfg, nil
}
