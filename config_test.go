package agent

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeConfigDefaultsPollInterval(t *testing.T) {
	cfg, err := DecodeConfig(json.RawMessage(`{"provider":{"type":"Filesystem","rootDir":"/x"}}`))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
}

func TestDecodeConfigRejectsIntervalBelowMinimum(t *testing.T) {
	raw := `{"provider":{"type":"Filesystem","rootDir":"/x"},"pollInterval":500}`
	if _, err := DecodeConfig(json.RawMessage(raw)); err == nil {
		t.Fatal("expected an interval below MinPollInterval to be rejected")
	}
}

func TestDecodeConfigAcceptsExplicitInterval(t *testing.T) {
	raw := `{"provider":{"type":"Filesystem","rootDir":"/x"},"pollInterval":10000}`
	cfg, err := DecodeConfig(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
}

func TestDecodeConfigCarriesReleaseZipPasswordAndHTTPSSL(t *testing.T) {
	raw := `{
		"provider": {"type": "Filesystem", "rootDir": "/x"},
		"releaseZipPassword": "hunter2",
		"corsPermissive": true,
		"httpSsl": {"key": "a2V5", "cert": "Y2VydA=="}
	}`
	cfg, err := DecodeConfig(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.ReleaseZipPassword != "hunter2" {
		t.Errorf("ReleaseZipPassword = %q, want %q", cfg.ReleaseZipPassword, "hunter2")
	}
	if !cfg.CORSPermissive {
		t.Error("expected CORSPermissive to be true")
	}
	if cfg.HTTPSSL == nil || cfg.HTTPSSL.KeyBase64 != "a2V5" || cfg.HTTPSSL.CertBase64 != "Y2VydA==" {
		t.Errorf("unexpected HTTPSSL: %+v", cfg.HTTPSSL)
	}
}

func TestDecodeConfigPropagatesProviderError(t *testing.T) {
	raw := `{"provider": {"type": "NotARealProvider"}}`
	if _, err := DecodeConfig(json.RawMessage(raw)); err == nil {
		t.Fatal("expected an unknown provider type to fail config decoding")
	}
}
