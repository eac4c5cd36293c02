package provider

import (
	"encoding/json"
	"testing"
)

func TestDecodeConfigDispatchesOnType(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want func(Config) bool
	}{
		{
			name: "Zip",
			raw:  `{"type":"Zip","rootDir":"/bundles"}`,
			want: func(c Config) bool { return c.Zip != nil && c.Zip.RootDir == "/bundles" },
		},
		{
			name: "Filesystem",
			raw:  `{"type":"Filesystem","rootDir":"/projects"}`,
			want: func(c Config) bool { return c.Filesystem != nil && c.Filesystem.RootDir == "/projects" },
		},
		{
			name: "S3",
			raw:  `{"type":"S3","bucket":"b","prefix":"p/","region":"us-east-1"}`,
			want: func(c Config) bool {
				return c.S3 != nil && c.S3.Bucket == "b" && c.S3.Prefix == "p/" && c.S3.Region == "us-east-1"
			},
		},
		{
			name: "AzureStorage",
			raw:  `{"type":"AzureStorage","connectionString":"cs","container":"ctr"}`,
			want: func(c Config) bool {
				return c.AzureStorage != nil && c.AzureStorage.ConnectionString == "cs" && c.AzureStorage.Container == "ctr"
			},
		},
		{
			name: "GCS",
			raw:  `{"type":"GCS","bucket":"b","base64Credentials":"xyz"}`,
			want: func(c Config) bool {
				return c.GCS != nil && c.GCS.Bucket == "b" && c.GCS.Base64Credentials == "xyz"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := DecodeConfig(json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("DecodeConfig failed: %v", err)
			}
			if cfg.Type != tc.name {
				t.Errorf("Type = %q, want %q", cfg.Type, tc.name)
			}
			if !tc.want(cfg) {
				t.Errorf("decoded config did not match expectations: %+v", cfg)
			}
		})
	}
}

func TestDecodeConfigUnknownTypeFails(t *testing.T) {
	if _, err := DecodeConfig(json.RawMessage(`{"type":"Carrier Pigeon"}`)); err == nil {
		t.Fatal("expected an unknown provider type to fail decoding")
	}
}

func TestDecodeConfigMalformedJSONFails(t *testing.T) {
	if _, err := DecodeConfig(json.RawMessage(`not json`)); err == nil {
		t.Fatal("expected malformed JSON to fail decoding")
	}
}
