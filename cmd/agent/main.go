// Command agent runs the decision-project sync agent as a standalone
// HTTP service: it mirrors a configured storage backend into memory,
// refreshes it on a schedule, and serves the evaluate/project-info/
// health/version HTTP surface.
package main

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/crgimenes/goconfig"
	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/fluxmodel/agent"
	"github.com/fluxmodel/agent/agenthttp"
	"github.com/fluxmodel/agent/catalogue"
)

// Config uses goconfig for flag and env var parsing, matching
// cmd/libvulnhttp/main.go's approach. See:
// https://github.com/crgimenes/goconfig
type Config struct {
	HTTPListenAddr string `cfgDefault:"0.0.0.0:8080" cfg:"HTTP_LISTEN_ADDR"`
	LogLevel       string `cfgDefault:"info" cfg:"LOG_LEVEL" cfgHelper:"Log levels: debug, info, warning, error, fatal, panic"`
	// ConfigJSON is the full agent configuration document described by
	// spec.md §6 ("Configuration"): provider block, pollInterval,
	// releaseZipPassword, corsPermissive, httpSsl.
	ConfigJSON string `cfg:"AGENT_CONFIG_JSON" cfgHelper:"JSON document configuring the provider and refresh schedule"`
}

// newEvaluator must be supplied by whatever decision-evaluation engine
// this deployment links in; this binary intentionally does not bundle
// one (the engine is a named-only external collaborator, see
// SPEC_FULL.md §1). A real deployment replaces this var at build time
// with an adapter over its actual evaluation engine.
var newEvaluator func(*catalogue.Catalogue) agent.Evaluator

func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}).
		With().Timestamp().Caller().
		Logger()

	conf := Config{}
	if err := goconfig.Parse(&conf); err != nil {
		log.Fatal().Msgf("failed to parse config: %v", err)
	}

	log = log.Level(logLevel(conf))
	zlog.Set(&log)

	if newEvaluator == nil {
		log.Fatal().Msg("no decision-evaluation engine wired into this build; set newEvaluator before building cmd/agent")
	}

	if conf.ConfigJSON == "" {
		log.Fatal().Msg("AGENT_CONFIG_JSON must be set")
	}
	cfg, err := agent.DecodeConfig(json.RawMessage(conf.ConfigJSON))
	if err != nil {
		log.Fatal().Msgf("failed to decode agent config: %v", err)
	}
	cfg.NewEvaluator = newEvaluator

	a, err := agent.New(ctx, cfg)
	if err != nil {
		log.Fatal().Msgf("failed to construct agent: %v", err)
	}

	h := agenthttp.New(a)
	defer h.Close()

	srv := &http.Server{
		Addr:        conf.HTTPListenAddr,
		Handler:     h,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	if tlsCfg, err := tlsConfig(cfg.HTTPSSL); err != nil {
		log.Fatal().Msgf("failed to build TLS config: %v", err)
	} else if tlsCfg != nil {
		srv.TLSConfig = tlsCfg
	}

	log.Info().Msgf("starting http server on %v", conf.HTTPListenAddr)
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		log.Fatal().Msgf("http server exited: %v", err)
	}
}

// tlsConfig decodes the base64 PEM key/cert pair from spec.md §6's
// "http_ssl" option into a crypto/tls.Config, matching
// HttpSslConfig::to_rustls_config in the original implementation's
// config.rs. Returns nil, nil if no TLS config was supplied.
func tlsConfig(ssl *agent.HTTPSSLConfig) (*tls.Config, error) {
	if ssl == nil {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(ssl.KeyBase64)
	if err != nil {
		return nil, err
	}
	cert, err := base64.StdEncoding.DecodeString(ssl.CertBase64)
	if err != nil {
		return nil, err
	}
	pair, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}}, nil
}

func logLevel(conf Config) zerolog.Level {
	if l, err := zerolog.ParseLevel(strings.ToLower(conf.LogLevel)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
