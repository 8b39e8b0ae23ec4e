// Package main is the entry point for the nixgate cache gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prn-tf/nixgate/internal/config"
	"github.com/prn-tf/nixgate/internal/gateway"
	"github.com/prn-tf/nixgate/internal/httpapi"
	"github.com/prn-tf/nixgate/internal/metrics"
	"github.com/prn-tf/nixgate/internal/rescache"
	"github.com/prn-tf/nixgate/internal/sigv4"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "nixgate-server <listen-addr> <config.toml>",
		Short:        "Run the nixgate read-through caching gateway",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("nixgate-server exited with error")
	}
}

func run(listenAddr, configPath string) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting nixgate server")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg.Server.ListenAddr = listenAddr

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Logging.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	mirrors, err := parseURLs(cfg.Mirrors)
	if err != nil {
		return fmt.Errorf("parse mirrors: %w", err)
	}
	origins, err := parseOriginURLs(cfg.Origins)
	if err != nil {
		return fmt.Errorf("parse origins: %w", err)
	}

	s3Endpoint, err := url.Parse(cfg.S3.Endpoint)
	if err != nil {
		return fmt.Errorf("parse s3.endpoint: %w", err)
	}
	objectStoreEndpoint := gateway.ObjectStoreURL(s3Endpoint, cfg.S3.Bucket)

	signer := sigv4.New(cfg.S3.AccessKeyID, cfg.S3.AccessKeySecret, cfg.S3.Region, sigv4.ServiceS3)

	cache, err := newCache(cfg)
	if err != nil {
		return fmt.Errorf("build resolution cache: %w", err)
	}

	reg := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(reg)
		log.Info().Str("path", cfg.Metrics.Path).Msg("Prometheus metrics enabled")
	}

	gw := gateway.New(gateway.Config{
		Mirrors:             mirrors,
		Origins:             origins,
		ObjectStoreEndpoint: objectStoreEndpoint,
		Signer:              signer,
		Cache:               cache,
		MirrorDeadline:      cfg.Cache.MirrorDeadline,
		OriginDeadline:      cfg.Cache.OriginDeadline,
		MaxRedirects:        cfg.Cache.MaxRedirects,
		PresignExpiry:       cfg.Cache.PresignExpiry,
		Metrics:             m,
		Logger:              log.Logger,
	})

	router := httpapi.NewRouter(httpapi.Config{
		Gateway:        gw,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         log.Logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func newCache(cfg *config.Config) (rescache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis resolution cache")
		return rescache.NewRedisCache(client, cfg.Cache.RedisKeyPrefix, cfg.Cache.TTL), nil
	case "memory":
		log.Info().Int("max_entries", cfg.Cache.MaxEntries).Msg("Using in-memory resolution cache")
		return rescache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func parseURLs(mirrors []config.Mirror) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(mirrors))
	for _, m := range mirrors {
		u, err := url.Parse(m.URL)
		if err != nil {
			return nil, fmt.Errorf("parse mirror %q: %w", m.URL, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func parseOriginURLs(origins []config.Origin) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o.URL)
		if err != nil {
			return nil, fmt.Errorf("parse origin %q: %w", o.URL, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}
