// Command scriptpipe is the rehearsal pipeline server: it turns uploaded
// scripts into reconciled dialogue lines, synthesized two-voice audio, and a
// word-level cue sheet, and serves the results over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/readingpartner/scriptpipe/internal/api"
	"github.com/readingpartner/scriptpipe/internal/blob"
	"github.com/readingpartner/scriptpipe/internal/config"
	"github.com/readingpartner/scriptpipe/internal/doccheck"
	"github.com/readingpartner/scriptpipe/internal/health"
	"github.com/readingpartner/scriptpipe/internal/observe"
	"github.com/readingpartner/scriptpipe/internal/pipeline"
	"github.com/readingpartner/scriptpipe/internal/resilience"
	"github.com/readingpartner/scriptpipe/internal/store"
	"github.com/readingpartner/scriptpipe/internal/store/postgres"
	"github.com/readingpartner/scriptpipe/internal/voicecast"
	alignel "github.com/readingpartner/scriptpipe/pkg/provider/align/elevenlabs"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
	extractoa "github.com/readingpartner/scriptpipe/pkg/provider/extract/openai"
	ttsel "github.com/readingpartner/scriptpipe/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scriptpipe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scriptpipe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scriptpipe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "scriptpipe",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Stores ────────────────────────────────────────────────────────────────
	var st store.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		st = pg
		slog.Info("project store ready", "backend", "postgres")
	} else {
		st = store.NewMemStore()
		slog.Warn("no postgres_dsn configured, projects will not survive a restart")
	}

	audioDir := cfg.Storage.AudioDir
	if audioDir == "" {
		audioDir = "data/audio"
	}
	var blobOpts []blob.Option
	if cfg.Storage.AudioURLPrefix != "" {
		blobOpts = append(blobOpts, blob.WithURLPrefix(cfg.Storage.AudioURLPrefix))
	}
	blobs, err := blob.NewFSStore(audioDir, blobOpts...)
	if err != nil {
		slog.Error("failed to open audio store", "dir", audioDir, "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	extractor, synth, aligner, breakers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var checkOpts []doccheck.Option
	if cfg.Limits.MaxUploadBytes > 0 {
		checkOpts = append(checkOpts, doccheck.WithMaxSize(cfg.Limits.MaxUploadBytes))
	}
	if cfg.Limits.MaxPDFPages > 0 {
		checkOpts = append(checkOpts, doccheck.WithMaxPages(cfg.Limits.MaxPDFPages))
	}
	checker := doccheck.New(checkOpts...)
	pipeOpts := []pipeline.Option{
		pipeline.WithChecker(checker),
		pipeline.WithMetrics(metrics),
	}
	if len(cfg.Providers.TTS.Voices) == 2 {
		pipeOpts = append(pipeOpts, pipeline.WithVoicePool(voicecast.Pool{
			First:  cfg.Providers.TTS.Voices[0],
			Second: cfg.Providers.TTS.Voices[1],
		}))
	}
	pipe := pipeline.New(st, blobs, extractor, synth, aligner, pipeOpts...)
	runner := pipeline.NewRunner(ctx, 0, metrics)

	// ── HTTP server ───────────────────────────────────────────────────────────
	checks := []health.Checker{health.StoreCheck(st)}
	for name, b := range breakers {
		checks = append(checks, health.BreakerCheck(name, b))
	}

	server := api.New(api.Config{
		Store:          st,
		Blobs:          blobs,
		Pipeline:       pipe,
		Runner:         runner,
		Metrics:        metrics,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		Health:         checks,
		Logger:         logger,
	})

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, addr)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := runner.Wait(); err != nil {
		slog.Warn("job runner drain error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// buildProviders constructs the three external services and wraps each in a
// circuit breaker configured from cfg.Breaker.
func buildProviders(cfg *config.Config) (*extract.Extractor, *resilience.GuardedSynthesizer, *resilience.GuardedAligner, map[string]*resilience.Breaker, error) {
	breakerCfg := func(name string) resilience.Config {
		return resilience.Config{
			Name:         name,
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
			HalfOpenMax:  cfg.Breaker.HalfOpenMax,
		}
	}

	var extractOpts []extractoa.Option
	if cfg.Providers.Extract.BaseURL != "" {
		extractOpts = append(extractOpts, extractoa.WithBaseURL(cfg.Providers.Extract.BaseURL))
	}
	if cfg.Providers.Extract.MaxTokens > 0 {
		extractOpts = append(extractOpts, extractoa.WithMaxTokens(int64(cfg.Providers.Extract.MaxTokens)))
	}
	if cfg.Providers.Extract.Timeout > 0 {
		extractOpts = append(extractOpts, extractoa.WithTimeout(cfg.Providers.Extract.Timeout))
	}
	extractSvc, err := extractoa.New(cfg.Providers.Extract.APIKey, cfg.Providers.Extract.Model, extractOpts...)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create extraction provider: %w", err)
	}
	guardedExtract := resilience.GuardExtractor(extractSvc, breakerCfg("extract"))

	var ttsOpts []ttsel.Option
	if cfg.Providers.TTS.Model != "" {
		ttsOpts = append(ttsOpts, ttsel.WithModel(cfg.Providers.TTS.Model))
	}
	if cfg.Providers.TTS.Stability > 0 {
		ttsOpts = append(ttsOpts, ttsel.WithStability(cfg.Providers.TTS.Stability))
	}
	ttsSvc, err := ttsel.New(cfg.Providers.TTS.APIKey, ttsOpts...)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create synthesis provider: %w", err)
	}
	guardedTTS := resilience.GuardSynthesizer(ttsSvc, breakerCfg("tts"))

	alignSvc, err := alignel.New(cfg.Providers.Align.APIKey)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create alignment provider: %w", err)
	}
	guardedAlign := resilience.GuardAligner(alignSvc, breakerCfg("align"))

	breakers := map[string]*resilience.Breaker{
		"extract": guardedExtract.Breaker(),
		"tts":     guardedTTS.Breaker(),
		"align":   guardedAlign.Breaker(),
	}
	return extract.NewExtractor(guardedExtract), guardedTTS, guardedAlign, breakers, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, addr string) {
	storeBackend := "in-memory"
	if cfg.Storage.PostgresDSN != "" {
		storeBackend = "postgres"
	}
	extractModel := cfg.Providers.Extract.Model
	if extractModel == "" {
		extractModel = "(default)"
	}
	ttsModel := cfg.Providers.TTS.Model
	if ttsModel == "" {
		ttsModel = "(default)"
	}

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        scriptpipe — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Extract model", extractModel)
	printRow("TTS model", ttsModel)
	printRow("Project store", storeBackend)
	printRow("Listen addr", addr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
