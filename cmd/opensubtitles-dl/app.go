package main

import (
	"context"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/cache"
	"github.com/Belphemur/opensubtitles-dl/internal/client"
	"github.com/Belphemur/opensubtitles-dl/internal/config"
	"github.com/Belphemur/opensubtitles-dl/internal/pipeline"
	"github.com/Belphemur/opensubtitles-dl/internal/presenter"
	"github.com/Belphemur/opensubtitles-dl/internal/services"
)

// runLookup wires the components for one lookup and returns the exit code.
func runLookup(ctx context.Context, configFile, imdbID string, in io.Reader, out, errOut io.Writer) int {
	ui := presenter.New(in, out)
	ui.Banner(config.AppName, config.AppVersion)

	cfg, err := config.Load(configFile)
	if err != nil {
		ui.Error(err)
		ui.Completed()
		return apperrors.ExitCode(err, 0)
	}

	logger := config.NewLogger(errOut, cfg.LogLevel)
	logger.Debug().
		Str("api_url", cfg.APIURL).
		Strs("languages", cfg.Languages()).
		Str("target_encoding", cfg.TargetEncoding).
		Str("cache_provider", cfg.Cache.Provider).
		Msg("Configuration loaded")

	flush := initSentry(cfg, logger)
	defer flush()

	searchCache, err := newSearchCache(cfg, logger)
	if err != nil {
		ui.Error(err)
		ui.Completed()
		return apperrors.ExitFatal
	}
	defer func() {
		if err := searchCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close search cache")
		}
	}()

	transport := client.NewTransport(cfg, logger)
	rpc, err := client.NewClient(cfg, transport, logger)
	if err != nil {
		ui.Error(err)
		ui.Completed()
		return apperrors.ExitCode(err, 0)
	}
	defer rpc.Close()

	opts := services.MaterializerOptions{
		Root:           cfg.SubtitlesPath,
		TargetEncoding: cfg.TargetEncoding,
		MaxRetries:     cfg.Download.MaxRetries,
	}
	if ui.Interactive() {
		opts.Progress = ui.Progress
	}
	materializer := services.NewSubtitleMaterializer(client.NewHTTPClient(cfg, transport), services.NewTranscoder(), opts, logger)

	runner := pipeline.NewRunner(
		client.NewCachedSearcher(rpc, searchCache, logger),
		materializer,
		ui,
		pipeline.Options{
			Languages:       cfg.Languages(),
			Root:            cfg.SubtitlesPath,
			MetricsTextfile: cfg.Metrics.Textfile,
		},
		logger,
	)

	report, err := runner.Run(ctx, imdbID)
	if err != nil && apperrors.IsFatal(err) {
		sentry.CaptureException(err)
	}
	return apperrors.ExitCode(err, report.Failed())
}

// newSearchCache creates the configured cache provider. The cache is an
// optimization only, so a backend that cannot be opened is replaced by an
// in-memory cache.
func newSearchCache(cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	providerCfg := cache.ProviderConfig{
		Size:          cfg.Cache.Size,
		TTL:           cfg.CacheTTL(),
		Path:          cfg.Cache.Path,
		RedisAddress:  cfg.Cache.RedisAddress,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		Group:         "search",
		Logger:        cache.NewZerologLogger(logger),
	}

	c, err := cache.New(cfg.Cache.Provider, providerCfg)
	if err == nil {
		return c, nil
	}

	logger.Warn().Err(err).Str("provider", cfg.Cache.Provider).Msg("Search cache unavailable, falling back to memory")
	return cache.New("memory", providerCfg)
}

// initSentry enables error reporting when a DSN is configured and returns the flush function.
func initSentry(cfg *config.Config, logger zerolog.Logger) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          "opensubtitles-dl@" + config.AppVersion,
		AttachStacktrace: true,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Sentry")
		return func() {}
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}
}
