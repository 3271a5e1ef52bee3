package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/costtracker"
	"github.com/ternarybob/jobscout/internal/engine"
	"github.com/ternarybob/jobscout/internal/external"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
	"github.com/ternarybob/jobscout/internal/platform"
	"github.com/ternarybob/jobscout/internal/scheduler"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/cachestore"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
	"github.com/ternarybob/jobscout/internal/storage/hybrid"
	"github.com/ternarybob/jobscout/internal/storage/sqlstore"
)

// configPaths is a custom flag type allowing -config to be repeated, later
// files overriding earlier ones, matching the teacher's cmd/quaero/main.go.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles    configPaths
	query          = flag.String("query", "", "Job search query, e.g. \"python developer\"")
	location       = flag.String("location", "", "Job search location")
	maxResults     = flag.Int("max-results", 50, "Maximum jobs to return")
	platforms      = flag.String("platforms", "", "Comma-separated platform names (overrides config if set)")
	showVersion    = flag.Bool("version", false, "Print version information")
	maxConcurrent  = flag.Int("max-concurrent", 0, "Override scheduler.max_concurrent (0 keeps the config value)")
	storageBackend = flag.String("storage-backend", "", "Override storage.backend (empty keeps the config value)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (repeatable, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("jobscout version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("jobscout.toml"); err == nil {
			configFiles = append(configFiles, "jobscout.toml")
		}
	}

	cfg, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Strs("paths", configFiles).Msg("failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(cfg, *maxConcurrent, *storageBackend)

	logger := common.SetupLogger(cfg)
	common.PrintBanner(cfg, logger)
	defer common.Stop()

	// Clone once so no subsystem holds a pointer that lets it mutate the
	// config main.go itself hangs onto for the lifetime of the process.
	app, err := buildApp(common.DeepCloneConfig(cfg), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize jobscout")
	}
	defer app.close()

	if *query != "" {
		runOnce(app, logger)
		return
	}

	runServer(app, logger)
}

// application bundles every component main wires together, so shutdown and
// the two run modes (one-shot CLI search, long-running server) can share it.
type application struct {
	cfg       *common.Config
	logger    arbor.ILogger
	scheduler *scheduler.Scheduler
	registry  *platform.Registry
	pipeline  *pipeline.Pipeline
	cost      *costtracker.Tracker
	engine    *engine.Engine
	progress  *engine.ProgressServer
	recurring *engine.RecurringSearch
	pool      *external.ChromeDPPool
}

func (a *application) close() {
	a.scheduler.Stop()
	if a.recurring != nil {
		a.recurring.Stop()
	}
	if a.pool != nil {
		a.pool.Shutdown()
	}
}

func buildApp(cfg *common.Config, logger arbor.ILogger) (*application, error) {
	sched := scheduler.New(cfg.Scheduler.MaxConcurrent, logger)
	sched.Start()

	registry := platform.New(logger)
	registerPlatforms(registry, cfg, logger)

	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building storage backend: %w", err)
	}

	pl := pipeline.New("jobscout", pipeline.Config{
		BatchSize:          cfg.Pipeline.BatchSize,
		MaxWorkers:         cfg.Pipeline.StageParallelism,
		ParallelEnabled:    cfg.Pipeline.StageParallelism > 1,
		CheckpointPath:     cfg.Pipeline.CheckpointDir,
	}, logger,
		stages.NewValidation(),
		stages.NewCleaning(),
		stages.NewTransformation(),
		stages.NewEnrichment(),
		stages.NewDeduplication(stages.DedupeByURL, stages.DedupeByContent),
		stages.NewStorage(store),
	)

	cost, err := costtracker.New(cfg.Cost.JournalPath, costtracker.Limits{
		Hourly: cfg.Cost.HourlyLimitUSD, Daily: cfg.Cost.DailyLimitUSD, Monthly: cfg.Cost.MonthlyLimitUSD,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing cost tracker: %w", err)
	}

	modelClient, pool, err := buildModelClient(cfg, cost, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("no model client configured, query analysis will fall back to keyword splitting")
	}

	eng := engine.New(cfg.Engine, logger, sched, registry, pl, cost, modelClient)

	app := &application{
		cfg: cfg, logger: logger, scheduler: sched, registry: registry,
		pipeline: pl, cost: cost, engine: eng, pool: pool,
	}

	if cfg.Engine.WebSocketAddr != "" {
		app.progress = engine.NewProgressServer(logger)
	}
	if cfg.Engine.RecurringSchedule != "" {
		if err := common.ValidateRecurringSchedule(cfg.Engine.RecurringSchedule); err != nil {
			return nil, fmt.Errorf("invalid recurring schedule: %w", err)
		}
		app.recurring = engine.NewRecurringSearch(eng)
	}

	return app, nil
}

func buildStore(cfg *common.Config, logger arbor.ILogger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return sqlstore.New(cfg.Storage.SQLStore.Path, logger)
	case "file":
		return filestore.New(cfg.Storage.FileStore.Dir, logger), nil
	case "memory":
		return cachestore.New(cachestore.Config{MaxSize: cfg.Storage.CacheStore.MaxEntries, Policy: cachestore.Policy(cfg.Storage.CacheStore.EvictionPolicy)}, logger)
	case "hybrid":
		memory, err := cachestore.New(cachestore.Config{
			MaxSize: cfg.Storage.CacheStore.MaxEntries,
			Policy:  cachestore.Policy(cfg.Storage.CacheStore.EvictionPolicy),
		}, logger)
		if err != nil {
			return nil, err
		}
		durable, err := sqlstore.New(cfg.Storage.SQLStore.Path, logger)
		if err != nil {
			return nil, err
		}
		return hybrid.New(memory, durable), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildModelClient wires whichever provider is configured with a usable API
// key; pool is non-nil only when JS-rendering platforms are enabled.
func buildModelClient(cfg *common.Config, cost *costtracker.Tracker, logger arbor.ILogger) (engine.ModelClient, *external.ChromeDPPool, error) {
	var pool *external.ChromeDPPool
	if cfg.Platforms.EnableJavaScript {
		pool = external.NewChromeDPPool(external.ChromeDPPoolConfig{
			MaxInstances:   2,
			UserAgent:      cfg.Platforms.UserAgent,
			Headless:       true,
			RequestTimeout: cfg.Platforms.RequestTimeout,
		}, logger)
		if err := pool.Init(); err != nil {
			logger.Warn().Err(err).Msg("chromedp pool failed to initialize, JS-rendered platforms will be unavailable")
			pool = nil
		}
	}

	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		if cfg.Claude.APIKey == "" {
			return nil, pool, fmt.Errorf("claude is the default provider but no API key is configured")
		}
		client, err := external.NewClaudeModelClient(cfg.Claude, cost, logger)
		if err != nil {
			return nil, pool, err
		}
		return external.NewEngineModelAdapter(client), pool, nil
	case common.LLMProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, pool, fmt.Errorf("gemini is the default provider but no API key is configured")
		}
		client, err := external.NewGeminiModelClient(context.Background(), cfg.Gemini, cost, logger)
		if err != nil {
			return nil, pool, err
		}
		return external.NewEngineModelAdapter(client), pool, nil
	default:
		return nil, pool, fmt.Errorf("unknown LLM provider %q", cfg.LLM.DefaultProvider)
	}
}

// runOnce drives a single search from the CLI flags and prints the result
// as JSON to stdout.
func runOnce(app *application, logger arbor.ILogger) {
	req := models.SearchRequest{Query: *query, Location: *location, MaxResults: *maxResults}
	if *platforms != "" {
		req.Platforms = splitCSV(*platforms)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfgSearchTimeout(app.cfg))
	defer cancel()

	result, err := app.engine.SearchJobs(ctx, req)
	if err != nil {
		logger.Fatal().Err(err).Msg("search failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to marshal search result")
	}
	fmt.Println(string(out))
}

func cfgSearchTimeout(cfg *common.Config) time.Duration {
	if cfg.Platforms.RequestTimeout <= 0 {
		return 2 * time.Minute
	}
	return cfg.Platforms.RequestTimeout * 4
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// runServer keeps the process alive serving the optional streaming
// progress WebSocket and running any registered recurring searches, until
// an interrupt signal arrives — mirroring the teacher's graceful-shutdown
// select over a signal channel.
func runServer(app *application, logger arbor.ILogger) {
	if app.recurring != nil {
		app.recurring.Start()
		logger.Info().Str("schedule", app.cfg.Engine.RecurringSchedule).Msg("recurring search enabled")
	}

	var httpServer *http.Server
	if app.progress != nil {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws/progress", app.progress.Handler)
		httpServer = &http.Server{Addr: app.cfg.Engine.WebSocketAddr, Handler: mux}

		common.SafeGo(logger, "websocket-server", func() {
			logger.Info().Str("addr", app.cfg.Engine.WebSocketAddr).Msg("streaming progress API listening")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("websocket server failed")
			}
		})
	}

	logger.Info().Msg("jobscout ready - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("websocket server shutdown failed")
		}
	}
}
