package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the jobscout application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production" - controls test URL validation
	Logging     LoggingConfig    `toml:"logging"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Cost        CostConfig       `toml:"cost"`
	Storage     StorageConfig    `toml:"storage"`
	Platforms   PlatformsConfig  `toml:"platforms"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Engine      EngineConfig     `toml:"engine"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Retry       RetryProfileSet  `toml:"retry"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// SchedulerConfig controls the in-process bounded-concurrency priority task scheduler (C2)
type SchedulerConfig struct {
	MaxConcurrent int    `toml:"max_concurrent"` // Maximum tasks running at once
	PollInterval  string `toml:"poll_interval"`  // How often the dispatch loop wakes, e.g. "100ms"
	QueueCapacity int    `toml:"queue_capacity"` // Soft cap on pending queue depth, 0 = unbounded
}

// CostConfig controls LLM usage budget gates (C3)
type CostConfig struct {
	HourlyLimitUSD  float64 `toml:"hourly_limit_usd"`
	DailyLimitUSD   float64 `toml:"daily_limit_usd"`
	MonthlyLimitUSD float64 `toml:"monthly_limit_usd"`
	JournalPath     string  `toml:"journal_path"` // Path to the JSON usage journal file
	JournalCapacity int     `toml:"journal_capacity"`
}

// StorageConfig selects and configures the job-record storage backend (C4)
type StorageConfig struct {
	Backend    string           `toml:"backend"` // "sqlite", "file", "memory", or "hybrid"
	SQLStore   SQLStoreConfig   `toml:"sqlstore"`
	FileStore  FileStoreConfig  `toml:"filestore"`
	CacheStore CacheStoreConfig `toml:"cachestore"`
}

type SQLStoreConfig struct {
	Path string `toml:"path"` // SQLite database file path
}

type FileStoreConfig struct {
	Dir    string `toml:"dir"`    // Directory holding per-search JSON/CSV exports
	Format string `toml:"format"` // "json" or "csv"
}

type CacheStoreConfig struct {
	MaxEntries      int    `toml:"max_entries"`
	EvictionPolicy  string `toml:"eviction_policy"` // "lru", "lfu", "fifo", "ttl"
	TTL             string `toml:"ttl"`             // entry lifetime for the ttl policy, e.g. "1h"
	SweepInterval   string `toml:"sweep_interval"`  // background eviction sweep cadence, e.g. "30s"
	PersistentBadgerPath string `toml:"persistent_badger_path"` // optional badger-backed persistent tier, empty disables it
}

// PlatformsConfig lists and configures the platform adapter registry (C5)
type PlatformsConfig struct {
	Enabled           []string      `toml:"enabled"` // platform names to register at startup
	RequestTimeout    time.Duration `toml:"request_timeout"`
	MinRequestDelay   time.Duration `toml:"min_request_delay"`
	MaxRequestDelay   time.Duration `toml:"max_request_delay"`
	RateLimitPerSec   float64       `toml:"rate_limit_per_sec"`
	UserAgent         string        `toml:"user_agent"`
	EnableJavaScript  bool          `toml:"enable_javascript"` // use chromedp instead of the static goquery page
}

// PipelineConfig controls ETL pipeline batching and stage behavior (C6)
type PipelineConfig struct {
	BatchSize           int     `toml:"batch_size"`
	StageParallelism    int     `toml:"stage_parallelism"`
	CheckpointDir       string  `toml:"checkpoint_dir"`
	DedupeSimilarity    float64 `toml:"dedupe_similarity"`     // Jaccard similarity threshold above which two jobs are duplicates
	DedupeCacheCapacity int     `toml:"dedupe_cache_capacity"` // bounded signature cache size
	MinQualityScore     float64 `toml:"min_quality_score"`
	ExportFormat        string  `toml:"export_format"` // "csv", "json", "excel", "html"
	ExportDir           string  `toml:"export_dir"`
}

// EngineConfig controls the crawler engine orchestrator (C7)
type EngineConfig struct {
	MaxConcurrentPlatforms int    `toml:"max_concurrent_platforms"`
	ProgressBufferSize     int    `toml:"progress_buffer_size"`
	WebSocketAddr          string `toml:"websocket_addr"` // address to serve the streaming progress API on, empty disables it
	RecurringSchedule      string `toml:"recurring_schedule"` // optional cron schedule for recurring searches
}

// RetryProfileSet holds the three preconfigured retry profiles (C1)
type RetryProfileSet struct {
	Network  RetryProfileConfig `toml:"network"`
	API      RetryProfileConfig `toml:"api"`
	Scraping RetryProfileConfig `toml:"scraping"`
}

type RetryProfileConfig struct {
	MaxAttempts  int     `toml:"max_attempts"`
	BaseDelay    string  `toml:"base_delay"`
	MaxDelay     string  `toml:"max_delay"`
	Multiplier   float64 `toml:"multiplier"`
	JitterFactor float64 `toml:"jitter_factor"`
}

// GeminiConfig contains Google Gemini API configuration for vision-fallback parsing
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration for vision-fallback parsing
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the vision-model provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for the vision-fallback model client
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in jobscout.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Scheduler: SchedulerConfig{
			MaxConcurrent: 10,
			PollInterval:  "100ms",
			QueueCapacity: 0,
		},
		Cost: CostConfig{
			HourlyLimitUSD:  5.0,
			DailyLimitUSD:   25.0,
			MonthlyLimitUSD: 200.0,
			JournalPath:     "./data/usage_journal.json",
			JournalCapacity: 1000,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLStore: SQLStoreConfig{
				Path: "./data/jobscout.db",
			},
			FileStore: FileStoreConfig{
				Dir:    "./data/exports",
				Format: "json",
			},
			CacheStore: CacheStoreConfig{
				MaxEntries:     10000,
				EvictionPolicy: "lru",
				TTL:            "1h",
				SweepInterval:  "30s",
			},
		},
		Platforms: PlatformsConfig{
			Enabled:          []string{},
			RequestTimeout:   30 * time.Second,
			MinRequestDelay:  500 * time.Millisecond,
			MaxRequestDelay:  2 * time.Second,
			RateLimitPerSec:  1.0,
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			EnableJavaScript: false,
		},
		Pipeline: PipelineConfig{
			BatchSize:           50,
			StageParallelism:    4,
			CheckpointDir:       "./data/checkpoints",
			DedupeSimilarity:    0.85,
			DedupeCacheCapacity: 5000,
			MinQualityScore:     0.5,
			ExportFormat:        "json",
			ExportDir:           "./data/exports",
		},
		Engine: EngineConfig{
			MaxConcurrentPlatforms: 5,
			ProgressBufferSize:     100,
			WebSocketAddr:          "",
			RecurringSchedule:      "",
		},
		// Mirrors internal/retry's hardcoded Network()/API()/Scraping()
		// profiles so a default jobscout.toml documents the same numbers
		// the binary actually retries with.
		Retry: RetryProfileSet{
			Network: RetryProfileConfig{
				MaxAttempts: 3, BaseDelay: "1s", MaxDelay: "30s", Multiplier: 2.0, JitterFactor: 0.1,
			},
			API: RetryProfileConfig{
				MaxAttempts: 5, BaseDelay: "500ms", MaxDelay: "60s", Multiplier: 1.5, JitterFactor: 0.1,
			},
			Scraping: RetryProfileConfig{
				MaxAttempts: 3, BaseDelay: "2s", MaxDelay: "45s", Multiplier: 2.0, JitterFactor: 0.1,
			},
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("JOBSCOUT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("JOBSCOUT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("JOBSCOUT_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("JOBSCOUT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if maxConcurrent := os.Getenv("JOBSCOUT_SCHEDULER_MAX_CONCURRENT"); maxConcurrent != "" {
		if mc, err := strconv.Atoi(maxConcurrent); err == nil {
			config.Scheduler.MaxConcurrent = mc
		}
	}
	if pollInterval := os.Getenv("JOBSCOUT_SCHEDULER_POLL_INTERVAL"); pollInterval != "" {
		config.Scheduler.PollInterval = pollInterval
	}

	if hourly := os.Getenv("JOBSCOUT_COST_HOURLY_LIMIT_USD"); hourly != "" {
		if h, err := strconv.ParseFloat(hourly, 64); err == nil {
			config.Cost.HourlyLimitUSD = h
		}
	}
	if daily := os.Getenv("JOBSCOUT_COST_DAILY_LIMIT_USD"); daily != "" {
		if d, err := strconv.ParseFloat(daily, 64); err == nil {
			config.Cost.DailyLimitUSD = d
		}
	}
	if monthly := os.Getenv("JOBSCOUT_COST_MONTHLY_LIMIT_USD"); monthly != "" {
		if m, err := strconv.ParseFloat(monthly, 64); err == nil {
			config.Cost.MonthlyLimitUSD = m
		}
	}

	if backend := os.Getenv("JOBSCOUT_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if sqlPath := os.Getenv("JOBSCOUT_STORAGE_SQLITE_PATH"); sqlPath != "" {
		config.Storage.SQLStore.Path = sqlPath
	}

	if enabled := os.Getenv("JOBSCOUT_PLATFORMS_ENABLED"); enabled != "" {
		platforms := []string{}
		for _, p := range strings.Split(enabled, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				platforms = append(platforms, trimmed)
			}
		}
		if len(platforms) > 0 {
			config.Platforms.Enabled = platforms
		}
	}
	if userAgent := os.Getenv("JOBSCOUT_PLATFORMS_USER_AGENT"); userAgent != "" {
		config.Platforms.UserAgent = userAgent
	}

	if exportFormat := os.Getenv("JOBSCOUT_PIPELINE_EXPORT_FORMAT"); exportFormat != "" {
		config.Pipeline.ExportFormat = exportFormat
	}

	if addr := os.Getenv("JOBSCOUT_ENGINE_WEBSOCKET_ADDR"); addr != "" {
		config.Engine.WebSocketAddr = addr
	}

	// Gemini configuration: ResolveAPIKey checks JOBSCOUT_GEMINI_API_KEY
	// then GOOGLE_API_KEY, falling back to whatever LoadFromFiles already
	// parsed from the TOML file.
	if apiKey, err := ResolveAPIKey("gemini_api_key", config.Gemini.APIKey); err == nil {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("JOBSCOUT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude configuration: same resolution order, JOBSCOUT_CLAUDE_API_KEY
	// taking priority over ANTHROPIC_API_KEY.
	if apiKey, err := ResolveAPIKey("claude_api_key", config.Claude.APIKey); err == nil {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("JOBSCOUT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("JOBSCOUT_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, maxConcurrent int, storageBackend string) {
	if maxConcurrent > 0 {
		config.Scheduler.MaxConcurrent = maxConcurrent
	}
	if storageBackend != "" {
		config.Storage.Backend = storageBackend
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> config fallback -> error.
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"JOBSCOUT_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"JOBSCOUT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"JOBSCOUT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ValidateRecurringSchedule validates a cron schedule expression and rejects a
// minute field of "*" or "*/N" with N below 5; other minute fields (lists,
// ranges) are not checked for spacing.
func ValidateRecurringSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]

	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		interval, err := strconv.Atoi(intervalStr)
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are allowed.
// Test URLs are only allowed in development mode.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}

// DeepCloneConfig creates a deep copy of the Config struct, used to prevent
// mutation of a shared config across engine runs.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.Platforms.Enabled) > 0 {
		clone.Platforms.Enabled = make([]string, len(c.Platforms.Enabled))
		copy(clone.Platforms.Enabled, c.Platforms.Enabled)
	}

	return &clone
}
