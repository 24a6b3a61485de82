// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Crawler   CrawlerConfig   `mapstructure:"crawler" yaml:"crawler"`
	Scanner   ScannerConfig   `mapstructure:"scanner" yaml:"scanner"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" yaml:"knowledge"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// CrawlerConfig configures site traversal.
type CrawlerConfig struct {
	MaxDepth          int     `mapstructure:"max_depth" yaml:"max_depth"`
	IncludeSubdomains bool    `mapstructure:"include_subdomains" yaml:"include_subdomains"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	SafeClicks        bool    `mapstructure:"safe_clicks" yaml:"safe_clicks"`
	// AllowManualCheck suspends the crawl and hands control to an operator
	// when a captcha or login wall is detected.
	AllowManualCheck bool `mapstructure:"allow_manual_check" yaml:"allow_manual_check"`
}

// ScannerConfig configures DOM extraction.
type ScannerConfig struct {
	// CanvasCapture rasterizes each canvas element for later inspection.
	CanvasCapture bool `mapstructure:"canvas_capture" yaml:"canvas_capture"`
}

// LLMConfig points at the text-generation backend.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Model          string        `mapstructure:"model" yaml:"model"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout" yaml:"stream_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ContextPrompt  string        `mapstructure:"context_prompt" yaml:"context_prompt"`
}

// KnowledgeConfig selects and locates the knowledge store backend.
type KnowledgeConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"-"`
}

// ExecutorConfig tunes scenario execution.
type ExecutorConfig struct {
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ValidationWait time.Duration `mapstructure:"validation_wait" yaml:"validation_wait"`
	ScreenshotDir  string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// RetryConfig shapes the generic retry primitive used for navigation.
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	Backoff  bool          `mapstructure:"backoff" yaml:"backoff"`
}

// OutputConfig locates report artifacts.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formscout")
	v.SetDefault("logger.log_file", "formscout.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "1s")

	// -- Crawler --
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.include_subdomains", false)
	v.SetDefault("crawler.requests_per_second", 2.0)
	v.SetDefault("crawler.safe_clicks", true)
	v.SetDefault("crawler.allow_manual_check", false)

	// -- Scanner --
	v.SetDefault("scanner.canvas_capture", false)

	// -- LLM --
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("llm.request_timeout", "120s")
	v.SetDefault("llm.stream_timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "5s")
	v.SetDefault("llm.context_prompt",
		"You are a QA engineer. Generate test cases for the fields.")

	// -- Knowledge --
	v.SetDefault("knowledge.backend", "file")
	v.SetDefault("knowledge.path", filepath.Join("outputs", "knowledge.json"))

	// -- Executor --
	v.SetDefault("executor.settle_delay", "800ms")
	v.SetDefault("executor.validation_wait", "1s")
	v.SetDefault("executor.screenshot_dir", filepath.Join("outputs", "screenshots"))
	v.SetDefault("executor.concurrency", 1)

	// -- Retry --
	v.SetDefault("retry.attempts", 2)
	v.SetDefault("retry.delay", "5s")
	v.SetDefault("retry.backoff", true)

	// -- Output --
	v.SetDefault("output.dir", "outputs")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Sensitive values come from the environment, never the config file.
	_ = v.BindEnv("knowledge.postgres_url", "FORMSCOUT_KNOWLEDGE_PG_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Knowledge.Backend == "postgres" && cfg.Knowledge.PostgresURL == "" {
		cfg.Knowledge.PostgresURL = os.Getenv("FORMSCOUT_KNOWLEDGE_PG_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must not be negative")
	}
	if c.Crawler.RequestsPerSecond <= 0 {
		return fmt.Errorf("crawler.requests_per_second must be positive")
	}
	if c.Executor.Concurrency <= 0 {
		return fmt.Errorf("executor.concurrency must be a positive integer")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be a positive integer")
	}
	switch c.Knowledge.Backend {
	case "file", "memory":
	case "postgres":
		if c.Knowledge.PostgresURL == "" {
			return fmt.Errorf("knowledge.backend is postgres but no connection URL is set (FORMSCOUT_KNOWLEDGE_PG_URL)")
		}
	default:
		return fmt.Errorf("unknown knowledge.backend %q (supported: file, memory, postgres)", c.Knowledge.Backend)
	}
	return nil
}

// DefaultConfigDir returns the per-user fallback directory for config files.
func DefaultConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".formscout"), nil
}
