package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config holds all postpilot configuration.
type Config struct {
	Name string `yaml:"name"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Pass-through services
	LLM    LLMConfig    `yaml:"llm"`
	Image  ImageConfig  `yaml:"image"`
	Trends TrendsConfig `yaml:"trends"`

	// Generation defaults (tone, format, emoji density)
	Compose ComposeConfig `yaml:"compose"`

	// Storage
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`

	// Browser and editor injection
	Browser  BrowserConfig  `yaml:"browser"`
	Injector InjectorConfig `yaml:"injector"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the text generation model.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// ImageConfig configures the text-to-image service.
type ImageConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Styling string `yaml:"styling"`
	Size    string `yaml:"size"`
	Timeout string `yaml:"timeout"`
}

// TrendsConfig configures the trending-topics search.
type TrendsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Query   string `yaml:"query"`
	Num     int    `yaml:"num"`
	Timeout string `yaml:"timeout"`
}

// ComposeConfig holds the default generation settings.
type ComposeConfig struct {
	Tone         string `yaml:"tone"`
	Format       string `yaml:"format"`        // text, bullet, carousel
	EmojiDensity string `yaml:"emoji_density"` // 0-3
}

// DatabaseConfig configures the posts database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`
}

// HistoryConfig configures the local history backend.
type HistoryConfig struct {
	Backend       string `yaml:"backend"` // sqlite, redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Key           string `yaml:"key"`
}

// BrowserConfig configures the Chrome connection.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"`
	Launch            []string `yaml:"launch"`
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	SessionStore      string   `yaml:"session_store"`
	TargetMatch       string   `yaml:"target_match"` // URL substring of the tab to inject into
}

// InjectorConfig configures editor discovery. Empty selector lists keep the built-in
// markers.
type InjectorConfig struct {
	PollInterval string          `yaml:"poll_interval"`
	MaxAttempts  int             `yaml:"max_attempts"`
	Selectors    SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig overrides the page markers used by the injector.
type SelectorsConfig struct {
	Editor            []string `yaml:"editor"`
	TriggerClasses    []string `yaml:"trigger_classes"`
	TriggerAria       []string `yaml:"trigger_aria"`
	TriggerCandidates string   `yaml:"trigger_candidates"`
	TriggerPhrases    []string `yaml:"trigger_phrases"`
	FeedItem          string   `yaml:"feed_item"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "postpilot",

		Server: ServerConfig{
			Addr:            "localhost:3000",
			ShutdownTimeout: "10s",
		},

		LLM: LLMConfig{
			Model:   "gemini-3-flash-preview",
			Timeout: "60s",
		},

		Image: ImageConfig{
			BaseURL: "https://api.freepik.com/v1/ai/text-to-image",
			Styling: "digital_art",
			Size:    "1024x1024",
			Timeout: "60s",
		},

		Trends: TrendsConfig{
			BaseURL: "https://google.serper.dev/search",
			Query:   "latest business and tech trends 2026",
			Num:     10,
			Timeout: "15s",
		},

		Compose: ComposeConfig{
			Tone:         "professional",
			Format:       "text",
			EmojiDensity: "2",
		},

		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   ".postpilot/posts.db",
		},

		History: HistoryConfig{
			Backend:   "sqlite",
			RedisAddr: "localhost:6379",
			Key:       "postpilot:history",
		},

		Browser: BrowserConfig{
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
			SessionStore:      ".postpilot/browser/sessions.json",
			TargetMatch:       "linkedin.com",
		},

		Injector: InjectorConfig{
			PollInterval: "500ms",
			MaxAttempts:  16,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults plus environment when there is no file
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("FREEPIK_API_KEY"); key != "" {
		c.Image.APIKey = key
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		c.Trends.APIKey = key
	}
	if path := os.Getenv("POSTPILOT_DB"); path != "" {
		c.Database.Path = path
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.History.RedisAddr = addr
	}
	if url := os.Getenv("CHROME_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
}

// GetLLMTimeout returns the generation timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetImageTimeout returns the image service timeout as a duration.
func (c *Config) GetImageTimeout() time.Duration {
	return parseDuration(c.Image.Timeout, 60*time.Second)
}

// GetTrendsTimeout returns the trends search timeout as a duration.
func (c *Config) GetTrendsTimeout() time.Duration {
	return parseDuration(c.Trends.Timeout, 15*time.Second)
}

// GetShutdownTimeout returns the HTTP graceful shutdown timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetNavigationTimeout returns the browser navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetPollInterval returns the editor poll interval.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Injector.PollInterval, 500*time.Millisecond)
}

// GetMaxAttempts returns the editor poll budget.
func (c *Config) GetMaxAttempts() int {
	if c.Injector.MaxAttempts <= 0 {
		return 16
	}
	return c.Injector.MaxAttempts
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Valid enum values.
var (
	ValidDrivers         = []string{"sqlite3", "sqlite"}
	ValidHistoryBackends = []string{"sqlite", "redis"}
	ValidFormats         = []string{"text", "bullet", "carousel"}
	ValidEmojiDensities  = []string{"0", "1", "2", "3"}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !lo.Contains(ValidDrivers, c.Database.Driver) {
		return fmt.Errorf("invalid database driver: %s (valid: %v)", c.Database.Driver, ValidDrivers)
	}
	if !lo.Contains(ValidHistoryBackends, c.History.Backend) {
		return fmt.Errorf("invalid history backend: %s (valid: %v)", c.History.Backend, ValidHistoryBackends)
	}
	if !lo.Contains(ValidFormats, c.Compose.Format) {
		return fmt.Errorf("invalid compose format: %s (valid: %v)", c.Compose.Format, ValidFormats)
	}
	if !lo.Contains(ValidEmojiDensities, c.Compose.EmojiDensity) {
		return fmt.Errorf("invalid emoji density: %s (valid: %v)", c.Compose.EmojiDensity, ValidEmojiDensities)
	}
	if c.Injector.MaxAttempts < 0 {
		return fmt.Errorf("injector max_attempts must not be negative: %d", c.Injector.MaxAttempts)
	}
	return nil
}
