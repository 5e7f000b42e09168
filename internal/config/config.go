// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "FEEDPILOT"

// ProviderGemini is the only LLM provider wired today.
const ProviderGemini = "gemini"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Humanoid() HumanoidConfig
	Delays() DelaysConfig
	Limits() LimitsConfig
	Timeouts() TimeoutsConfig
	Campaign() CampaignConfig
	Feed() FeedConfig
	LinkedIn() LinkedInConfig
	Paths() PathsConfig
	LLM() LLMConfig
	Decision() DecisionConfig
	Selectors() SelectorsConfig
	Auth() AuthConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	HumanoidCfg  HumanoidConfig  `mapstructure:"humanoid" yaml:"humanoid"`
	DelaysCfg    DelaysConfig    `mapstructure:"delays" yaml:"delays"`
	LimitsCfg    LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	TimeoutsCfg  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	CampaignCfg  CampaignConfig  `mapstructure:"campaign" yaml:"campaign"`
	FeedCfg      FeedConfig      `mapstructure:"feed" yaml:"feed"`
	LinkedInCfg  LinkedInConfig  `mapstructure:"linkedin" yaml:"linkedin"`
	PathsCfg     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	LLMCfg       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	DecisionCfg  DecisionConfig  `mapstructure:"decision" yaml:"decision"`
	SelectorsCfg SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	AuthCfg      AuthConfig      `mapstructure:"auth" yaml:"auth"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Humanoid() HumanoidConfig   { return c.HumanoidCfg }
func (c *Config) Delays() DelaysConfig       { return c.DelaysCfg }
func (c *Config) Limits() LimitsConfig       { return c.LimitsCfg }
func (c *Config) Timeouts() TimeoutsConfig   { return c.TimeoutsCfg }
func (c *Config) Campaign() CampaignConfig   { return c.CampaignCfg }
func (c *Config) Feed() FeedConfig           { return c.FeedCfg }
func (c *Config) LinkedIn() LinkedInConfig   { return c.LinkedInCfg }
func (c *Config) Paths() PathsConfig         { return c.PathsCfg }
func (c *Config) LLM() LLMConfig             { return c.LLMCfg }
func (c *Config) Decision() DecisionConfig   { return c.DecisionCfg }
func (c *Config) Selectors() SelectorsConfig { return c.SelectorsCfg }
func (c *Config) Auth() AuthConfig           { return c.AuthCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the audit database connection details.
// An empty URL disables the audit mirror.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the Chrome instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	StartupTimeout    time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// HumanoidConfig tunes the keystroke cadence and cognitive pauses.
type HumanoidConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	KeyPauseMeanMs   float64 `mapstructure:"key_pause_mean_ms" yaml:"key_pause_mean_ms"`
	KeyPauseStdDevMs float64 `mapstructure:"key_pause_std_dev_ms" yaml:"key_pause_std_dev_ms"`
	KeyPauseMinMs    float64 `mapstructure:"key_pause_min_ms" yaml:"key_pause_min_ms"`
	KeyPauseMaxMs    float64 `mapstructure:"key_pause_max_ms" yaml:"key_pause_max_ms"`
	KeyHoldMeanMs    float64 `mapstructure:"key_hold_mean_ms" yaml:"key_hold_mean_ms"`
	KeyHoldStdDevMs  float64 `mapstructure:"key_hold_std_dev_ms" yaml:"key_hold_std_dev_ms"`
	NgramFactor2     float64 `mapstructure:"ngram_factor_2" yaml:"ngram_factor_2"`
	NgramFactor3     float64 `mapstructure:"ngram_factor_3" yaml:"ngram_factor_3"`
	WordPauseMeanMs  float64 `mapstructure:"word_pause_mean_ms" yaml:"word_pause_mean_ms"`
}

// DelayRange is a closed interval a randomized pause is drawn from.
type DelayRange struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// Validate reports an inverted or negative range.
func (r DelayRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("delay bounds must not be negative")
	}
	if r.Max < r.Min {
		return fmt.Errorf("delay max (%v) is below min (%v)", r.Max, r.Min)
	}
	return nil
}

// DelaysConfig holds the pacing policy between UI steps.
type DelaysConfig struct {
	Action            DelayRange `mapstructure:"action" yaml:"action"`
	Scroll            DelayRange `mapstructure:"scroll" yaml:"scroll"`
	BetweenPosts      DelayRange `mapstructure:"between_posts" yaml:"between_posts"`
	BetweenCandidates DelayRange `mapstructure:"between_candidates" yaml:"between_candidates"`
	BeforeSubmit      DelayRange `mapstructure:"before_submit" yaml:"before_submit"`
	AfterSubmit       DelayRange `mapstructure:"after_submit" yaml:"after_submit"`
}

func (d DelaysConfig) ranges() map[string]DelayRange {
	return map[string]DelayRange{
		"action":             d.Action,
		"scroll":             d.Scroll,
		"between_posts":      d.BetweenPosts,
		"between_candidates": d.BetweenCandidates,
		"before_submit":      d.BeforeSubmit,
		"after_submit":       d.AfterSubmit,
	}
}

// LimitsConfig caps each action kind over a rolling 24 hour window.
type LimitsConfig struct {
	Likes       int `mapstructure:"likes" yaml:"likes"`
	Comments    int `mapstructure:"comments" yaml:"comments"`
	Connections int `mapstructure:"connections" yaml:"connections"`
	Messages    int `mapstructure:"messages" yaml:"messages"`
}

// For returns the daily limit configured for kind.
func (l LimitsConfig) For(kind schemas.ActionKind) int {
	switch kind {
	case schemas.ActionLike:
		return l.Likes
	case schemas.ActionComment:
		return l.Comments
	case schemas.ActionConnection:
		return l.Connections
	case schemas.ActionMessage:
		return l.Messages
	default:
		return 0
	}
}

// TimeoutsConfig bounds every wait-for-element step.
type TimeoutsConfig struct {
	ElementWait time.Duration `mapstructure:"element_wait" yaml:"element_wait"`
	NotePrompt  time.Duration `mapstructure:"note_prompt" yaml:"note_prompt"`
	ResultsWait time.Duration `mapstructure:"results_wait" yaml:"results_wait"`
	PollEvery   time.Duration `mapstructure:"poll_every" yaml:"poll_every"`
}

// CampaignConfig holds the settings shared by bulk campaigns.
type CampaignConfig struct {
	// MaxConsecutiveFailures trips the breaker; zero disables it.
	MaxConsecutiveFailures int  `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	RefineWithLLM          bool `mapstructure:"refine_with_llm" yaml:"refine_with_llm"`
	MaxPages               int  `mapstructure:"max_pages" yaml:"max_pages"`
}

// FeedConfig controls the feed run.
type FeedConfig struct {
	MaxPosts            int `mapstructure:"max_posts" yaml:"max_posts"`
	MaxScrollIterations int `mapstructure:"max_scroll_iterations" yaml:"max_scroll_iterations"`
}

// LinkedInConfig lists the site entry points.
type LinkedInConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	LoginURL       string `mapstructure:"login_url" yaml:"login_url"`
	FeedURL        string `mapstructure:"feed_url" yaml:"feed_url"`
	ConnectionsURL string `mapstructure:"connections_url" yaml:"connections_url"`
}

// PathsConfig locates durable state. Relative names resolve under DataDir.
type PathsConfig struct {
	DataDir          string `mapstructure:"data_dir" yaml:"data_dir"`
	HistoryFile      string `mapstructure:"history_file" yaml:"history_file"`
	CacheDir         string `mapstructure:"cache_dir" yaml:"cache_dir"`
	CookiesFile      string `mapstructure:"cookies_file" yaml:"cookies_file"`
	MessageTemplates string `mapstructure:"message_templates" yaml:"message_templates"`
	NoteTemplates    string `mapstructure:"note_templates" yaml:"note_templates"`
}

// Resolve expands "~" and anchors relative names under the data directory.
func (p PathsConfig) Resolve(name string) (string, error) {
	expanded, err := homedir.Expand(name)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %q: %w", name, err)
	}
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	dataDir, err := homedir.Expand(p.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand data dir %q: %w", p.DataDir, err)
	}
	return filepath.Join(dataDir, expanded), nil
}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	FastModels        []string      `mapstructure:"fast_models" yaml:"fast_models"`
	PowerfulModels    []string      `mapstructure:"powerful_models" yaml:"powerful_models"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens   int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// DecisionConfig holds the decision cache policy.
type DecisionConfig struct {
	// CacheFailures persists "no action" results produced by failed model calls.
	CacheFailures bool `mapstructure:"cache_failures" yaml:"cache_failures"`
}

// SelectorsConfig overrides the control lookup chains. Entries may carry a
// "document:" prefix to search outside the subject.
type SelectorsConfig struct {
	Like          []string `mapstructure:"like" yaml:"like"`
	CommentOpen   []string `mapstructure:"comment_open" yaml:"comment_open"`
	CommentEditor []string `mapstructure:"comment_editor" yaml:"comment_editor"`
	CommentSubmit []string `mapstructure:"comment_submit" yaml:"comment_submit"`
}

// AuthConfig controls session reuse and the manual login wait.
type AuthConfig struct {
	LoginWait time.Duration `mapstructure:"login_wait" yaml:"login_wait"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "feedpilot")
	v.SetDefault("logger.log_file", "feedpilot.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "1500ms")
	v.SetDefault("browser.startup_timeout", "30s")

	// -- Humanoid --
	v.SetDefault("humanoid.enabled", true)
	v.SetDefault("humanoid.key_pause_mean_ms", 70.0)
	v.SetDefault("humanoid.key_pause_std_dev_ms", 28.0)
	v.SetDefault("humanoid.key_pause_min_ms", 10.0)
	v.SetDefault("humanoid.key_pause_max_ms", 400.0)
	v.SetDefault("humanoid.key_hold_mean_ms", 55.0)
	v.SetDefault("humanoid.key_hold_std_dev_ms", 15.0)
	v.SetDefault("humanoid.ngram_factor_2", 0.8)
	v.SetDefault("humanoid.ngram_factor_3", 0.7)
	v.SetDefault("humanoid.word_pause_mean_ms", 120.0)

	// -- Delays --
	v.SetDefault("delays.action.min", "1500ms")
	v.SetDefault("delays.action.max", "4500ms")
	v.SetDefault("delays.scroll.min", "1s")
	v.SetDefault("delays.scroll.max", "3s")
	v.SetDefault("delays.between_posts.min", "5s")
	v.SetDefault("delays.between_posts.max", "10s")
	v.SetDefault("delays.between_candidates.min", "3s")
	v.SetDefault("delays.between_candidates.max", "7s")
	v.SetDefault("delays.before_submit.min", "1s")
	v.SetDefault("delays.before_submit.max", "2s")
	v.SetDefault("delays.after_submit.min", "2s")
	v.SetDefault("delays.after_submit.max", "4s")

	// -- Limits (rolling 24h) --
	v.SetDefault("limits.likes", 20)
	v.SetDefault("limits.comments", 10)
	v.SetDefault("limits.connections", 15)
	v.SetDefault("limits.messages", 10)

	// -- Timeouts --
	v.SetDefault("timeouts.element_wait", "10s")
	v.SetDefault("timeouts.note_prompt", "5s")
	v.SetDefault("timeouts.results_wait", "20s")
	v.SetDefault("timeouts.poll_every", "250ms")

	// -- Campaign --
	v.SetDefault("campaign.max_consecutive_failures", 5)
	v.SetDefault("campaign.refine_with_llm", true)
	v.SetDefault("campaign.max_pages", 3)

	// -- Feed --
	v.SetDefault("feed.max_posts", 2)
	v.SetDefault("feed.max_scroll_iterations", 10)

	// -- LinkedIn --
	v.SetDefault("linkedin.base_url", "https://www.linkedin.com")
	v.SetDefault("linkedin.login_url", "https://www.linkedin.com/login")
	v.SetDefault("linkedin.feed_url", "https://www.linkedin.com/feed/")
	v.SetDefault("linkedin.connections_url", "https://www.linkedin.com/mynetwork/invite-connect/connections/")

	// -- Paths --
	v.SetDefault("paths.data_dir", "~/.feedpilot")
	v.SetDefault("paths.history_file", "history.json")
	v.SetDefault("paths.cache_dir", "cache")
	v.SetDefault("paths.cookies_file", "cookies.json")
	v.SetDefault("paths.message_templates", "templates/messages.txt")
	v.SetDefault("paths.note_templates", "templates/notes.txt")

	// -- LLM --
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.fast_models", []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"})
	v.SetDefault("llm.powerful_models", []string{"gemini-2.5-pro", "gemini-2.5-flash"})
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 500)
	v.SetDefault("llm.requests_per_minute", 10.0)
	v.SetDefault("llm.api_timeout", "60s")

	// -- Decision cache --
	v.SetDefault("decision.cache_failures", true)

	// -- Selectors (empty means built-in chains) --
	v.SetDefault("selectors.like", []string{})
	v.SetDefault("selectors.comment_open", []string{})
	v.SetDefault("selectors.comment_editor", []string{})
	v.SetDefault("selectors.comment_submit", []string{})

	// -- Auth --
	v.SetDefault("auth.login_wait", "5m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The API key may also come from the provider's conventional variable.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind llm.api_key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.FeedCfg.MaxPosts <= 0 {
		return fmt.Errorf("feed.max_posts must be a positive integer")
	}
	if c.FeedCfg.MaxScrollIterations < 0 {
		return fmt.Errorf("feed.max_scroll_iterations must not be negative")
	}
	for _, kind := range schemas.AllActionKinds {
		if c.LimitsCfg.For(kind) < 0 {
			return fmt.Errorf("limits.%s must not be negative", kind.Collection())
		}
	}
	for name, r := range c.DelaysCfg.ranges() {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("delays.%s: %w", name, err)
		}
	}
	if c.CampaignCfg.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("campaign.max_consecutive_failures must not be negative")
	}
	if c.TimeoutsCfg.ElementWait <= 0 {
		return fmt.Errorf("timeouts.element_wait must be a positive duration")
	}
	if c.PathsCfg.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the LLM configuration. A missing API key is not an error
// here because dry runs against a warm cache never call the model.
func (l *LLMConfig) Validate() error {
	if l.Provider != ProviderGemini {
		return fmt.Errorf("unsupported provider %q (supported: %s)", l.Provider, ProviderGemini)
	}
	if len(l.FastModels) == 0 && len(l.PowerfulModels) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
