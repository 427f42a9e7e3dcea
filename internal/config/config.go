package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned by Validate when no account credentials are configured.
var ErrMissingCredentials = errors.New("account credentials are not configured")

// Supported LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Supported store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvPrefix is the prefix for all environment overrides, e.g. XPILOT_ACCOUNT_USERNAME.
const EnvPrefix = "XPILOT"

// Config holds all application configuration
type Config struct {
	Version    int              `mapstructure:"version" toml:"version"`
	Account    AccountConfig    `mapstructure:"account" toml:"account"`
	Browser    BrowserConfig    `mapstructure:"browser" toml:"browser"`
	Generation GenerationConfig `mapstructure:"generation" toml:"generation"`
	Posting    PostingConfig    `mapstructure:"posting" toml:"posting"`
	Diversity  DiversityConfig  `mapstructure:"diversity" toml:"diversity"`
	Engagement EngagementConfig `mapstructure:"engagement" toml:"engagement"`
	Store      StoreConfig      `mapstructure:"store" toml:"store"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" toml:"schedule"`
	Logger     LoggerConfig     `mapstructure:"logger" toml:"logger"`
	Email      EmailConfig      `mapstructure:"email" toml:"email"`
}

// AccountConfig identifies the X account driven by this process.
// Credentials normally come from the environment, not the config file.
type AccountConfig struct {
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"-"`
	// Handle answers the "enter your username" challenge when Username is an email or phone.
	Handle string `mapstructure:"handle" toml:"handle"`
}

// ID is the key persisted sessions are stored under.
func (a AccountConfig) ID() string {
	return strings.ToLower(strings.TrimSpace(a.Username))
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" toml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" toml:"user_agent"`
	ProxyURL          string        `mapstructure:"proxy_url" toml:"proxy_url"`
	ExecPath          string        `mapstructure:"exec_path" toml:"exec_path"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" toml:"screenshot_dir"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" toml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" toml:"selector_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout" toml:"login_timeout"`
}

type GenerationConfig struct {
	Provider    string        `mapstructure:"provider" toml:"provider"`
	APIKey      string        `mapstructure:"api_key" toml:"-"`
	Model       string        `mapstructure:"model" toml:"model"`
	Endpoint    string        `mapstructure:"endpoint" toml:"endpoint"`
	Temperature float64       `mapstructure:"temperature" toml:"temperature"`
	TopP        float64       `mapstructure:"top_p" toml:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens" toml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" toml:"timeout"`
	Persona     string        `mapstructure:"persona" toml:"persona"`
}

type PostingConfig struct {
	Cycles      int           `mapstructure:"cycles" toml:"cycles"`
	MaxRetries  int           `mapstructure:"max_retries" toml:"max_retries"`
	MaxTrends   int           `mapstructure:"max_trends" toml:"max_trends"`
	SampleSize  int           `mapstructure:"sample_size" toml:"sample_size"`
	CycleGapMin time.Duration `mapstructure:"cycle_gap_min" toml:"cycle_gap_min"`
	CycleGapMax time.Duration `mapstructure:"cycle_gap_max" toml:"cycle_gap_max"`
	FeedScrolls int           `mapstructure:"feed_scrolls" toml:"feed_scrolls"`
}

type DiversityConfig struct {
	Threshold   float64       `mapstructure:"threshold" toml:"threshold"`
	Lookback    time.Duration `mapstructure:"lookback" toml:"lookback"`
	HistorySize int           `mapstructure:"history_size" toml:"history_size"`
}

type EngagementConfig struct {
	LikePercentage     int     `mapstructure:"like_percentage" toml:"like_percentage"`
	LikeProbability    float64 `mapstructure:"like_probability" toml:"like_probability"`
	CommentEvery       int     `mapstructure:"comment_every" toml:"comment_every"`
	NotificationsEvery int     `mapstructure:"notifications_every" toml:"notifications_every"`
	NotificationLimit  int     `mapstructure:"notification_limit" toml:"notification_limit"`
	ProgressEvery      int     `mapstructure:"progress_every" toml:"progress_every"`
	ReplyNotifications bool    `mapstructure:"reply_notifications" toml:"reply_notifications"`
	ActionsPerMinute   float64 `mapstructure:"actions_per_minute" toml:"actions_per_minute"`
	LogFile            string  `mapstructure:"log_file" toml:"log_file"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" toml:"driver"`
	Path   string `mapstructure:"path" toml:"path"`
	DSN    string `mapstructure:"dsn" toml:"-"`
}

type ScheduleConfig struct {
	Cron     string `mapstructure:"cron" toml:"cron"`
	Timezone string `mapstructure:"timezone" toml:"timezone"`
	// ReportAt is the daily "HH:MM" time the run report is emailed; empty disables it.
	ReportAt string `mapstructure:"report_at" toml:"report_at"`
	// JobTimeout bounds one scheduled cycle or report.
	JobTimeout time.Duration `mapstructure:"job_timeout" toml:"job_timeout"`
}

// LoggerConfig drives internal/observability.
type LoggerConfig struct {
	Level       string `mapstructure:"level" toml:"level"`
	Format      string `mapstructure:"format" toml:"format"`
	ServiceName string `mapstructure:"service_name" toml:"service_name"`
	LogFile     string `mapstructure:"log_file" toml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" toml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" toml:"max_age"`
	Compress    bool   `mapstructure:"compress" toml:"compress"`
	AddSource   bool   `mapstructure:"add_source" toml:"add_source"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" toml:"enabled"`
	SMTPHost string `mapstructure:"smtp_host" toml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" toml:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user" toml:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass" toml:"-"`
	FromAddr string `mapstructure:"from_address" toml:"from_address"`
	ToAddr   string `mapstructure:"to_address" toml:"to_address"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", 1)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.selector_timeout", "5s")
	v.SetDefault("browser.login_timeout", "30s")

	v.SetDefault("generation.provider", ProviderOpenAI)
	v.SetDefault("generation.temperature", 0.85)
	v.SetDefault("generation.top_p", 0.9)
	v.SetDefault("generation.max_tokens", 150)
	v.SetDefault("generation.timeout", "15s")

	v.SetDefault("posting.cycles", 1)
	v.SetDefault("posting.max_retries", 3)
	v.SetDefault("posting.max_trends", 15)
	v.SetDefault("posting.sample_size", 2)
	v.SetDefault("posting.cycle_gap_min", "10m")
	v.SetDefault("posting.cycle_gap_max", "25m")
	v.SetDefault("posting.feed_scrolls", 3)

	v.SetDefault("diversity.threshold", 0.7)
	v.SetDefault("diversity.lookback", "24h")
	v.SetDefault("diversity.history_size", 20)

	v.SetDefault("engagement.like_percentage", 30)
	v.SetDefault("engagement.like_probability", 0.35)
	v.SetDefault("engagement.comment_every", 20)
	v.SetDefault("engagement.notifications_every", 50)
	v.SetDefault("engagement.notification_limit", 3)
	v.SetDefault("engagement.progress_every", 5)
	v.SetDefault("engagement.reply_notifications", true)
	v.SetDefault("engagement.actions_per_minute", 6)

	v.SetDefault("store.driver", DriverSQLite)

	v.SetDefault("schedule.cron", "0 */3 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.report_at", "18:00")
	v.SetDefault("schedule.job_timeout", "30m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "xpilot")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("email.smtp_port", 587)
}

// BindEnv wires the XPILOT_* environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about; these have no defaults.
	for _, key := range []string{
		"account.username", "account.password", "account.handle",
		"generation.api_key", "generation.model", "generation.endpoint",
		"browser.proxy_url", "browser.exec_path", "browser.user_agent", "browser.screenshot_dir",
		"store.path", "store.dsn",
		"engagement.log_file", "logger.log_file",
		"email.smtp_host", "email.smtp_user", "email.smtp_pass", "email.from_address", "email.to_address",
	} {
		_ = v.BindEnv(key)
	}
}

// Default returns a Config with sensible defaults
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// FromViper unmarshals v into a Config and fills in path defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads config from path (or the default config path when empty) and the environment.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

func (c *Config) fillPaths() error {
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.Store.Path = filepath.Join(dir, "xpilot.db")
	}
	if c.Browser.ScreenshotDir == "" || c.Engagement.LogFile == "" {
		cache, err := CacheDir()
		if err != nil {
			return err
		}
		if c.Browser.ScreenshotDir == "" {
			c.Browser.ScreenshotDir = filepath.Join(cache, "screenshots")
		}
		if c.Engagement.LogFile == "" {
			c.Engagement.LogFile = filepath.Join(cache, "engagement.csv")
		}
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Account.Username == "" || c.Account.Password == "" {
		return ErrMissingCredentials
	}
	if c.Posting.MaxRetries <= 0 {
		return fmt.Errorf("posting.max_retries must be a positive integer")
	}
	if c.Posting.Cycles < 0 {
		return fmt.Errorf("posting.cycles must not be negative")
	}
	if c.Engagement.LikePercentage < 0 || c.Engagement.LikePercentage > 100 {
		return fmt.Errorf("engagement.like_percentage must be between 0 and 100")
	}
	if c.Diversity.Threshold <= 0 || c.Diversity.Threshold > 1 {
		return fmt.Errorf("diversity.threshold must be in (0, 1]")
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.Generation.Provider)
	}
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xpilot"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// On macOS this is ~/Library/Caches/xpilot/
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "xpilot"), nil
}

// Save writes config to path. Secrets are never written.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
