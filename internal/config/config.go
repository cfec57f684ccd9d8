package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
)

const (
	// AppName is shown in the banner and sent nowhere else.
	AppName = "OpenSubtitles Downloader"
	// AppVersion is the application version.
	AppVersion = "1.0"

	// DefaultAPIURL is the OpenSubtitles XML-RPC endpoint.
	DefaultAPIURL = "https://api.opensubtitles.org/xml-rpc"

	envPrefix = "OPENSUBTITLES"
)

type Config struct {
	APIURL                string `mapstructure:"api_url"`
	Username              string `mapstructure:"username"`
	Password              string `mapstructure:"password"`
	UserAgent             string `mapstructure:"user_agent"`
	LanguageList          string `mapstructure:"languages"` // comma separated sublanguage ids, e.g. "eng,fre"
	TargetEncoding        string `mapstructure:"target_encoding"`
	Locale                string `mapstructure:"locale"`
	SubtitlesPath         string `mapstructure:"subtitles_path"`
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"` // Go duration string like "30s", "1m", etc.
	LogLevel              string `mapstructure:"log_level"`
	SentryDSN             string `mapstructure:"sentry_dsn"`
	RateLimit             struct {
		Requests int    `mapstructure:"requests"`
		Interval string `mapstructure:"interval"`
	} `mapstructure:"rate_limit"`
	Download struct {
		MaxRetries int `mapstructure:"max_retries"`
	} `mapstructure:"download"`
	Cache struct {
		Provider      string `mapstructure:"provider"` // bolt, badger, memory or redis
		Path          string `mapstructure:"path"`
		Size          int    `mapstructure:"size"`
		TTL           string `mapstructure:"ttl"`
		RedisAddress  string `mapstructure:"redis_address"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
	} `mapstructure:"cache"`
	Metrics struct {
		Textfile string `mapstructure:"textfile"` // node-exporter textfile output, empty disables
	} `mapstructure:"metrics"`
}

// defaults registers every key so that AutomaticEnv values are seen by Unmarshal.
var defaults = map[string]interface{}{
	"api_url":                 DefaultAPIURL,
	"username":                "",
	"password":                "",
	"user_agent":              "",
	"languages":               "",
	"target_encoding":         "UTF-8",
	"locale":                  "en",
	"subtitles_path":          "subtitles",
	"proxy_connection_string": "",
	"client_timeout":          "30s",
	"log_level":               "info",
	"sentry_dsn":              "",
	"rate_limit.requests":     40,
	"rate_limit.interval":     "10s",
	"download.max_retries":    0,
	"cache.provider":          "bolt",
	"cache.path":              ".cache/opensubtitles.db",
	"cache.size":              500,
	"cache.ttl":               "1h",
	"cache.redis_address":     "localhost:6379",
	"cache.redis_password":    "",
	"cache.redis_db":          0,
	"metrics.textfile":        "",
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and the process environment (OPENSUBTITLES_*).
// configFile may be empty, in which case config.yaml is searched in . and ./config.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Configuration("load .env", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variable support
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperrors.Configuration("read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Configuration("decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields every run depends on.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIURL) == "" {
		missing = append(missing, "api_url")
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		missing = append(missing, "user_agent")
	}
	if len(c.Languages()) == 0 {
		missing = append(missing, "languages")
	}
	if strings.TrimSpace(c.TargetEncoding) == "" {
		missing = append(missing, "target_encoding")
	}
	if len(missing) > 0 {
		return apperrors.Configuration("validate config",
			fmt.Errorf("missing required settings: %s (set %s_<NAME> environment variables)", strings.Join(missing, ", "), envPrefix))
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.Configuration("validate config", fmt.Errorf("api_url %q is not an absolute http(s) URL", c.APIURL))
	}

	for key, value := range map[string]string{
		"client_timeout":      c.ClientTimeout,
		"cache.ttl":           c.Cache.TTL,
		"rate_limit.interval": c.RateLimit.Interval,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return apperrors.Configuration("validate config", fmt.Errorf("%s: %w", key, err))
		}
	}

	if c.Download.MaxRetries < 0 {
		return apperrors.Configuration("validate config", fmt.Errorf("download.max_retries must not be negative"))
	}

	return nil
}

// Languages returns the configured sublanguage ids, trimmed, empty entries dropped.
func (c *Config) Languages() []string {
	var langs []string
	for _, part := range strings.Split(c.LanguageList, ",") {
		if part = strings.TrimSpace(part); part != "" {
			langs = append(langs, part)
		}
	}
	return langs
}

// ClientTimeoutDuration returns the HTTP client timeout, 30s when unset.
func (c *Config) ClientTimeoutDuration() time.Duration {
	return parseDurationOr(c.ClientTimeout, 30*time.Second)
}

// CacheTTL returns the search cache expiry, one hour when unset.
func (c *Config) CacheTTL() time.Duration {
	return parseDurationOr(c.Cache.TTL, time.Hour)
}

// RateLimitInterval returns the window for RateLimit.Requests, 10s when unset.
func (c *Config) RateLimitInterval() time.Duration {
	return parseDurationOr(c.RateLimit.Interval, 10*time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
