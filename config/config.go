package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/BurntSushi/toml"
)

// Format names the feed dialect a source is expected to be in. "auto"
// lets detection decide.
type Format = string

var (
	Auto = Format("auto")
	RSS  = Format("rss")
	Atom = Format("atom")
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "FeedFetcher-Google"

const baseCfgPath = "feedfetch/config.toml"

type Config struct {
	CacheDir    string            `toml:"cache_dir"`    // empty disables caching entirely
	CacheExpire string            `toml:"cache_expire"` // duration ("24h") or phrase ("1 day")
	UserAgent   string            `toml:"user_agent"`
	InsecureTLS bool              `toml:"insecure_tls"` // disables TLS verification, off by default
	Feeds       []FeedConfig      `toml:"feeds"`
	Filters     map[string]Filter `toml:"filters"` // named filters referenced by feeds
}

type FeedConfig struct {
	URL         string   `toml:"url"`
	Format      Format   `toml:"format"` // "auto", "rss" or "atom"
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	FilterNames []string `toml:"filters"` // names of filters to apply (pipeline)
	Enabled     *bool    `toml:"enabled"` // defaults to true if not set
}

// Filter defines rules for dropping normalized feed items.
type Filter struct {
	MinLength       int      `toml:"min_length"`       // minimum character count of title+description (0 = no limit)
	MinTitleWords   int      `toml:"min_title_words"`  // minimum word count in the title (0 = no limit)
	ExcludePatterns []string `toml:"exclude_patterns"` // regex patterns to exclude
	RequireURL      bool     `toml:"require_url"`      // drop items without a canonical url
	MaxAge          string   `toml:"max_age"`          // drop items older than this phrase/duration
}

// IsEnabled returns true if the feed is enabled (defaults to true if not
// explicitly set).
func (f FeedConfig) IsEnabled() bool {
	if f.Enabled == nil {
		return true
	}
	return *f.Enabled
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

func Default() Config {
	return Config{
		CacheDir:    "", // caching off until a directory is configured
		CacheExpire: "1 day",
		UserAgent:   DefaultUserAgent,
		Feeds:       []FeedConfig{},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}
