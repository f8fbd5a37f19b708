// Package config loads bot configuration from an optional YAML file and
// environment variables. Non-secret tuning lives in YAML; API keys and
// tokens come exclusively from the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSessionTimeout = 2 * time.Minute
	defaultRedisAddr      = "localhost:6379"
	defaultDashboardAddr  = ":8080"
	defaultJournalDir     = "./wal/analyses"
)

var defaultPriceSources = []string{"coingecko", "binance", "bybit", "hyperliquid"}

// Dashboard holds the web dashboard settings.
type Dashboard struct {
	Enabled     bool
	Addr        string
	Domains     []string
	TLSCacheDir string
}

// Config is the resolved runtime configuration.
type Config struct {
	TelegramToken   string
	OpenAIAPIKey    string
	OpenAIModel     string
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	PineconeHost    string
	PineconeAPIKey  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PriceSources is the price resolver's priority order.
	PriceSources []string

	SessionTimeout time.Duration
	JournalDir     string
	Dashboard      Dashboard
}

type configTmp struct {
	OpenAIModel       string   `yaml:"openai_model,omitempty"`
	CoinGeckoURL      string   `yaml:"coingecko_url,omitempty"`
	RedisAddr         string   `yaml:"redis_addr,omitempty"`
	RedisDB           int      `yaml:"redis_db,omitempty"`
	PriceSources      []string `yaml:"price_sources,omitempty"`
	SessionTimeoutStr string   `yaml:"session_timeout,omitempty"`
	JournalDir        string   `yaml:"journal_dir,omitempty"`
	Dashboard         struct {
		Enabled     bool     `yaml:"enabled,omitempty"`
		Addr        string   `yaml:"addr,omitempty"`
		Domains     []string `yaml:"domains,omitempty"`
		TLSCacheDir string   `yaml:"tls_cache_dir,omitempty"`
	} `yaml:"dashboard,omitempty"`
}

// Get parses flags, reads the optional YAML config, applies environment
// secrets, and validates the result.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()

	conf := Config{
		RedisAddr:      defaultRedisAddr,
		PriceSources:   defaultPriceSources,
		SessionTimeout: defaultSessionTimeout,
		JournalDir:     defaultJournalDir,
		Dashboard:      Dashboard{Addr: defaultDashboardAddr},
	}

	if *path != "" {
		if err := applyYaml(*path, &conf); err != nil {
			return Config{}, err
		}
	}

	conf.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	conf.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	conf.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
	conf.PineconeHost = os.Getenv("PINECONE_HOST")
	conf.PineconeAPIKey = os.Getenv("PINECONE_API_KEY")
	conf.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if err := conf.validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func applyYaml(path string, conf *Config) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}

	if tmp.OpenAIModel != "" {
		conf.OpenAIModel = tmp.OpenAIModel
	}
	if tmp.CoinGeckoURL != "" {
		conf.CoinGeckoURL = tmp.CoinGeckoURL
	}
	if tmp.RedisAddr != "" {
		conf.RedisAddr = tmp.RedisAddr
	}
	if tmp.RedisDB != 0 {
		conf.RedisDB = tmp.RedisDB
	}
	if len(tmp.PriceSources) > 0 {
		conf.PriceSources = tmp.PriceSources
	}
	if tmp.SessionTimeoutStr != "" {
		d, err := time.ParseDuration(tmp.SessionTimeoutStr)
		if err != nil {
			return fmt.Errorf("incorrect 'session_timeout' param in yaml config: %w", err)
		}
		conf.SessionTimeout = d
	}
	if tmp.JournalDir != "" {
		conf.JournalDir = tmp.JournalDir
	}
	if tmp.Dashboard.Enabled {
		conf.Dashboard.Enabled = true
	}
	if tmp.Dashboard.Addr != "" {
		conf.Dashboard.Addr = tmp.Dashboard.Addr
	}
	if len(tmp.Dashboard.Domains) > 0 {
		conf.Dashboard.Domains = tmp.Dashboard.Domains
	}
	if tmp.Dashboard.TLSCacheDir != "" {
		conf.Dashboard.TLSCacheDir = tmp.Dashboard.TLSCacheDir
	}
	return nil
}

func (c Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable must be set")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable must be set")
	}
	if c.PineconeHost == "" || c.PineconeAPIKey == "" {
		return fmt.Errorf("PINECONE_HOST and PINECONE_API_KEY environment variables must be set")
	}

	known := map[string]struct{}{"coingecko": {}, "binance": {}, "bybit": {}, "hyperliquid": {}}
	for _, src := range c.PriceSources {
		if _, ok := known[strings.ToLower(src)]; !ok {
			return fmt.Errorf("unknown price source %q in config", src)
		}
	}
	if len(c.PriceSources) == 0 {
		return fmt.Errorf("at least one price source must be configured")
	}
	return nil
}
