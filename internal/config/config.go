package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port        string        `yaml:"port"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	UserAgent   string        `yaml:"user_agent"`

	CatalogURL         string `yaml:"catalog_url"`
	NWSBaseURL         string `yaml:"nws_base_url"`
	OpenWeatherBaseURL string `yaml:"openweather_base_url"`
	// OpenWeatherAPIKey enables air-quality enrichment when set.
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`

	// SettleWindow is how long a changed location is held before it is fetched.
	SettleWindow time.Duration `yaml:"settle_window"`

	// Upstream rate limiting.
	UpstreamRPS   float64 `yaml:"upstream_rps"`
	UpstreamBurst int     `yaml:"upstream_burst"`

	// Navigation history retention.
	HistoryMax    int           `yaml:"history_max"`     // max number of entries (0 = unlimited)
	HistoryMaxAge time.Duration `yaml:"history_max_age"` // max age of entries (0 = unlimited)

	StatsInterval time.Duration `yaml:"stats_interval"`

	// InitialLatLng is the latLng query value present when the session starts.
	InitialLatLng string `yaml:"initial_lat_lng"`
}

// Load reads configuration from environment with sensible defaults, then
// applies the YAML file named by CONFIG_FILE, if any.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.UserAgent = getenvDefault("USER_AGENT", "forecast-viewer/1.0")
	cfg.CatalogURL = getenvDefault("CATALOG_URL", "https://raw.githubusercontent.com/vega/vega/main/docs/data/us-state-capitals.json")
	cfg.NWSBaseURL = getenvDefault("NWS_BASE_URL", "https://api.weather.gov")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "http://api.openweathermap.org")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.InitialLatLng = os.Getenv("INITIAL_LAT_LNG")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SettleWindow, err = getenvDuration("SETTLE_WINDOW", "300ms"); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxAge, err = getenvDuration("HISTORY_MAX_AGE", "24h"); err != nil {
		return nil, err
	}
	if cfg.StatsInterval, err = getenvDuration("STATS_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	cfg.HistoryMax = getenvInt("HISTORY_MAX", 50)
	cfg.UpstreamBurst = getenvInt("UPSTREAM_BURST", 5)
	cfg.UpstreamRPS = getenvFloat("UPSTREAM_RPS", 5)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// overlay replaces fields with the ones set in a YAML file.
func (c *AppConfig) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.SettleWindow < 0 {
		return fmt.Errorf("settle window must not be negative")
	}
	if c.UpstreamRPS <= 0 {
		return fmt.Errorf("upstream rps must be positive")
	}
	if c.UpstreamBurst <= 0 {
		return fmt.Errorf("upstream burst must be positive")
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
