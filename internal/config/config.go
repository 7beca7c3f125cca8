package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port int
	Host string

	// Database
	DatabasePath string

	// Leaderboard cache; empty RedisURL disables it
	RedisURL       string
	LeaderboardTTL time.Duration

	// Paging
	PageLimit    int
	MaxPageLimit int

	// Logging
	LogLevel  string
	LogFormat string

	// Client
	APIURL string
}

var defaults = map[string]any{
	"port":            8080,
	"host":            "0.0.0.0",
	"database_path":   "threadfeed.db",
	"redis_url":       "",
	"leaderboard_ttl": 30 * time.Second,
	"page_limit":      50,
	"max_page_limit":  100,
	"log_level":       "info",
	"log_format":      "text",
	"api_url":         "http://localhost:8080",
}

// Load reads configuration from the environment (PORT, DATABASE_PATH, ...)
// and, when present, a threadfeed.yaml in the working directory or ./config.
func Load() *Config {
	cfg, _ := LoadFile("")
	return cfg
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations and tolerates a missing file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	var err error
	if path != "" {
		v.SetConfigFile(path)
		err = v.ReadInConfig()
	} else {
		v.SetConfigName("threadfeed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		var notFound viper.ConfigFileNotFoundError
		if readErr := v.ReadInConfig(); readErr != nil && !errors.As(readErr, &notFound) {
			err = readErr
		}
	}

	cfg := fromViper(v)
	return cfg, err
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:           v.GetInt("port"),
		Host:           v.GetString("host"),
		DatabasePath:   v.GetString("database_path"),
		RedisURL:       v.GetString("redis_url"),
		LeaderboardTTL: v.GetDuration("leaderboard_ttl"),
		PageLimit:      v.GetInt("page_limit"),
		MaxPageLimit:   v.GetInt("max_page_limit"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		APIURL:         v.GetString("api_url"),
	}

	if cfg.Port <= 0 {
		cfg.Port = defaults["port"].(int)
	}
	if cfg.LeaderboardTTL <= 0 {
		cfg.LeaderboardTTL = defaults["leaderboard_ttl"].(time.Duration)
	}
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = defaults["max_page_limit"].(int)
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > cfg.MaxPageLimit {
		cfg.PageLimit = min(defaults["page_limit"].(int), cfg.MaxPageLimit)
	}
	return cfg
}

// ClampPageLimit applies the configured default and maximum to a requested
// page size.
func (c *Config) ClampPageLimit(requested int) int {
	if requested <= 0 {
		return c.PageLimit
	}
	if requested > c.MaxPageLimit {
		return c.MaxPageLimit
	}
	return requested
}
