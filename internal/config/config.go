package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Scoring struct {
		BasePool   int     `yaml:"base_pool"`
		DecayAlpha float64 `yaml:"decay_alpha"`
		JoinBonus  int     `yaml:"join_bonus"`
	} `yaml:"scoring"`
	Reveal struct {
		SelfScore bool `yaml:"self_score"`
	} `yaml:"reveal"`
	Replay struct {
		RevealDelay         string `yaml:"reveal_delay"`
		FallbackTimeLimitMs int64  `yaml:"fallback_time_limit_ms"`
	} `yaml:"replay"`
}

// Load reads YAML config from path. A missing file is not an error: the
// service falls back to in-memory stores and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
