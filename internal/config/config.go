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
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		// Leaderboards change on every submission, quiz metadata rarely.
		LeaderboardTTL  string `yaml:"leaderboard_ttl"`
		QuizTTL         string `yaml:"quiz_ttl"`
		ParticipantsTTL string `yaml:"participants_ttl"`
		ActiveListTTL   string `yaml:"active_list_ttl"`
	} `yaml:"cache"`
	Generation struct {
		Endpoint           string `yaml:"endpoint"`
		APIKey             string `yaml:"api_key"`
		Model              string `yaml:"model"`
		BaseTimeout        string `yaml:"base_timeout"`
		PerQuestionTimeout string `yaml:"per_question_timeout"`
		MaxTimeout         string `yaml:"max_timeout"`
		MaxAttempts        int    `yaml:"max_attempts"`
		BackoffBase        string `yaml:"backoff_base"`
		BackoffMax         string `yaml:"backoff_max"`
	} `yaml:"generation"`
	Perf struct {
		SlowThreshold string `yaml:"slow_threshold"`
	} `yaml:"perf"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
