package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config містить усі налаштування процесу, зчитані з оточення (.env + змінні середовища).
type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	DatabaseDSN   string `mapstructure:"database_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	JWTSecret string `mapstructure:"jwt_secret"`

	VideoAPIURL      string `mapstructure:"video_api_url"`
	VideoAPIKey      string `mapstructure:"video_api_key"`
	VideoDomain      string `mapstructure:"video_domain"`
	VideoTokenSecret string `mapstructure:"video_token_secret"`

	Session `mapstructure:",squash"`
}

// Session groups the timing knobs of the matchmaking engine.
type Session struct {
	Duration           time.Duration `mapstructure:"session_duration"`
	Grace              time.Duration `mapstructure:"session_grace"`
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat_timeout"`
	HeartbeatTolerance time.Duration `mapstructure:"heartbeat_tolerance"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	MatchInterval      time.Duration `mapstructure:"match_interval"`
	ProvisionTimeout   time.Duration `mapstructure:"provision_timeout"`
	ProvisionAttempts  int           `mapstructure:"provision_attempts"`
	WaitSampleSize     int           `mapstructure:"wait_sample_size"`
}

// TokenTTL is the lifetime of a room join credential.
func (s Session) TokenTTL() time.Duration {
	return s.Duration + s.Grace
}

// DefaultSession returns the timings used when nothing is configured.
func DefaultSession() Session {
	return Session{
		Duration:           3 * time.Minute,
		Grace:              15 * time.Second,
		HeartbeatTimeout:   30 * time.Second,
		HeartbeatTolerance: 30 * time.Second,
		SweepInterval:      5 * time.Second,
		MatchInterval:      500 * time.Millisecond,
		ProvisionTimeout:   10 * time.Second,
		ProvisionAttempts:  3,
		WaitSampleSize:     50,
	}
}

// Load зчитує .env (якщо є), потім змінні середовища поверх значень за замовчуванням.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Str("module", "config").Msg("no .env file, using process environment")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultSession()
	defaults := map[string]any{
		"mode":                "release",
		"port":                8080,
		"log_level":           "info",
		"database_dsn":        "host=localhost user=user password=password dbname=vibecall port=5432 sslmode=disable",
		"redis_addr":          "localhost:6379",
		"redis_password":      "",
		"redis_db":            0,
		"jwt_secret":          "",
		"video_api_url":       "",
		"video_api_key":       "",
		"video_domain":        "https://video.local",
		"video_token_secret":  "",
		"session_duration":    d.Duration,
		"session_grace":       d.Grace,
		"heartbeat_timeout":   d.HeartbeatTimeout,
		"heartbeat_tolerance": d.HeartbeatTolerance,
		"sweep_interval":      d.SweepInterval,
		"match_interval":      d.MatchInterval,
		"provision_timeout":   d.ProvisionTimeout,
		"provision_attempts":  d.ProvisionAttempts,
		"wait_sample_size":    d.WaitSampleSize,
	}
	for key, val := range defaults {
		// AutomaticEnv only resolves keys viper already knows about.
		v.SetDefault(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Dur("session_duration", cfg.Session.Duration).Msg("config loaded")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.VideoTokenSecret == "" {
		c.VideoTokenSecret = c.JWTSecret
	}
	if c.Session.Duration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive")
	}
	if c.Session.ProvisionAttempts < 1 {
		c.Session.ProvisionAttempts = 1
	}
	if c.Session.WaitSampleSize < 1 {
		c.Session.WaitSampleSize = 1
	}
	return nil
}
