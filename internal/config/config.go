// Package config loads settings for the relay server and the vlcsync
// participant.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the relay server configuration.
type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	PublishLimit  int           `mapstructure:"publish_limit"`
	PublishWindow time.Duration `mapstructure:"publish_window"`
	LogLevel      string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setRelayDefaults(v)
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Bool("auth", cfg.Password != "").
		Msg("relay config")
	return &cfg, nil
}

func setRelayDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 6380)
	v.SetDefault("password", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("publish_limit", 50)
	v.SetDefault("publish_window", "1s")
	v.SetDefault("log_level", "info")
}
