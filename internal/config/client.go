package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultClientFile = "config.json"

	TransportRelay = "relay"
	TransportP2P   = "p2p"
)

// Client is the vlcsync participant configuration.
type Client struct {
	Host           string        `mapstructure:"host"`
	Password       string        `mapstructure:"password"`
	Transport      string        `mapstructure:"transport"`
	Player         PlayerConfig  `mapstructure:"player"`
	DriftThreshold float64       `mapstructure:"drift_threshold"`
	P2P            P2PConfig     `mapstructure:"p2p"`
	LogLevel       string        `mapstructure:"log_level"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

type PlayerConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
}

type P2PConfig struct {
	ListenPort int           `mapstructure:"listen_port"`
	MdnsTag    string        `mapstructure:"mdns_tag"`
	Settle     time.Duration `mapstructure:"settle"`
}

// Ensure loads the participant config at path. When the file does not exist
// a template is written there and created is true; the caller is expected to
// stop so the operator can fill it in.
func Ensure(path string) (cfg *Client, created bool, err error) {
	if path == "" {
		path = DefaultClientFile
	}
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(path)
	setClientDefaults(v)

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, false, fmt.Errorf("write config template %s: %w", path, err)
		}
		created = true
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, created, fmt.Errorf("read config %s: %w", path, err)
	}
	v.SetEnvPrefix("VLCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Client{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, created, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, created, err
	}
	return cfg, created, nil
}

func (c *Client) validate() error {
	switch c.Transport {
	case TransportRelay, TransportP2P:
	default:
		return fmt.Errorf("config: unknown transport %q (want %s or %s)", c.Transport, TransportRelay, TransportP2P)
	}
	if c.Transport == TransportRelay && c.Host == "" {
		return errors.New("config: host is required for the relay transport")
	}
	return nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost:6380")
	v.SetDefault("password", "")
	v.SetDefault("transport", TransportRelay)
	v.SetDefault("player.address", "localhost:4212")
	v.SetDefault("player.password", "admin")
	v.SetDefault("drift_threshold", 1.0)
	v.SetDefault("p2p.listen_port", 0)
	v.SetDefault("p2p.mdns_tag", "vlcsync")
	v.SetDefault("p2p.settle", "3s")
	v.SetDefault("log_level", "info")
	v.SetDefault("retry_delay", "200ms")
}
