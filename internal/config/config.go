package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ICEServer is the config-file shape of one STUN/TURN server.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode           string   `mapstructure:"mode"`
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	StaticPath     string   `mapstructure:"static_path"`
	Secret         string   `mapstructure:"secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	RateBurst  int           `mapstructure:"rate_burst"`

	RingTimeout      time.Duration `mapstructure:"ring_timeout"`
	StrictPayloads   bool          `mapstructure:"strict_payloads"`
	MaxIdentifierLen int           `mapstructure:"max_identifier_len"`
	Backpressure     string        `mapstructure:"backpressure"`
	ICEServers       []ICEServer   `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "callrelay-dev-secret")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("rate_limit", 50)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("ring_timeout", "0s")
	v.SetDefault("strict_payloads", false)
	v.SetDefault("max_identifier_len", 64)
	v.SetDefault("backpressure", "kick")
}

// Load reads config/config.<CONFIG_ENV>.yaml (or CONFIG_FILE), applies
// CALLRELAY_* environment overrides and falls back to defaults when no file
// exists.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := os.Getenv("CONFIG_FILE")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("callrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Dur("ring_timeout", cfg.RingTimeout).
		Bool("strict_payloads", cfg.StrictPayloads).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod >= c.PongWait {
		errs = append(errs, fmt.Errorf("ping_period %s must be shorter than pong_wait %s", c.PingPeriod, c.PongWait))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.RingTimeout < 0 {
		errs = append(errs, errors.New("ring_timeout must not be negative"))
	}
	switch c.Backpressure {
	case "kick", "drop":
	default:
		errs = append(errs, fmt.Errorf("backpressure %q: want kick or drop", c.Backpressure))
	}
	return errors.Join(errs...)
}
