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

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Secret    string          `mapstructure:"secret"`
	WS        WSConfig        `mapstructure:"ws"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	Timer     TimerConfig     `mapstructure:"timer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Store     StoreConfig     `mapstructure:"store"`
}

type WSConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	Backpressure string        `mapstructure:"backpressure"`
}

type RoomsConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	EmptyGrace    time.Duration `mapstructure:"empty_grace"`
	TeardownGrace time.Duration `mapstructure:"teardown_grace"`
}

type TimerConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration"`
	MaxDuration     time.Duration `mapstructure:"max_duration"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type StoreConfig struct {
	Type          string        `mapstructure:"type"`
	DSN           string        `mapstructure:"dsn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")

	v.SetDefault("ws.read_limit", 1<<20)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_timeout", "5s")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.backpressure", "kick")

	v.SetDefault("rooms.tick_interval", "1s")
	v.SetDefault("rooms.empty_grace", "30s")
	v.SetDefault("rooms.teardown_grace", "5s")

	v.SetDefault("timer.default_duration", "15m")
	v.SetDefault("timer.max_duration", "4h")

	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.interval", "10s")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.dsn", "file:interview.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.ttl", "24h")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// INTERVIEW_* environment variables win over both, e.g. INTERVIEW_STORE_TYPE.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("INTERVIEW")
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Type).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Rooms.TickInterval <= 0 {
		errs = append(errs, errors.New("rooms.tick_interval must be positive"))
	}
	if c.Rooms.EmptyGrace < 0 || c.Rooms.TeardownGrace < 0 {
		errs = append(errs, errors.New("room grace windows must not be negative"))
	}
	if c.Timer.DefaultDuration <= 0 || c.Timer.MaxDuration < c.Timer.DefaultDuration {
		errs = append(errs, errors.New("timer.default_duration must be positive and below timer.max_duration"))
	}
	if c.WS.SendBuffer <= 0 {
		errs = append(errs, errors.New("ws.send_buffer must be positive"))
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		errs = append(errs, errors.New("ws.ping_period must be shorter than ws.pong_wait"))
	}
	return errors.Join(errs...)
}
