// Package internal carries process-level plumbing: configuration loading and
// the optional debug listener. Nothing in here is chat logic.
package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the ambient tuning of the relay. Every knob has a default so the
// server runs with nothing but a port argument; the port itself comes from
// the command line and is merged in after parsing.
type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BusCapacity    int   `env:"BUS_CAPACITY,default=128" validate:"gt=0"`
	OutboundBuffer int   `env:"OUTBOUND_BUFFER,default=256" validate:"gt=0"`
	ReadLimitBytes int64 `env:"READ_LIMIT_BYTES,default=4096" validate:"gt=0"`
	MaxNameLength  int   `env:"MAX_NAME_LENGTH,default=32" validate:"gt=0"`

	PongWait         time.Duration `env:"PONG_WAIT,default=60s" validate:"gt=0"`
	PingInterval     time.Duration `env:"PING_INTERVAL,default=54s" validate:"gt=0"`
	WriteWait        time.Duration `env:"WRITE_WAIT,default=10s" validate:"gt=0"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	BannedTerms    []string `env:"BANNED_TERMS"`
	AllowedLangs   []string `env:"ALLOWED_LANGS"`
	MaskCharacter  string   `env:"MASK_CHARACTER,default=*"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=8" validate:"gte=0"`

	DebugAddr string `env:"DEBUG_ADDR"`

	// Set from the command line, never from the environment.
	Port int `env:"-"`
}

// LoadConfig reads the environment (a .env file counts, when present) and
// validates the result. The returned config still needs the port merged in.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.PingInterval >= cfg.PongWait {
		return Config{}, fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_WAIT (%s)",
			cfg.PingInterval, cfg.PongWait)
	}
	if _, err := cfg.MaskRune(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MaskRune returns the single character used to overwrite censored terms.
func (c Config) MaskRune() (rune, error) {
	r := []rune(c.MaskCharacter)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MASK_CHARACTER must be a single character, got %q",
			c.MaskCharacter,
		)
	}
	return r[0], nil
}
