// Package config loads the server's YAML configuration, grounded on
// the teacher's internal/config.LoadLoginServer (defaults-then-override
// pattern).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/matchmaker"
	"github.com/tankwar/server/internal/session"
)

// Server holds every tunable spec.md leaves as an Open Question
// default ("treat listed values as defaults") plus connection info.
type Server struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	MaxSessions int    `yaml:"max_sessions"`

	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`

	AssetDir string `yaml:"asset_dir"`
	DevMode  bool   `yaml:"dev_mode"`

	Database DatabaseConfig `yaml:"database"`

	LogLevel string `yaml:"log_level"`

	Session    SessionConfig    `yaml:"session"`
	Matchmaker MatchmakerConfig `yaml:"matchmaker"`
}

// DatabaseConfig holds the Postgres connection parameters (grounded on
// the teacher's DatabaseConfig).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string pgx expects.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// SessionConfig mirrors internal/session.Config, expressed in
// YAML-friendly duration strings.
type SessionConfig struct {
	PingInterval  string  `yaml:"ping_interval"`
	PingTimeout   string  `yaml:"ping_timeout"`
	ReadTimeout   string  `yaml:"read_timeout"`
	WriteTimeout  string  `yaml:"write_timeout"`
	SendQueueSize int     `yaml:"send_queue_size"`
	BucketMax     float64 `yaml:"bucket_max"`
	RefillPerSec  float64 `yaml:"refill_per_sec"`
}

// ToSessionConfig converts into internal/session.Config, falling back
// to session.Default* on unparsable or zero durations.
func (c SessionConfig) ToSessionConfig() session.Config {
	return session.Config{
		PingInterval:  parseDurationOr(c.PingInterval, session.DefaultPingInterval),
		PingTimeout:   parseDurationOr(c.PingTimeout, session.DefaultPingTimeout),
		ReadTimeout:   parseDurationOr(c.ReadTimeout, session.DefaultReadTimeout),
		WriteTimeout:  parseDurationOr(c.WriteTimeout, session.DefaultWriteTimeout),
		SendQueueSize: c.SendQueueSize,
		BucketMax:     c.BucketMax,
		RefillPerSec:  c.RefillPerSec,
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// MatchmakerConfig mirrors match.Default* / matchmaker tunables.
type MatchmakerConfig struct {
	InitialClock string `yaml:"initial_clock"`
	Increment    string `yaml:"increment"`
	MaxQueueSize int    `yaml:"max_queue_size"`
	TurnFuel     int    `yaml:"turn_fuel"`

	RankedMaxBucketsDiff  int    `yaml:"ranked_max_buckets_diff"`
	RankedBucketIncrement string `yaml:"ranked_bucket_increment"`
}

// InitialClockOr returns the configured per-player starting clock,
// falling back to match.DefaultInitialClock.
func (c MatchmakerConfig) InitialClockOr() time.Duration {
	return parseDurationOr(c.InitialClock, match.DefaultInitialClock)
}

// IncrementOr returns the configured per-turn clock increment, falling
// back to match.DefaultIncrement.
func (c MatchmakerConfig) IncrementOr() time.Duration {
	return parseDurationOr(c.Increment, match.DefaultIncrement)
}

// MaxQueueSizeOr returns the configured per-player command queue
// depth, falling back to match.DefaultMaxQueueSize.
func (c MatchmakerConfig) MaxQueueSizeOr() int {
	if c.MaxQueueSize > 0 {
		return c.MaxQueueSize
	}
	return match.DefaultMaxQueueSize
}

// TurnFuelOr returns the configured per-turn fuel allowance, falling
// back to match.DefaultTurnFuel.
func (c MatchmakerConfig) TurnFuelOr() int {
	if c.TurnFuel > 0 {
		return c.TurnFuel
	}
	return match.DefaultTurnFuel
}

// RankedBucketIncrementOr returns the configured ranked relaxation
// interval, falling back to matchmaker.RankedBucketIncrement.
func (c MatchmakerConfig) RankedBucketIncrementOr() time.Duration {
	return parseDurationOr(c.RankedBucketIncrement, matchmaker.RankedBucketIncrement)
}

// Default returns a Server config with the spec's listed defaults.
func Default() Server {
	return Server{
		BindAddress: "0.0.0.0",
		Port:        7777,
		MaxSessions: 2000,
		TLSCertFile: "server.crt",
		TLSKeyFile:  "server.key",
		AssetDir:    "",
		DevMode:     false,
		LogLevel:    "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "tankwar",
			Password: "tankwar",
			DBName:   "tankwar",
			SSLMode:  "disable",
		},
		Session: SessionConfig{
			SendQueueSize: session.DefaultSendQueueSize,
			BucketMax:     session.DefaultBucketMax,
			RefillPerSec:  session.DefaultRefillPerSec,
		},
		Matchmaker: MatchmakerConfig{
			MaxQueueSize:         match.DefaultMaxQueueSize,
			TurnFuel:             match.DefaultTurnFuel,
			RankedMaxBucketsDiff: matchmaker.RankedMaxBucketsDiff,
		},
	}
}

// Load reads path as YAML over Default()'s values. A missing file is
// not an error: it yields the defaults, matching the teacher's
// LoadLoginServer.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
