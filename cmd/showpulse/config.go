package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/WessleyAI/showpulse/cmd/showpulse/bms"
	"github.com/WessleyAI/showpulse/cmd/showpulse/district"
	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
)

const envPrefix = "SHOWPULSE"

// sources are the vendor adapters selectable with --source.
var sources = map[string]func() run.Source{
	"bms":      bms.Source,
	"district": district.Source,
}

// Config is the resolved configuration shared by every command.
type Config struct {
	Source   string
	Shard    string
	Date     string
	Venues   string
	DataDir  string
	Timezone string
	Schedule string

	Store    string
	RedisURL string
	RedisTTL time.Duration

	NATSURL     string
	NATSSubject string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	ServePort     int
	CacheTTL      time.Duration
	CORSOrigin    string
	MetricsPort   int
	LogLevel      string
	LogFormat     string
	LogFile       bool
	ShutdownGrace time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", "bms")
	v.SetDefault("shard", "1")
	v.SetDefault("data_dir", "data")
	v.SetDefault("timezone", "Asia/Kolkata")
	v.SetDefault("store", "file")
	v.SetDefault("redis.ttl", "72h")
	v.SetDefault("nats.subject", run.DefaultSubject)
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.cache_ttl", "30s")
	v.SetDefault("serve.cors_origin", "*")
	v.SetDefault("serve.shutdown_grace", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// newViper reads .env, showpulse.yaml (or cfgFile) and SHOWPULSE_* variables.
// A missing config file is not an error.
func newViper(cfgFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("showpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) Config {
	return Config{
		Source:        strings.ToLower(v.GetString("source")),
		Shard:         v.GetString("shard"),
		Date:          v.GetString("date"),
		Venues:        v.GetString("venues"),
		DataDir:       v.GetString("data_dir"),
		Timezone:      v.GetString("timezone"),
		Schedule:      v.GetString("schedule"),
		Store:         strings.ToLower(v.GetString("store")),
		RedisURL:      v.GetString("redis.url"),
		RedisTTL:      v.GetDuration("redis.ttl"),
		NATSURL:       v.GetString("nats.url"),
		NATSSubject:   v.GetString("nats.subject"),
		Neo4jURL:      v.GetString("neo4j.url"),
		Neo4jUser:     v.GetString("neo4j.user"),
		Neo4jPass:     v.GetString("neo4j.pass"),
		ServePort:     v.GetInt("serve.port"),
		CacheTTL:      v.GetDuration("serve.cache_ttl"),
		CORSOrigin:    v.GetString("serve.cors_origin"),
		MetricsPort:   v.GetInt("metrics.port"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		LogFile:       v.GetBool("log.file"),
		ShutdownGrace: v.GetDuration("serve.shutdown_grace"),
	}
}

// VenuesPath is the venue list for the shard, venues<shard>.json under the
// data dir unless configured.
func (c Config) VenuesPath() string {
	if c.Venues != "" {
		return c.Venues
	}
	return filepath.Join(c.DataDir, "venues"+c.Shard+".json")
}

// Day resolves --date (YYYYMMDD) or today in the configured timezone.
func (c Config) Day(now time.Time) (show.Day, error) {
	loc := show.Location(c.Timezone)
	if c.Date == "" {
		return show.NewDay(now, loc), nil
	}
	day, err := show.ParseDay(c.Date, loc)
	if err != nil {
		return show.Day{}, fmt.Errorf("date %q: want YYYYMMDD: %w", c.Date, err)
	}
	return day, nil
}

func lookupSource(name string) (run.Source, error) {
	mk, ok := sources[name]
	if !ok {
		return run.Source{}, fmt.Errorf("unknown source %q (want bms or district)", name)
	}
	return mk(), nil
}

// settingsFor overlays every fetch key that is explicitly set onto the
// source defaults.
func settingsFor(v *viper.Viper, defaults run.Settings) run.Settings {
	s := defaults
	if v.IsSet("strategy") {
		s.Strategy = strings.ToLower(v.GetString("strategy"))
	}
	if v.IsSet("concurrency") {
		s.Concurrency = v.GetInt("concurrency")
	}
	if v.IsSet("api_timeout") {
		s.APITimeout = v.GetDuration("api_timeout")
	}
	if v.IsSet("hard_timeout") {
		s.HardTimeout = v.GetDuration("hard_timeout")
	}
	if v.IsSet("max_retry_rounds") {
		s.MaxRetryRounds = v.GetInt("max_retry_rounds")
	}
	if v.IsSet("jitter_min") {
		s.JitterMin = v.GetDuration("jitter_min")
	}
	if v.IsSet("jitter_max") {
		s.JitterMax = v.GetDuration("jitter_max")
	}
	if v.IsSet("cutoff_minutes") {
		s.CutoffMinutes = v.GetInt("cutoff_minutes")
	}
	if v.IsSet("rate_limit") {
		s.RateLimit = v.GetFloat64("rate_limit")
	}
	return s
}

func validateSettings(s run.Settings) error {
	switch s.Strategy {
	case run.StrategySequential, run.StrategyConcurrent:
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	if s.Strategy == run.StrategyConcurrent && s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if s.MaxRetryRounds < 0 {
		return fmt.Errorf("max_retry_rounds must not be negative, got %d", s.MaxRetryRounds)
	}
	return nil
}

// newLogger builds the process logger: JSON unless format is "text".
func newLogger(level, format string, out io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// logFile opens <data_dir>/<date>/logs/<source><shard>.log for appending.
func logFile(cfg Config, day show.Day) (*os.File, error) {
	dir := filepath.Join(cfg.DataDir, day.Code, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	return os.OpenFile(filepath.Join(dir, cfg.Source+cfg.Shard+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
