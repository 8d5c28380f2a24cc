package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

type config struct {
	ListenAddrs   []string `toml:"listen_addrs"`
	UpstreamURL   string   `toml:"upstream_url"`
	HighWaterMark int      `toml:"high_water_mark"`
	Workers       int      `toml:"workers"`
	MetricsAddr   string   `toml:"metrics_addr"`

	LogLevel         string        `toml:"log_level"`
	LogDevelopment   bool          `toml:"log_development"`
	OverloadLogEvery time.Duration `toml:"overload_log_every"`
	ShutdownTimeout  time.Duration `toml:"shutdown_timeout"`

	Rate  rateConfig  `toml:"rate"`
	Stats statsConfig `toml:"stats"`
}

type rateConfig struct {
	Enabled    bool          `toml:"enabled"`
	RPS        float64       `toml:"rps"`
	Burst      int           `toml:"burst"`
	KeyHeader  string        `toml:"key_header"`
	TrustXFF   bool          `toml:"trust_xff"`
	RetryAfter time.Duration `toml:"retry_after"`
	AddHeaders bool          `toml:"add_headers"`
}

type statsConfig struct {
	Enabled       bool          `toml:"enabled"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	Prefix        string        `toml:"prefix"`
	TTL           time.Duration `toml:"ttl"`
	Bucket        string        `toml:"bucket"`
	TrackSources  bool          `toml:"track_sources"`
}

func defaults() config {
	return config{
		ListenAddrs:      []string{":8080"},
		HighWaterMark:    1024,
		Workers:          100,
		MetricsAddr:      ":9090",
		LogLevel:         "info",
		OverloadLogEvery: time.Second,
		ShutdownTimeout:  10 * time.Second,
		Rate: rateConfig{
			RPS:        10,
			Burst:      20,
			RetryAfter: time.Second,
		},
		Stats: statsConfig{
			Prefix:       "reqstream:stats",
			TTL:          24 * time.Hour,
			Bucket:       "minute",
			TrackSources: true,
		},
	}
}

// loadConfig aplica, nesta ordem: defaults, arquivo TOML (--config ou REQSTREAM_CONFIG),
// variáveis de ambiente e flags. Quem vem depois ganha.
func loadConfig(args []string) (config, error) {
	cfg := defaults()

	fs := pflag.NewFlagSet("gateway", pflag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("REQSTREAM_CONFIG"), "path to a TOML config file")
	listen := fs.StringSlice("listen", nil, "listen addresses, one request source per address")
	upstream := fs.String("upstream", "", "upstream URL requests are proxied to")
	hwm := fs.Int("high-water-mark", 0, "max buffered requests before shedding with 503")
	workers := fs.Int("workers", 0, "max requests proxied concurrently")
	metricsAddr := fs.String("metrics-addr", "", "address for /metrics, /events and /healthz (empty disables)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	}

	applyEnv(&cfg)

	if fs.Changed("listen") {
		cfg.ListenAddrs = *listen
	}
	if fs.Changed("upstream") {
		cfg.UpstreamURL = *upstream
	}
	if fs.Changed("high-water-mark") {
		cfg.HighWaterMark = *hwm
	}
	if fs.Changed("workers") {
		cfg.Workers = *workers
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = *metricsAddr
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *config) {
	if v := getenvDefault("LISTEN_ADDRS", ""); v != "" {
		cfg.ListenAddrs = splitList(v)
	}
	cfg.UpstreamURL = getenvDefault("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.HighWaterMark = getenvIntDefault("HIGH_WATER_MARK", cfg.HighWaterMark)
	cfg.Workers = getenvIntDefault("WORKERS", cfg.Workers)
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDevelopment = getenvBoolDefault("LOG_DEVELOPMENT", cfg.LogDevelopment)
	cfg.OverloadLogEvery = getenvDurationDefault("OVERLOAD_LOG_EVERY", cfg.OverloadLogEvery)
	cfg.ShutdownTimeout = getenvDurationDefault("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.RPS = getenvFloatDefault("RATE_RPS", cfg.Rate.RPS)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02) e o burst padrão, as primeiras ~20 passam e parece
	// que o limiter não funciona; sem RATE_BURST explícito, usamos 1 nesse caso.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.Rate.Burst = burst
	} else if getenvIsSet("RATE_RPS") && cfg.Rate.RPS > 0 && cfg.Rate.RPS < 1 {
		cfg.Rate.Burst = 1
	}
	cfg.Rate.KeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.Rate.KeyHeader)
	cfg.Rate.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.Rate.TrustXFF)
	cfg.Rate.RetryAfter = getenvDurationDefault("RETRY_AFTER", cfg.Rate.RetryAfter)
	cfg.Rate.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.Rate.AddHeaders)

	cfg.Stats.Enabled = getenvBoolDefault("STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.RedisAddr = getenvDefault("STATS_REDIS_ADDR", cfg.Stats.RedisAddr)
	cfg.Stats.RedisPassword = getenvDefault("STATS_REDIS_PASSWORD", cfg.Stats.RedisPassword)
	cfg.Stats.RedisDB = getenvIntDefault("STATS_REDIS_DB", cfg.Stats.RedisDB)
	cfg.Stats.Prefix = getenvDefault("STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackSources = getenvBoolDefault("STATS_TRACK_SOURCES", cfg.Stats.TrackSources)
}

func (c config) validate() error {
	var errs error
	if len(c.ListenAddrs) == 0 {
		errs = multierr.Append(errs, errors.New("at least one listen address is required (LISTEN_ADDRS)"))
	}
	if strings.TrimSpace(c.UpstreamURL) == "" {
		errs = multierr.Append(errs, errors.New("UPSTREAM_URL is required"))
	}
	if c.HighWaterMark <= 0 {
		errs = multierr.Append(errs, errors.New("HIGH_WATER_MARK must be > 0"))
	}
	if c.Workers <= 0 {
		errs = multierr.Append(errs, errors.New("WORKERS must be > 0"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.Rate.Enabled {
		if c.Rate.RPS <= 0 {
			errs = multierr.Append(errs, errors.New("RATE_RPS must be > 0"))
		}
		if c.Rate.Burst <= 0 {
			errs = multierr.Append(errs, errors.New("RATE_BURST must be > 0"))
		}
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		errs = multierr.Append(errs, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true"))
	}
	return errs
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	if i, ok := getenvInt(k); ok {
		return i
	}
	return def
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
