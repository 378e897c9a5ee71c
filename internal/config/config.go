// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authgate settings from defaults, an optional YAML
// file, AUTHGATE_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authgate/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHGATE_"

// Keys.
const (
	KeyListenAddr    = "listen_addr"
	KeyDBDriver      = "database.driver"
	KeyDBPath        = "database.path"
	KeyDBURL         = "database.url"
	KeyDBMaxConns    = "database.max_conns"
	KeyDBOpTimeout   = "database.op_timeout"
	KeySessionTTL    = "session.ttl"
	KeySweepSchedule = "session.sweep_schedule"
	KeyCookieSecure  = "cookie.secure"
	KeyLogFormat     = "log.format"
	KeyLogLevel      = "log.level"
	KeyMetricsAddr   = "metrics.addr"
	KeyUISiteName    = "ui.site_name"
	KeyUICSSPath     = "ui.css_path"
	KeyUILogoPath    = "ui.logo_path"
)

const defaultListenAddr = "127.0.0.1:9480"

var defaults = map[string]any{
	KeyListenAddr:    defaultListenAddr,
	KeyDBDriver:      "sqlite",
	KeyDBPath:        "./authgate.db",
	KeyDBURL:         "",
	KeyDBMaxConns:    10,
	KeyDBOpTimeout:   "5s",
	KeySessionTTL:    "24h",
	KeySweepSchedule: "@every 10m",
	KeyCookieSecure:  true,
	KeyLogFormat:     "json",
	KeyLogLevel:      "info",
	KeyMetricsAddr:   "127.0.0.1:9481",
	KeyUISiteName:    "",
	KeyUICSSPath:     "",
	KeyUILogoPath:    "",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"listen-addr":    KeyListenAddr,
	"db-driver":      KeyDBDriver,
	"db-path":        KeyDBPath,
	"db-url":         KeyDBURL,
	"db-max-conns":   KeyDBMaxConns,
	"db-op-timeout":  KeyDBOpTimeout,
	"session-ttl":    KeySessionTTL,
	"sweep-schedule": KeySweepSchedule,
	"cookie-secure":  KeyCookieSecure,
	"log-format":     KeyLogFormat,
	"log-level":      KeyLogLevel,
	"metrics-addr":   KeyMetricsAddr,
	"ui-site-name":   KeyUISiteName,
	"ui-css-path":    KeyUICSSPath,
	"ui-logo-path":   KeyUILogoPath,
}

// Config is the fully resolved configuration.
type Config struct {
	ListenAddr string
	Database   Database
	Session    Session
	Cookie     Cookie
	Log        Log
	Metrics    Metrics
	UI         UI
}

// Database selects and tunes the backing store.
type Database struct {
	Driver    string
	Path      string
	URL       string
	MaxConns  int
	OpTimeout time.Duration
}

// Session controls session lifetime and cleanup.
type Session struct {
	TTL           time.Duration
	SweepSchedule string
}

// Cookie controls the session cookie.
type Cookie struct {
	Secure bool
}

// Log controls log output.
type Log struct {
	Format string
	Level  string
}

// Metrics controls the observability listener. An empty Addr disables it.
type Metrics struct {
	Addr string
}

// UI customises the login and registration pages.
type UI struct {
	SiteName string
	CSSPath  string
	LogoPath string
}

// RegisterFlags adds the configuration flags to fs. Flags only override
// other sources when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen-addr", defaultListenAddr, "HTTP listen address")
	fs.String("db-driver", "sqlite", "database driver (sqlite or postgres)")
	fs.String("db-path", "./authgate.db", "SQLite database file")
	fs.String("db-url", "", "PostgreSQL connection URL")
	fs.Int("db-max-conns", 10, "maximum open database connections")
	fs.Duration("db-op-timeout", 5*time.Second, "timeout for each store operation")
	fs.Duration("session-ttl", 24*time.Hour, "session lifetime (0 disables expiry)")
	fs.String("sweep-schedule", "@every 10m", "cron schedule for expired session cleanup (empty disables)")
	fs.Bool("cookie-secure", true, "set the Secure attribute on the session cookie")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn or error)")
	fs.String("metrics-addr", "127.0.0.1:9481", "metrics/health HTTP address (empty = disabled)")
	fs.String("ui-site-name", "", "site name shown on the login and registration pages")
	fs.String("ui-css-path", "", "CSS file embedded into the pages")
	fs.String("ui-logo-path", "", "logo image embedded into the pages")
}

// envKeys maps AUTHGATE_DATABASE_MAX_CONNS style names to keys. Keys contain
// underscores, so the mapping cannot be derived by string replacement alone.
func envKeys() map[string]string {
	m := make(map[string]string, len(defaults))
	for key := range defaults {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		m[name] = key
	}
	return m
}

// Load resolves the configuration. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).With("source", "file").Wrap(err)
		}
	}

	known := envKeys()
	if err := k.Load(env.Provider(EnvPrefix, ".", func(name string) string {
		return known[name]
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{
		ListenAddr: k.String(KeyListenAddr),
		Database: Database{
			Driver:    k.String(KeyDBDriver),
			Path:      k.String(KeyDBPath),
			URL:       k.String(KeyDBURL),
			MaxConns:  k.Int(KeyDBMaxConns),
			OpTimeout: k.Duration(KeyDBOpTimeout),
		},
		Session: Session{
			TTL:           k.Duration(KeySessionTTL),
			SweepSchedule: k.String(KeySweepSchedule),
		},
		Cookie:  Cookie{Secure: k.Bool(KeyCookieSecure)},
		Log:     Log{Format: k.String(KeyLogFormat), Level: k.String(KeyLogLevel)},
		Metrics: Metrics{Addr: k.String(KeyMetricsAddr)},
		UI: UI{
			SiteName: k.String(KeyUISiteName),
			CSSPath:  k.String(KeyUICSSPath),
			LogoPath: k.String(KeyUILogoPath),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(key string, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return invalid(KeyListenAddr, "listen_addr must be host:port, got %q", c.ListenAddr)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid(KeyMetricsAddr, "metrics.addr must be host:port, got %q", c.Metrics.Addr)
		}
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return invalid(KeyDBPath, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return invalid(KeyDBURL, "database.url is required for the postgres driver")
		}
	default:
		return invalid(KeyDBDriver, "database.driver must be 'sqlite' or 'postgres', got %q", c.Database.Driver)
	}
	if c.Database.MaxConns <= 0 {
		return invalid(KeyDBMaxConns, "database.max_conns must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.OpTimeout <= 0 {
		return invalid(KeyDBOpTimeout, "database.op_timeout must be positive, got %s", c.Database.OpTimeout)
	}

	if c.Session.TTL < 0 {
		return invalid(KeySessionTTL, "session.ttl cannot be negative, got %s", c.Session.TTL)
	}
	if c.Session.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Session.SweepSchedule); err != nil {
			return invalid(KeySweepSchedule, "session.sweep_schedule %q: %v", c.Session.SweepSchedule, err)
		}
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid(KeyLogFormat, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid(KeyLogLevel, "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
