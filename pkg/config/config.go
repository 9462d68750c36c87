// Package config loads the discoverer's configuration: the immutable DSN
// list and its tunables, from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

// Config is the discoverer's full runtime configuration.
type Config struct {
	// DSNs is the immutable, ordered list of candidate host connection
	// strings. Order determines each host's stable index.
	DSNs []string `yaml:"dsns"`

	// ProbeTimeout is the connect timeout of each probe connection
	// (pgconn.Settings.ConnectTimeout). It does not bound the read-only
	// check or the sync-standby lookup: one probe's connect+check+execute
	// sequence is bounded by the fixed topology.CheckTimeout (1s), so a
	// ProbeTimeout above that has no effect.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// DiscoveryInterval is the cadence of the periodic discovery cycle.
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`

	// ListenAddr is the HTTP address the discoverer's reference consumer
	// surface (/alive, /roles, /healthz, /metrics) binds to.
	ListenAddr string `yaml:"listen_addr"`
}

// yamlConfig mirrors Config but with duration fields as strings, since
// time.Duration does not implement yaml.Unmarshaler for "1s"-style text
// without help.
type yamlConfig struct {
	DSNs              []string `yaml:"dsns"`
	ProbeTimeout      string   `yaml:"probe_timeout"`
	DiscoveryInterval string   `yaml:"discovery_interval"`
	ListenAddr        string   `yaml:"listen_addr"`
}

// Default returns the configuration's zero-value defaults, matching the
// spec's default probe timeout and discovery interval of one second.
func Default() Config {
	return Config{
		ProbeTimeout:      1 * time.Second,
		DiscoveryInterval: 1 * time.Second,
		ListenAddr:        ":8090",
	}
}

// Load reads a YAML config file at path, applies environment overrides,
// and validates the result. path may be empty, in which case defaults and
// environment variables alone determine the configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}

		var raw yamlConfig
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if len(raw.DSNs) > 0 {
			cfg.DSNs = raw.DSNs
		}
		if raw.ProbeTimeout != "" {
			d, err := time.ParseDuration(raw.ProbeTimeout)
			if err != nil {
				return Config{}, fmt.Errorf("config: probe_timeout: %w", err)
			}
			cfg.ProbeTimeout = d
		}
		if raw.DiscoveryInterval != "" {
			d, err := time.ParseDuration(raw.DiscoveryInterval)
			if err != nil {
				return Config{}, fmt.Errorf("config: discovery_interval: %w", err)
			}
			cfg.DiscoveryInterval = d
		}
		if raw.ListenAddr != "" {
			cfg.ListenAddr = raw.ListenAddr
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides layers PGTOPO_* environment variables over cfg. A
// duration variable that does not parse is ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PGTOPO_DSNS"); v != "" {
		cfg.DSNs = strings.Split(v, ",")
	}
	if v := os.Getenv("PGTOPO_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProbeTimeout = d
		}
	}
	if v := os.Getenv("PGTOPO_DISCOVERY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DiscoveryInterval = d
		}
	}
	if v := os.Getenv("PGTOPO_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
}

// Validate rejects configurations the discoverer cannot run with. An empty
// DSN list is valid (spec.md's N=0 boundary: both views stay empty, no
// tasks spawned, no crash) but non-positive timers are not.
func (c Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("config: probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.DiscoveryInterval <= 0 {
		return fmt.Errorf("config: discovery_interval must be positive, got %s", c.DiscoveryInterval)
	}
	for i, dsn := range c.DSNs {
		if strings.TrimSpace(dsn) == "" {
			return fmt.Errorf("config: dsns[%d] is empty", i)
		}
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return fmt.Errorf("config: dsns[%d] (%s) is not a valid postgres dsn", i, RedactDSN(dsn))
		}
	}
	return nil
}

// RedactDSN returns a DSN safe to log: everything but the host, port and
// database name is dropped. The discoverer itself never logs a raw DSN --
// HostProbe logs app_name, which is already derived and password-free --
// but Validate's own error messages, and any other diagnostics built from a
// candidate DSN, use this so a bad connection string never puts a password
// in a log line.
func RedactDSN(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "invalid-dsn"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s", cfg.Host, cfg.Port, cfg.Database)
}
