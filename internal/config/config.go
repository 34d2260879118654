// Package config loads the server's YAML configuration document
// (spec.md §6's "Configuration" surface), using gopkg.in/yaml.v3 —
// the YAML library caddyserver-caddy depends on for its own config
// surface.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every enumerated option spec.md §6 lists for the
// server's core.
type Config struct {
	ListenIP       string `yaml:"listen_ip"`
	ListenUDPPort  int    `yaml:"listen_udp_port"`
	BatchMax       int    `yaml:"batch_max"`
	BatchTimeoutMS int    `yaml:"batch_timeout_ms"`
	RadiSeconds    uint32 `yaml:"radi_seconds"`

	OnlineKeyValiditySeconds int64    `yaml:"online_key_validity_seconds"`
	SkewToleranceSeconds     int64    `yaml:"skew_tolerance_seconds"`
	SupportedVersions        []uint32 `yaml:"supported_versions"`

	// SeedHex, if set, seeds the long-term key deterministically
	// (tests, reproducible fixtures). Production deployments should
	// leave this empty and rely on a backend.SigningBackend instead.
	SeedHex string `yaml:"seed_hex,omitempty"`
}

// Defaults returns spec.md §6's documented default configuration.
func Defaults() Config {
	return Config{
		ListenIP:                 "0.0.0.0",
		ListenUDPPort:            2002,
		BatchMax:                 64,
		BatchTimeoutMS:           100,
		RadiSeconds:              3,
		OnlineKeyValiditySeconds: 86400,
		SkewToleranceSeconds:     10,
		SupportedVersions:        []uint32{1},
	}
}

// Load reads and validates a YAML config document from path, filling
// in any field a document omits with Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	// Decode into Defaults() so omitted fields keep their default
	// rather than being zeroed.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the bounds spec.md §6 documents for each option.
func (c *Config) Validate() error {
	if c.ListenUDPPort < 1 || c.ListenUDPPort > 65535 {
		return fmt.Errorf("listen_udp_port %d out of range 1..65535", c.ListenUDPPort)
	}
	if c.BatchMax < 1 || c.BatchMax > 64 {
		return fmt.Errorf("batch_max %d out of range 1..64", c.BatchMax)
	}
	if c.BatchTimeoutMS < 1 || c.BatchTimeoutMS > 1000 {
		return fmt.Errorf("batch_timeout_ms %d out of range 1..1000", c.BatchTimeoutMS)
	}
	if c.RadiSeconds < 1 {
		return fmt.Errorf("radi_seconds must be >= 1")
	}
	if len(c.SupportedVersions) == 0 {
		return fmt.Errorf("supported_versions must be non-empty")
	}
	for i := 1; i < len(c.SupportedVersions); i++ {
		if c.SupportedVersions[i] <= c.SupportedVersions[i-1] {
			return fmt.Errorf("supported_versions must be strictly ascending")
		}
	}
	return nil
}

// BatchTimeout returns BatchTimeoutMS as a time.Duration.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMS) * time.Millisecond
}

// OnlineKeyValidity returns OnlineKeyValiditySeconds as a time.Duration.
func (c *Config) OnlineKeyValidity() time.Duration {
	return time.Duration(c.OnlineKeyValiditySeconds) * time.Second
}

// SkewTolerance returns SkewToleranceSeconds as a time.Duration.
func (c *Config) SkewTolerance() time.Duration {
	return time.Duration(c.SkewToleranceSeconds) * time.Second
}
