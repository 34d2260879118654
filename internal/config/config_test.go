package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadFillsOmittedFieldsFromDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_udp_port: 5300\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5300, cfg.ListenUDPPort)
	require.Equal(t, Defaults().BatchMax, cfg.BatchMax)
	require.Equal(t, Defaults().RadiSeconds, cfg.RadiSeconds)
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.ListenUDPPort = 0 }},
		{"batch_max", func(c *Config) { c.BatchMax = 65 }},
		{"batch_timeout", func(c *Config) { c.BatchTimeoutMS = 0 }},
		{"radi", func(c *Config) { c.RadiSeconds = 0 }},
		{"empty_versions", func(c *Config) { c.SupportedVersions = nil }},
		{"unsorted_versions", func(c *Config) { c.SupportedVersions = []uint32{2, 1} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, float64(86400), cfg.OnlineKeyValidity().Seconds())
	require.Equal(t, float64(10), cfg.SkewTolerance().Seconds())
	require.Equal(t, float64(100)/1000, cfg.BatchTimeout().Seconds())
}
