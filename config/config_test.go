package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeDefault(t *testing.T) (string, *Config) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	require.NoError(t, cfg.EnsureRoot())
	require.NoError(t, cfg.WriteConfigFile())
	return home, cfg
}

func TestLoadRoundTrip(t *testing.T) {
	home, want := writeDefault(t)
	got, err := Load(home)
	require.NoError(t, err)
	require.Equal(t, home, got.App.Home)
	require.Equal(t, want.Economy, got.Economy)
	require.Equal(t, want.Store, got.Store)
	require.Equal(t, want.Timeouts, got.Timeouts)
	require.Equal(t, want.Verifier.KeyTypes, got.Verifier.KeyTypes)
	require.Equal(t, filepath.Join(home, "data"), got.Path(got.Store.Dir))
	require.Equal(t, "/abs/indexer.db", got.Path("/abs/indexer.db"))
}

func TestLoadEnvOverride(t *testing.T) {
	home, _ := writeDefault(t)
	t.Setenv("ELECT_STORE_BACKEND", "badger")
	t.Setenv("ELECT_TIMEOUTS_JOIN", "90s")
	got, err := Load(home)
	require.NoError(t, err)
	require.Equal(t, BackendBadger, got.Store.Backend)
	require.Equal(t, 90*time.Second, got.Timeouts.Join)
}

func TestValidateBasic(t *testing.T) {
	cases := []struct {
		name string
		edit func(c *Config)
		ok   bool
	}{
		{"default", func(c *Config) {}, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "gist" }, false},
		{"http without url", func(c *Config) { c.Store.Backend = BackendHTTP }, false},
		{"http with url", func(c *Config) { c.Store.Backend = BackendHTTP; c.Store.Url = "http://127.0.0.1:8080" }, true},
		{"zero unit", func(c *Config) { c.Economy.MicrocoinsPerCoin = 0 }, false},
		{"default above max", func(c *Config) { c.Economy.DefaultDurationHours = 200 }, false},
		{"no key types", func(c *Config) { c.Verifier.KeyTypes = nil }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			tc.edit(c)
			err := c.ValidateBasic()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAPILoopback(t *testing.T) {
	cases := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:8080", true},
		{"[::1]:8080", true},
		{"localhost:8080", true},
		{"0.0.0.0:8080", false},
		{":8080", false},
		{"10.0.0.5:8080", false},
		{"bad", false},
	}
	for _, tc := range cases {
		api := &APIConfig{ListenAddress: tc.addr}
		require.Equal(t, tc.ok, api.Loopback(), tc.addr)
	}
	require.True(t, DefaultConfig(t.TempDir()).API.Loopback())
}
