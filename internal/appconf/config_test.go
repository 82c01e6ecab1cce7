package appconf

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	assert.Equal(t, Production, EnvFlagToEnvironment("production"))
	assert.Equal(t, Production, EnvFlagToEnvironment("PROD"))
	assert.Equal(t, Test, EnvFlagToEnvironment("test"))
	assert.Equal(t, Development, EnvFlagToEnvironment(""))
	assert.Equal(t, Development, EnvFlagToEnvironment("staging"))
	assert.Equal(t, "production", Production.String())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.ArrivalsRefresh)
	assert.Equal(t, 15*time.Second, cfg.DetailRefresh)
	assert.Equal(t, DefaultModes, cfg.Modes)
	assert.False(t, cfg.HasRTTCredentials())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = 70000 }, "port 70000 out of range"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "rate limit"},
		{"no modes", func(c *Config) { c.Modes = nil }, "transport mode"},
		{"fast refresh", func(c *Config) { c.DetailRefresh = time.Millisecond }, "detail refresh"},
		{"half rtt credentials", func(c *Config) { c.RTTUsername = "only-user" }, "rtt username and password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"tube", "dlr"}, ParseList(" tube , dlr "))
	assert.Equal(t, []string{}, ParseList("   "))
	assert.Equal(t, []string{"a", ""}, ParseList("a,"))
}

func TestLoadFromFile(t *testing.T) {
	t.Run("loads valid config", func(t *testing.T) {
		fc, err := LoadFromFile("testdata/config_valid.yaml")
		require.NoError(t, err)

		cfg := fc.ToAppConfig()
		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, Development, cfg.Env)
		assert.Equal(t, "secret-app-key", cfg.TfLAppKey)
		assert.Equal(t, []string{"tube", "overground"}, cfg.Modes)
		assert.Equal(t, "SRA", cfg.RTTCodes["910GSTFD"])
		assert.True(t, cfg.HasRTTCredentials())
		assert.Equal(t, ":memory:", cfg.DatabasePath)
		assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
		assert.Equal(t, 20*time.Second, cfg.DetailRefresh)
		assert.Equal(t, 30*time.Second, cfg.ArrivalsRefresh)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		fc, err := LoadFromFile("testdata/config_invalid.yaml")
		assert.Error(t, err)
		assert.Nil(t, fc)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("rejects bad durations", func(t *testing.T) {
		fc, err := LoadFromFile("testdata/config_bad_duration.yaml")
		assert.Error(t, err)
		assert.Nil(t, fc)
		assert.Contains(t, err.Error(), "detail-refresh")
	})

	t.Run("fails on malformed YAML", func(t *testing.T) {
		fc, err := LoadFromFile("testdata/config_malformed.yaml")
		assert.Error(t, err)
		assert.Nil(t, fc)
		assert.Contains(t, err.Error(), "failed to parse YAML config")
	})

	t.Run("fails on missing file", func(t *testing.T) {
		fc, err := LoadFromFile("testdata/nonexistent.yaml")
		assert.Error(t, err)
		assert.Nil(t, fc)
		assert.Contains(t, err.Error(), "failed to stat config file")
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TUBEBOARD_PORT":        "8080",
		"TUBEBOARD_ENV":         "production",
		"TUBEBOARD_SESSION_TTL": "5m",
		"TFL_APP_KEY":           "k",
		"TFL_MODES":             "tube, dlr",
		"RTT_USERNAME":          "u",
		"RTT_PASSWORD":          "p",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, lookup))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, Production, cfg.Env)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "k", cfg.TfLAppKey)
	assert.Equal(t, []string{"tube", "dlr"}, cfg.Modes)
	assert.True(t, cfg.HasRTTCredentials())
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "TUBEBOARD_PORT" {
			return "eighty", true
		}
		return "", false
	}
	cfg := Default()
	err := ApplyEnv(&cfg, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUBEBOARD_PORT")
}

func TestLoadDotEnv(t *testing.T) {
	const key = "TUBEBOARD_DOTENV_PROBE"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv("testdata/missing.env", "testdata/sample.env"))
	assert.Equal(t, "from-dotenv", os.Getenv(key))
}
