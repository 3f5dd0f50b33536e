package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollerConfig struct {
	BatchSize    int           `env:"TRADEBOOK_CONFIG_TEST_BATCH_SIZE" envDefault:"50"`
	PollInterval time.Duration `env:"TRADEBOOK_CONFIG_TEST_POLL_INTERVAL" envDefault:"1m"`
	Token        string        `env:"TRADEBOOK_CONFIG_TEST_TOKEN"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg pollerConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, pollerConfig{BatchSize: 50, PollInterval: time.Minute}, cfg)
}

func TestParseEnvReadsProcessEnvironment(t *testing.T) {
	t.Setenv("TRADEBOOK_CONFIG_TEST_POLL_INTERVAL", "30s")
	t.Setenv("TRADEBOOK_CONFIG_TEST_TOKEN", "secret")

	var cfg pollerConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "secret", cfg.Token)
}

func TestParseEnvWrapsErrors(t *testing.T) {
	t.Setenv("TRADEBOOK_CONFIG_TEST_BATCH_SIZE", "lots")

	var cfg pollerConfig
	assert.ErrorContains(t, ParseEnv(&cfg), "parse env:")
}

func TestParseEnvFromIgnoresProcessEnvironment(t *testing.T) {
	t.Setenv("TRADEBOOK_CONFIG_TEST_BATCH_SIZE", "999")

	var cfg pollerConfig
	require.NoError(t, ParseEnvFrom(&cfg, map[string]string{"TRADEBOOK_CONFIG_TEST_POLL_INTERVAL": "5m"}))
	assert.Equal(t, pollerConfig{BatchSize: 50, PollInterval: 5 * time.Minute}, cfg)

	var defaults pollerConfig
	require.NoError(t, ParseEnvFrom(&defaults, nil))
	assert.Equal(t, 50, defaults.BatchSize)
}
