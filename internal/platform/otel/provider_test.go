package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Endpoint: "  "}.Enabled())
	assert.False(t, Config{Endpoint: "http://collector:4318", Disabled: true}.Enabled())
	assert.True(t, Config{Endpoint: "http://collector:4318"}.Enabled())
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "billing", Config{SampleRatio: 1})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupRejectsBadSampleRatio(t *testing.T) {
	_, err := Setup(context.Background(), "billing", Config{Endpoint: "http://192.0.2.1:4318", SampleRatio: 2})
	assert.ErrorContains(t, err, "sample ratio")
}

func TestSetupInstallsProvider(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation, so nothing is exported.
	shutdown, err := Setup(context.Background(), "reminders", Config{Endpoint: "http://192.0.2.1:4318", SampleRatio: 0.25})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
