package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/primary-workspace/pulseai-hackshodh/internal/config"
)

func TestSyncRetryConfig_MapsSettings(t *testing.T) {
	cfg = &config.Config{
		Sync: config.SyncConfig{
			Retry: config.RetrySettings{
				MaxAttempts:      5,
				InitialBackoffMs: 200,
				MaxBackoffMs:     4000,
			},
		},
	}

	rc := syncRetryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 4*time.Second, rc.MaxBackoff)
	assert.NotNil(t, rc.OnRetry)
}

func TestSyncRetryConfig_ZeroKeepsDefaults(t *testing.T) {
	cfg = &config.Config{}

	rc := syncRetryConfig()
	assert.Equal(t, 3, rc.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)
}
