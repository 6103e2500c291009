package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	originals := make(map[string]string, len(kv))
	for k := range kv {
		originals[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originals {
			if v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	}()
	for k, v := range kv {
		if v == "" {
			os.Unsetenv(k)
		} else {
			os.Setenv(k, v)
		}
	}
	fn()
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT":                       "",
		"LOG_LEVEL":                  "",
		"DEV_MODE":                   "",
		"DEFAULT_MIN_ALLOCATION":     "",
		"DEFAULT_MAX_CONCENTRATION":  "",
		"SCHEDULER_INTERVAL_MINUTES": "",
	}, func() {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.False(t, cfg.DevMode)
		assert.Equal(t, 1000.0, cfg.DefaultMinAllocation)
		assert.Equal(t, 0.0, cfg.DefaultMaxConcentration)
		assert.Equal(t, 0, cfg.SchedulerIntervalMinutes)
	})
}

func TestLoad_FromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT":                       "9100",
		"LOG_LEVEL":                  "debug",
		"DEV_MODE":                   "true",
		"DEFAULT_MIN_ALLOCATION":     "500",
		"DEFAULT_MAX_CONCENTRATION":  "0.25",
		"SCHEDULER_INTERVAL_MINUTES": "15",
	}, func() {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.DevMode)
		assert.Equal(t, 500.0, cfg.DefaultMinAllocation)
		assert.Equal(t, 0.25, cfg.DefaultMaxConcentration)
		assert.Equal(t, 15, cfg.SchedulerIntervalMinutes)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Port: 8080, DefaultMinAllocation: 1000, DefaultMaxConcentration: 0.2},
			wantErr: false,
		},
		{
			name:    "port zero invalid",
			cfg:     Config{Port: 0},
			wantErr: true,
		},
		{
			name:    "port out of range",
			cfg:     Config{Port: 70000},
			wantErr: true,
		},
		{
			name:    "negative min allocation",
			cfg:     Config{Port: 8080, DefaultMinAllocation: -1},
			wantErr: true,
		},
		{
			name:    "concentration above one",
			cfg:     Config{Port: 8080, DefaultMaxConcentration: 1.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
