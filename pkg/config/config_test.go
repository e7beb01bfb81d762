package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ADV3_HOST", "ADV3_PORT", "ADV3_TIMEOUT", "ADV3_LOG_LEVEL", "ADV3_PARAMS", "ADV3_RETRIES", "ADV3_MIN_FIRMWARE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, &Config{
		Port:     8899,
		Timeout:  5 * time.Second,
		LogLevel: "info",
		Params:   "adv3.json",
		Retries:  3,
	}, cfg)
}

func TestLoadFile(t *testing.T) {
	for _, k := range []string{"ADV3_HOST", "ADV3_PORT", "ADV3_TIMEOUT", "ADV3_RETRIES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	// set before the file is read so it wins
	t.Setenv("ADV3_RETRIES", "7")

	env := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(env, []byte("ADV3_HOST=192.168.1.50\nADV3_PORT=9000\nADV3_TIMEOUT=2\nADV3_RETRIES=1\n"), 0644))

	cfg := Load(env)
	assert.Equal(t, "192.168.1.50", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.Retries)
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"duration", "1500ms", 1500 * time.Millisecond},
		{"seconds", "3", 3 * time.Second},
		{"garbage", "soon", time.Minute},
		{"empty", "", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ADV3_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("ADV3_TEST_DURATION", time.Minute))
		})
	}
}
