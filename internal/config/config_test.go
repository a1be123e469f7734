package config

import (
	"os"
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	values := Config{RunAddr: ":9999", DigestDedup: true}

	applyDefaults(&values, defaultConfig)

	assert.Equal(t, ":9999", values.RunAddr)
	assert.Equal(t, "info", values.LogLevel)
	assert.Equal(t, "America/Los_Angeles", values.DefaultTimezone)
	assert.Equal(t, "08:00", values.DefaultSendTime)
	assert.Equal(t, 60*time.Second, values.CollaboratorTimeout)
	assert.True(t, values.DigestDedup)
	assert.False(t, values.SchedulerDisabled)
}

func TestEnvParseLeavesUnsetFields(t *testing.T) {
	values := Config{}
	applyDefaults(&values, defaultConfig)

	t.Setenv("DIGEST_CONCURRENCY", "8")
	err := env.Parse(&values)
	require.NoError(t, err)

	assert.Equal(t, 8, values.DigestConcurrency)
	assert.Equal(t, 20, values.DigestItemLimit)
}

const testJSON = `{
	"server_address": ":3000",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"default_timezone": "Europe/Berlin",
	"digest_dedup": true,
	"collaborator_timeout": "15s"
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, "users.json", cfg.DBFileName)
	assert.Equal(t, "* * * * *", cfg.SchedulerCron)
	assert.Equal(t, 4, cfg.DigestConcurrency)
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, "Europe/Berlin", cfg.DefaultTimezone)
	assert.Equal(t, 15*time.Second, cfg.CollaboratorTimeout)
	assert.True(t, cfg.DigestDedup)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("COLLABORATOR_TIMEOUT", "5s")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, 5*time.Second, cfg.CollaboratorTimeout)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-l", "debug",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigFlagSelectsFile(t *testing.T) {
	jsonPath := writeTempJSON(t, `{"server_address": ":5000"}`)

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"testbin", "-c", jsonPath}

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.RunAddr)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"log level", "LOG_LEVEL", "verbose"},
		{"timezone", "DEFAULT_TIMEZONE", "Mars/Olympus"},
		{"send time", "DEFAULT_SEND_TIME", "8am"},
		{"subnet", "TRUSTED_SUBNET", "10.0.0.0"},
		{"storage type", "STORAGE_TYPE", "redis"},
		{"concurrency", "DIGEST_CONCURRENCY", "0"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(test.key, test.value)
			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestConfigBrokenJSON(t *testing.T) {
	t.Setenv("CONFIG", writeTempJSON(t, `{"collaborator_timeout": "soon"}`))
	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)

	t.Setenv("CONFIG", "/nonexistent/config.json")
	_, err = New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
