package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sharedstreams.icloud.com", cfg.Service.Host)
	assert.NotEmpty(t, cfg.Service.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Service.Timeout)
	assert.False(t, cfg.Service.LenientTokens)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "exponential_jitter", cfg.Retry.Strategy)
	assert.Contains(t, cfg.Retry.RetryableStatusCodes, 503)
	assert.Contains(t, cfg.Retry.PermanentStatusCodes, 404)

	assert.Equal(t, []string{"original", "full"}, cfg.Selection.OriginalMarkers)
	assert.Equal(t, []string{"3", "4"}, cfg.Selection.ReservedKeys)

	assert.Equal(t, "./albums", cfg.Download.OutputDirectory)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.True(t, cfg.Download.WriteManifest)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ICLOUDALBUM_SERVICE_HOST", "example.test")
	t.Setenv("ICLOUDALBUM_TIMEOUT", "5s")
	t.Setenv("ICLOUDALBUM_LENIENT_TOKENS", "TRUE")
	t.Setenv("ICLOUDALBUM_MAX_RETRIES", "7")
	t.Setenv("ICLOUDALBUM_BACKOFF", "linear")
	t.Setenv("ICLOUDALBUM_OUTPUT_DIR", "/tmp/albums")
	t.Setenv("ICLOUDALBUM_CONCURRENT_DOWNLOADS", "6")
	t.Setenv("ICLOUDALBUM_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "example.test", cfg.Service.Host)
	assert.Equal(t, 5*time.Second, cfg.Service.Timeout)
	assert.True(t, cfg.Service.LenientTokens)
	assert.Equal(t, 7, cfg.Retry.MaxRetries)
	assert.Equal(t, "linear", cfg.Retry.Strategy)
	assert.Equal(t, "/tmp/albums", cfg.Download.OutputDirectory)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("ICLOUDALBUM_TIMEOUT", "soon")
	t.Setenv("ICLOUDALBUM_MAX_RETRIES", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ICLOUDALBUM_TIMEOUT")
	assert.Contains(t, err.Error(), "ICLOUDALBUM_MAX_RETRIES")
	assert.Equal(t, 30*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Service.Host = "" }, "service host is required"},
		{"zero timeout", func(c *Config) { c.Service.Timeout = 0 }, "service timeout must be positive"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max retries cannot be negative"},
		{"max below base", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "max delay must be at least the base delay"},
		{"bad strategy", func(c *Config) { c.Retry.Strategy = "fibonacci" }, "invalid backoff strategy"},
		{"bad status code", func(c *Config) { c.Retry.RetryableStatusCodes = []int{42} }, "invalid HTTP status code 42"},
		{"no selection rules", func(c *Config) {
			c.Selection.OriginalMarkers = nil
			c.Selection.ReservedKeys = nil
		}, "at least one original marker or reserved key is required"},
		{"too many downloads", func(c *Config) { c.Download.ConcurrentDownloads = 32 }, "should not exceed 16"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.Host = ""
	cfg.Download.OutputDirectory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service host is required")
	assert.Contains(t, err.Error(), "output directory is required")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":              "/flag/output",
		"concurrent":          7,
		"requests-per-minute": 30,
		"overwrite":           true,
		"no-manifest":         true,
		"max-retries":         0,
		"backoff":             "constant",
		"timeout":             2 * time.Second,
		"lenient":             true,
		"log-level":           "error",
		"log-format":          "json",
	})

	assert.Equal(t, "/flag/output", cfg.Download.OutputDirectory)
	assert.Equal(t, 7, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 30, cfg.Download.RequestsPerMinute)
	assert.True(t, cfg.Download.OverwriteExisting)
	assert.False(t, cfg.Download.WriteManifest)
	assert.Equal(t, 0, cfg.Retry.MaxRetries)
	assert.Equal(t, "constant", cfg.Retry.Strategy)
	assert.Equal(t, 2*time.Second, cfg.Service.Timeout)
	assert.True(t, cfg.Service.LenientTokens)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestMergeCommandLineFlagsIgnoresZeroValues(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":     "",
		"concurrent": 0,
		"log-level":  "",
	})

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Service.LenientTokens = true
	cfg.Retry.BaseDelay = 250 * time.Millisecond
	cfg.Selection.ReservedKeys = []string{"5"}
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFilePartialOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := map[string]interface{}{
		"retry": map[string]interface{}{
			"max_retries": 5,
			"max_delay":   "30s",
		},
		"selection": map[string]interface{}{
			"original_markers": []string{"master"},
		},
	}
	data, err := yaml.Marshal(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(configPath))

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, []string{"master"}, cfg.Selection.OriginalMarkers)
	assert.Equal(t, []string{"3", "4"}, cfg.Selection.ReservedKeys)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("retry: [unclosed"), 0600))
	err := cfg.LoadFromFile(badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadPrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("download:\n  output_directory: /from/file\n  concurrent_downloads: 2\n"), 0600))

	t.Setenv("ICLOUDALBUM_CONCURRENT_DOWNLOADS", "3")

	cfg, err := Load(configPath, map[string]interface{}{"log-level": "warn"})
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.Download.OutputDirectory)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadValidationFailure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("retry:\n  strategy: fibonacci\n"), 0600))

	_, err := Load(configPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
