package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the album fetcher
type Config struct {
	// Shared streams service endpoint settings
	Service ServiceConfig `yaml:"service" json:"service"`

	// Retry policy applied to every JSON endpoint
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Derivative selection rules
	Selection SelectionConfig `yaml:"selection" json:"selection"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServiceConfig holds shared streams service configuration
type ServiceConfig struct {
	Host          string        `yaml:"host" json:"host"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	LenientTokens bool          `yaml:"lenient_tokens" json:"lenient_tokens"`
}

// RetryConfig holds the retry policy in its serialized form
type RetryConfig struct {
	MaxRetries           int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay            time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay             time.Duration `yaml:"max_delay" json:"max_delay"`
	Strategy             string        `yaml:"strategy" json:"strategy"`
	RetryableStatusCodes []int         `yaml:"retryable_status_codes" json:"retryable_status_codes"`
	PermanentStatusCodes []int         `yaml:"permanent_status_codes" json:"permanent_status_codes"`
}

// SelectionConfig controls which derivative counts as the original
type SelectionConfig struct {
	// OriginalMarkers are case-insensitive substrings of a derivative key
	OriginalMarkers []string `yaml:"original_markers" json:"original_markers"`
	// ReservedKeys are exact derivative keys treated as originals
	ReservedKeys []string `yaml:"reserved_keys" json:"reserved_keys"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	OutputDirectory     string `yaml:"output_directory" json:"output_directory"`
	ConcurrentDownloads int    `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	RequestsPerMinute   int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	OverwriteExisting   bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
	WriteManifest       bool   `yaml:"write_manifest" json:"write_manifest"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:      "sharedstreams.icloud.com",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
			Timeout:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:           3,
			BaseDelay:            500 * time.Millisecond,
			MaxDelay:             10 * time.Second,
			Strategy:             "exponential_jitter",
			RetryableStatusCodes: []int{408, 425, 429, 500, 502, 503, 504},
			PermanentStatusCodes: []int{401, 403, 404, 410},
		},
		Selection: SelectionConfig{
			OriginalMarkers: []string{"original", "full"},
			ReservedKeys:    []string{"3", "4"},
		},
		Download: DownloadConfig{
			OutputDirectory:     "./albums",
			ConcurrentDownloads: 4,
			RequestsPerMinute:   120,
			WriteManifest:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if host := os.Getenv("ICLOUDALBUM_SERVICE_HOST"); host != "" {
		c.Service.Host = host
	}
	if userAgent := os.Getenv("ICLOUDALBUM_USER_AGENT"); userAgent != "" {
		c.Service.UserAgent = userAgent
	}
	if timeout := os.Getenv("ICLOUDALBUM_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("ICLOUDALBUM_TIMEOUT: %w", err))
		} else {
			c.Service.Timeout = d
		}
	}
	if lenient := os.Getenv("ICLOUDALBUM_LENIENT_TOKENS"); lenient != "" {
		c.Service.LenientTokens = strings.ToLower(lenient) == "true"
	}

	if retries := os.Getenv("ICLOUDALBUM_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			errs = append(errs, fmt.Errorf("ICLOUDALBUM_MAX_RETRIES: %w", err))
		} else {
			c.Retry.MaxRetries = n
		}
	}
	if strategy := os.Getenv("ICLOUDALBUM_BACKOFF"); strategy != "" {
		c.Retry.Strategy = strategy
	}

	if outputDir := os.Getenv("ICLOUDALBUM_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if concurrent := os.Getenv("ICLOUDALBUM_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if logLevel := os.Getenv("ICLOUDALBUM_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("ICLOUDALBUM_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".icloudalbum.yaml",
		".icloudalbum.yml",
		filepath.Join(home, ".config", "icloudalbum", "config.yaml"),
		filepath.Join(home, ".config", "icloudalbum", "config.yml"),
		filepath.Join(home, ".icloudalbum.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Host == "" {
		errs = append(errs, errors.New("service host is required"))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("service timeout must be positive"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("base delay cannot be negative"))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("max delay must be at least the base delay"))
	}
	validStrategies := map[string]bool{
		"constant": true, "linear": true, "exponential": true,
		"exponential_jitter": true, "jitter": true,
	}
	if !validStrategies[strings.ToLower(c.Retry.Strategy)] {
		errs = append(errs, fmt.Errorf("invalid backoff strategy %q", c.Retry.Strategy))
	}
	for _, code := range append(append([]int{}, c.Retry.RetryableStatusCodes...), c.Retry.PermanentStatusCodes...) {
		if code < 100 || code > 599 {
			errs = append(errs, fmt.Errorf("invalid HTTP status code %d", code))
		}
	}

	if len(c.Selection.OriginalMarkers) == 0 && len(c.Selection.ReservedKeys) == 0 {
		errs = append(errs, errors.New("at least one original marker or reserved key is required"))
	}

	if c.Download.OutputDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"": true, "console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never override other sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.Download.RequestsPerMinute = rpm
	}
	if overwrite, ok := flags["overwrite"].(bool); ok && overwrite {
		c.Download.OverwriteExisting = true
	}
	if noManifest, ok := flags["no-manifest"].(bool); ok && noManifest {
		c.Download.WriteManifest = false
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		c.Retry.MaxRetries = retries
	}
	if strategy, ok := flags["backoff"].(string); ok && strategy != "" {
		c.Retry.Strategy = strategy
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Service.Timeout = timeout
	}
	if lenient, ok := flags["lenient"].(bool); ok && lenient {
		c.Service.LenientTokens = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".icloudalbum.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
