package config

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockFileReader implements FileReader for testing
type MockFileReader struct {
	files map[string]string // filename -> content
}

func (m MockFileReader) Open(filename string) (io.ReadCloser, error) {
	if content, exists := m.files[filename]; exists {
		return io.NopCloser(strings.NewReader(content)), nil
	}
	return nil, os.ErrNotExist
}

func (m MockFileReader) Stat(filename string) (os.FileInfo, error) {
	if _, exists := m.files[filename]; exists {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

var envVarsToClean = []string{
	"AUTH_TOKEN", "PARQUET_URL", "DATA_DIR", "PARQUET_PATH", "METADATA_PATH",
	"LOCK_FILE", "REFRESH_INTERVAL_HOURS", "DISABLE_REMOTE_CHECK", "IGNORE_LOCK",
	"DB_PATH", "DAILY_CALORIE_TARGET", "MACRO_COLUMN", "UNIT_WEIGHTS_PATH",
	"LOOKUP_TIMEOUT_SECONDS", "REMOTE_LOOKUP", "OFF_API_URL", "PORT", "ENV",
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVarsToClean {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	defaults := func() *Config {
		return &Config{
			AuthToken:            "super-secret-token",
			ParquetURL:           "https://huggingface.co/datasets/openfoodfacts/product-database/resolve/main/food.parquet",
			DataDir:              "./data",
			ParquetPath:          "data/product-database.parquet",
			MetadataPath:         "data/metadata.json",
			LockFile:             "data/refresh.lock",
			RefreshIntervalHours: 24,
			DBPath:               "data/food-log.db",
			DailyCalorieTarget:   2000,
			MacroColumn:          "sugar",
			LookupTimeoutSeconds: 5,
			RemoteLookup:         true,
			OFFAPIURL:            "https://world.openfoodfacts.org",
			Port:                 "8080",
			Environment:          "production",
		}
	}

	tests := []struct {
		name     string
		envVars  map[string]string
		expected func() *Config
	}{
		{
			name:     "default values",
			envVars:  map[string]string{},
			expected: defaults,
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"AUTH_TOKEN":             "custom-token",
				"DATA_DIR":               "/custom/data",
				"REFRESH_INTERVAL_HOURS": "12",
				"DAILY_CALORIE_TARGET":   "1800.5",
				"MACRO_COLUMN":           "carbs",
				"UNIT_WEIGHTS_PATH":      "/etc/weights.yaml",
				"LOOKUP_TIMEOUT_SECONDS": "3",
				"REMOTE_LOOKUP":          "false",
				"DISABLE_REMOTE_CHECK":   "true",
				"PORT":                   "3000",
				"ENV":                    "development",
			},
			expected: func() *Config {
				c := defaults()
				c.AuthToken = "custom-token"
				c.DataDir = "/custom/data"
				c.ParquetPath = "/custom/data/product-database.parquet"
				c.MetadataPath = "/custom/data/metadata.json"
				c.LockFile = "/custom/data/refresh.lock"
				c.DBPath = "/custom/data/food-log.db"
				c.RefreshIntervalHours = 12
				c.DailyCalorieTarget = 1800.5
				c.MacroColumn = "carbs"
				c.UnitWeightsPath = "/etc/weights.yaml"
				c.LookupTimeoutSeconds = 3
				c.RemoteLookup = false
				c.DisableRemoteCheck = true
				c.Port = "3000"
				c.Environment = "development"
				return c
			},
		},
		{
			name: "unparseable numbers keep defaults",
			envVars: map[string]string{
				"REFRESH_INTERVAL_HOURS": "soon",
				"DAILY_CALORIE_TARGET":   "lots",
				"REMOTE_LOOKUP":          "maybe",
			},
			expected: defaults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			mockReader := MockFileReader{files: map[string]string{}}
			assert.Equal(t, tt.expected(), LoadWithFileReader(mockReader))
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{RefreshIntervalHours: 24, LookupTimeoutSeconds: 3}
	assert.Equal(t, 24*time.Hour, cfg.RefreshInterval())
	assert.Equal(t, 3*time.Second, cfg.LookupTimeout())

	cfg = &Config{}
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval())
	assert.Equal(t, 5*time.Second, cfg.LookupTimeout())
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", false},
		{"development", true},
		{"", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.expected, cfg.IsDevelopment())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("with .env file", func(t *testing.T) {
		envContent := `# Test .env file
AUTH_TOKEN=test-token-from-env
PORT=9999
DAILY_CALORIE_TARGET=1500

ANOTHER_VAR="value with spaces"
`
		mockReader := MockFileReader{files: map[string]string{".env": envContent}}

		clearEnv(t)
		t.Setenv("ANOTHER_VAR", "")
		os.Unsetenv("ANOTHER_VAR")

		loadEnvFileWithReader(mockReader)

		assert.Equal(t, "test-token-from-env", os.Getenv("AUTH_TOKEN"))
		assert.Equal(t, "9999", os.Getenv("PORT"))
		assert.Equal(t, "value with spaces", os.Getenv("ANOTHER_VAR"))

		// A value already in the environment wins over .env
		os.Setenv("AUTH_TOKEN", "cli-override-token")
		loadEnvFileWithReader(mockReader)
		assert.Equal(t, "cli-override-token", os.Getenv("AUTH_TOKEN"))

		cfg := LoadWithFileReader(mockReader)
		assert.Equal(t, 1500.0, cfg.DailyCalorieTarget)
		assert.Equal(t, "9999", cfg.Port)
	})

	t.Run("without .env file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_TOKEN", "cli-token")

		loadEnvFileWithReader(MockFileReader{files: map[string]string{}})

		assert.Equal(t, "cli-token", os.Getenv("AUTH_TOKEN"))
		assert.Equal(t, "", os.Getenv("PORT"))
	})
}
