package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the nutrition log server
type Config struct {
	// Auth
	AuthToken string

	// Dataset config
	ParquetURL   string
	DataDir      string
	ParquetPath  string
	MetadataPath string
	LockFile     string

	// Refresh behavior
	RefreshIntervalHours int
	DisableRemoteCheck   bool
	IgnoreLock           bool

	// Food log
	DBPath             string
	DailyCalorieTarget float64
	MacroColumn        string
	UnitWeightsPath    string

	// Nutrient lookup
	LookupTimeoutSeconds int
	RemoteLookup         bool
	OFFAPIURL            string

	// Server
	Port        string
	Environment string
}

// FileReader abstracts the file system for .env loading
type FileReader interface {
	Open(filename string) (io.ReadCloser, error)
	Stat(filename string) (os.FileInfo, error)
}

type osFileReader struct{}

func (osFileReader) Open(filename string) (io.ReadCloser, error) { return os.Open(filename) }
func (osFileReader) Stat(filename string) (os.FileInfo, error)   { return os.Stat(filename) }

// Load reads configuration from a .env file (if present) and environment variables
func Load() *Config {
	return LoadWithFileReader(osFileReader{})
}

// LoadWithFileReader is Load with an injectable file system
func LoadWithFileReader(reader FileReader) *Config {
	loadEnvFileWithReader(reader)

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		AuthToken:            getEnv("AUTH_TOKEN", "super-secret-token"),
		ParquetURL:           getEnv("PARQUET_URL", "https://huggingface.co/datasets/openfoodfacts/product-database/resolve/main/food.parquet"),
		DataDir:              dataDir,
		ParquetPath:          getEnv("PARQUET_PATH", filepath.Join(dataDir, "product-database.parquet")),
		MetadataPath:         getEnv("METADATA_PATH", filepath.Join(dataDir, "metadata.json")),
		LockFile:             getEnv("LOCK_FILE", filepath.Join(dataDir, "refresh.lock")),
		RefreshIntervalHours: getEnvInt("REFRESH_INTERVAL_HOURS", 24),
		DisableRemoteCheck:   getEnvBool("DISABLE_REMOTE_CHECK", false),
		IgnoreLock:           getEnvBool("IGNORE_LOCK", false),
		DBPath:               getEnv("DB_PATH", filepath.Join(dataDir, "food-log.db")),
		DailyCalorieTarget:   getEnvFloat("DAILY_CALORIE_TARGET", 2000),
		MacroColumn:          getEnv("MACRO_COLUMN", "sugar"),
		UnitWeightsPath:      getEnv("UNIT_WEIGHTS_PATH", ""),
		LookupTimeoutSeconds: getEnvInt("LOOKUP_TIMEOUT_SECONDS", 5),
		RemoteLookup:         getEnvBool("REMOTE_LOOKUP", true),
		OFFAPIURL:            getEnv("OFF_API_URL", "https://world.openfoodfacts.org"),
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENV", "production"),
	}
}

// RefreshInterval returns the refresh interval as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// LookupTimeout returns the bounded wait for a single nutrient lookup stage
func (c *Config) LookupTimeout() time.Duration {
	if c.LookupTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// IsDevelopment reports whether detailed errors may be returned to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFileWithReader loads .env into the process environment. Variables
// already set in the environment take precedence.
func loadEnvFileWithReader(reader FileReader) {
	if _, err := reader.Stat(".env"); err != nil {
		return
	}
	f, err := reader.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return
	}
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, value)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
