package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSourceKeyPatterns lists the historical source key shapes, tried in order.
// {prefix} expands to AudioPrefix and {id} to the track identifier.
const DefaultSourceKeyPatterns = "{prefix}/{id}.mp3,audio-tracks/{id}.mp3,{id}.mp3"

// Config stores the application configuration.
// Credentials never have defaults; they must come from the environment or a .env file.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	ScratchDir  string // Parent directory for per-job scratch space

	// Object storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	PublicBaseURL     string   // Externally reachable base for manifest URLs
	AudioPrefix       string   // Bucket prefix holding source mp3 files
	HLSPrefix         string   // Bucket prefix receiving the published ladders
	SourceKeyPatterns []string // Candidate source key shapes

	StorageRetryBase time.Duration
	JobRetryDelay    time.Duration

	// Catalog database; disabled when DBHost is empty
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis status store; disabled when RedisHost is empty
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		ScratchDir:  getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "hlsladder")),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		PublicBaseURL:     strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		AudioPrefix:       strings.Trim(getEnv("AUDIO_PREFIX", "audio"), "/"),
		HLSPrefix:         strings.Trim(getEnv("HLS_PREFIX", "hls"), "/"),
		SourceKeyPatterns: splitList(getEnv("SOURCE_KEY_PATTERNS", DefaultSourceKeyPatterns)),

		StorageRetryBase: getEnvMillis("STORAGE_RETRY_BASE_MS", 500*time.Millisecond),
		JobRetryDelay:    getEnvMillis("JOB_RETRY_DELAY_MS", 5*time.Second),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "catalog"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

// ValidateStorage reports the first missing object storage setting.
func (c *Config) ValidateStorage() error {
	required := []struct{ key, value string }{
		{"MINIO_ENDPOINT", c.MinioEndpoint},
		{"MINIO_ACCESS_KEY", c.MinioAccessKey},
		{"MINIO_SECRET_KEY", c.MinioSecretKey},
		{"MINIO_BUCKET", c.MinioBucket},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is not set", r.key)
		}
	}
	return nil
}

// ValidatePublish checks everything a publishing run needs beyond storage access.
func (c *Config) ValidatePublish() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL is not set")
	}
	if len(c.SourceKeyPatterns) == 0 {
		return fmt.Errorf("SOURCE_KEY_PATTERNS is empty")
	}
	return nil
}

// CatalogEnabled reports whether a catalog database is configured.
func (c *Config) CatalogEnabled() bool {
	return c.DBHost != ""
}

// RedisEnabled reports whether run status should be published to Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
