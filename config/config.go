package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from environment variables (optionally via a .env file)
// with simple defaults suitable for local development.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPublicURL string // base URL clients use to fetch public objects

	JWTSecret     string
	JWTExpireHour int

	FFmpegPath string

	// 播放核心配置
	PlayerLoadTimeout time.Duration // Loading -> Paused-with-error after this long with no canplay
	DefaultVolume     int           // 0-100
	ZoomMin           int           // timeline pixels-per-second lower bound
	ZoomMax           int           // timeline pixels-per-second upper bound

	// Local drop directory watched for workspace audio imports
	ImportWatchDir string
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

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "beatflow"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "beatflow"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", "http://127.0.0.1:9000/beatflow"),

		JWTSecret:     getEnv("JWT_SECRET", "beatflow-dev-secret"),
		JWTExpireHour: getEnvInt("JWT_EXPIRE_HOUR", 72),

		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		PlayerLoadTimeout: time.Duration(getEnvInt("PLAYER_LOAD_TIMEOUT_SEC", 30)) * time.Second,
		DefaultVolume:     getEnvInt("PLAYER_DEFAULT_VOLUME", 70),
		ZoomMin:           getEnvInt("TIMELINE_ZOOM_MIN", 5),
		ZoomMax:           getEnvInt("TIMELINE_ZOOM_MAX", 50),

		ImportWatchDir: getEnv("IMPORT_WATCH_DIR", "imports"),
	}
}
