package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

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

	// MinIO / S3 配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// OpenAI 兼容接口配置
	OpenAIBaseURL         string
	OpenAIAPIKey          string
	OpenAITranscribeModel string
	OpenAISummaryModel    string
	OpenAITimeout         time.Duration
	SummaryMaxTokens      int
	SummaryTemperature    float64

	FFmpegPath string
	ScratchDir string // 探测与切片使用的临时目录，空值表示系统临时目录

	// 音频处理流水线参数
	MaxAudioDurationSeconds   float64
	ChunkThresholdSeconds     float64
	ChunkLengthSeconds        float64
	TranscriptIntervalSeconds float64
	SummaryMaxChars           int
	RecordingURLExpiry        time.Duration
	RecordingFolder           string
	MaxUploadBytes            int64
	PipelineWorkers           int
	PipelineQueueSize         int
	RunStatusTTL              time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
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

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvDuration 解析 time.ParseDuration 格式，例如 "10m"、"8760h"
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不提供默认值
		DBName:     getEnv("DB_NAME", "voxnote"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "voxnote"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		OpenAISummaryModel:    getEnv("OPENAI_SUMMARY_MODEL", "gpt-3.5-turbo"),
		OpenAITimeout:         getEnvDuration("OPENAI_TIMEOUT", 10*time.Minute),
		SummaryMaxTokens:      getEnvInt("SUMMARY_MAX_TOKENS", 500),
		SummaryTemperature:    getEnvFloat("SUMMARY_TEMPERATURE", 0.7),

		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
		ScratchDir: getEnv("SCRATCH_DIR", ""),

		MaxAudioDurationSeconds:   getEnvFloat("MAX_AUDIO_DURATION_SECONDS", 600),
		ChunkThresholdSeconds:     getEnvFloat("CHUNK_THRESHOLD_SECONDS", 600),
		ChunkLengthSeconds:        getEnvFloat("CHUNK_LENGTH_SECONDS", 600),
		TranscriptIntervalSeconds: getEnvFloat("TRANSCRIPT_LINE_INTERVAL_SECONDS", 10),
		SummaryMaxChars:           getEnvInt("SUMMARY_MAX_CHARS", 16000),
		RecordingURLExpiry:        getEnvDuration("RECORDING_URL_EXPIRY", 365*24*time.Hour),
		RecordingFolder:           getEnv("RECORDING_FOLDER", "audio"),
		MaxUploadBytes:            getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		PipelineWorkers:           getEnvInt("PIPELINE_WORKERS", 4),
		PipelineQueueSize:         getEnvInt("PIPELINE_QUEUE_SIZE", 16),
		RunStatusTTL:              getEnvDuration("RUN_STATUS_TTL", time.Hour),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
