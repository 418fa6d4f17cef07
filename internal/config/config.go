package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	OpenAI     OpenAIConfig
	Transport  TransportConfig
}

type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string
}

type DatabaseConfig struct {
	URL           string // empty disables the message/report archive
	NotifyChannel string
}

type StorageConfig struct {
	Dir              string
	TranscoderBin    string
	TranscodeTimeout time.Duration
}

type ExtractionConfig struct {
	Backend string // "gateway" or "openai"
	URL     string
	APIKey  string
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey    string
	ChatModel string
}

type TransportConfig struct {
	SendURL string
}

// IsProduction reports whether the service runs with GO_ENV=production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "8080"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/bot.log"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			NotifyChannel: getEnv("POSTGRES_NOTIFY_CHANNEL", "visit_reports"),
		},
		Storage: StorageConfig{
			Dir:              getEnv("STORAGE_DIR", "data"),
			TranscoderBin:    getEnv("TRANSCODER_BIN", "ffmpeg"),
			TranscodeTimeout: getEnvAsDuration("TRANSCODE_TIMEOUT", 20*time.Second),
		},
		Extraction: ExtractionConfig{
			Backend: getEnv("EXTRACTOR", "gateway"),
			URL:     getEnv("EXTRACTION_URL", "http://localhost:8000"),
			APIKey:  getEnv("EXTRACTION_API_KEY", ""),
			Timeout: getEnvAsDuration("EXTRACTION_TIMEOUT", 60*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			ChatModel: getEnv("OPENAI_MODEL_CHAT", "gpt-4o-mini"),
		},
		Transport: TransportConfig{
			SendURL: getEnv("TRANSPORT_SEND_URL", "http://localhost:3001/send"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s") or a bare number of seconds.
// Zero and negative values fall back, since they would expire immediately.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		if d <= 0 {
			return fallback
		}
		return d
	}
	if secs := getEnvAsInt(key, 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
