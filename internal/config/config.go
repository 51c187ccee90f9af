package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains application configuration.
type Config struct {
	DBPath        string
	MinDistance   float64 // meters; 0 disables the distance filter
	BotToken      string
	ChatID        string
	NotifyNumber  string // fallback SMS destination; empty disables fallback
	SMSGatewayURL string
	GeocodeURL    string
	HTTPPort      string
	MetricsPort   string
}

// Load reads configuration from the environment, with .env as a convenience
// for local runs. Every key has a usable default except the bot credentials,
// which stay empty until configured.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:        getEnv("DB_PATH", "locationlogger.db"),
		MinDistance:   getEnvFloat("MIN_DISTANCE_M", 0),
		BotToken:      getEnv("BOT_TOKEN", ""),
		ChatID:        getEnv("CHAT_ID", ""),
		NotifyNumber:  getEnv("NOTIFY_NUMBER", ""),
		SMSGatewayURL: getEnv("SMS_GATEWAY_URL", ""),
		GeocodeURL:    getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		MetricsPort:   getEnv("METRICS_PORT", "9100"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
