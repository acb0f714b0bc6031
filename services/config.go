package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	Voice     VoiceConfig
	Payment   PaymentConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Poller    PollerConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey      string
	DiagnosisEndpoint string
	DiagnosisKey      string
}

type VoiceConfig struct {
	APIKey  string
	BaseURL string
}

type PaymentConfig struct {
	RazorpayKeyID     string
	RazorpayKeySecret string
	PremiumPriceINR   int
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	URL string
}

type PollerConfig struct {
	Interval time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("diagnosis.endpoint", "")
	viper.SetDefault("diagnosis.api_key", "")
	viper.SetDefault("voice.api_key", "")
	viper.SetDefault("voice.base_url", "https://api.vapi.ai")
	viper.SetDefault("razorpay.key_id", "")
	viper.SetDefault("razorpay.key_secret", "")
	viper.SetDefault("premium.price_inr", "499")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("poller.interval", "5m")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("diagnosis.endpoint", "DIAGNOSIS_ENDPOINT")
	viper.BindEnv("diagnosis.api_key", "DIAGNOSIS_API_KEY")
	viper.BindEnv("voice.api_key", "VOICE_API_KEY")
	viper.BindEnv("voice.base_url", "VOICE_BASE_URL")
	viper.BindEnv("razorpay.key_id", "RAZORPAY_KEY_ID")
	viper.BindEnv("razorpay.key_secret", "RAZORPAY_KEY_SECRET")
	viper.BindEnv("premium.price_inr", "PREMIUM_PRICE_INR")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("poller.interval", "POLLER_INTERVAL")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey:      viper.GetString("gemini.api_key"),
			DiagnosisEndpoint: viper.GetString("diagnosis.endpoint"),
			DiagnosisKey:      viper.GetString("diagnosis.api_key"),
		},
		Voice: VoiceConfig{
			APIKey:  viper.GetString("voice.api_key"),
			BaseURL: viper.GetString("voice.base_url"),
		},
		Payment: PaymentConfig{
			RazorpayKeyID:     viper.GetString("razorpay.key_id"),
			RazorpayKeySecret: viper.GetString("razorpay.key_secret"),
			PremiumPriceINR:   viper.GetInt("premium.price_inr"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Poller: PollerConfig{
			Interval: viper.GetDuration("poller.interval"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
