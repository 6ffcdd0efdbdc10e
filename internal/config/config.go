package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Backend  BackendConfig
	VNPay    VNPayConfig
	Flow     FlowConfig
	Telegram TelegramConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// BackendConfig points at the marketplace REST backend.
type BackendConfig struct {
	BaseURL string
	Token   string
}

// VNPayConfig describes the gateway return surface: the app's custom URI
// scheme and the web-redirect mirror domain this service is reachable at.
type VNPayConfig struct {
	DeepLinkScheme string
	MirrorDomain   string
}

// FlowConfig carries the payment flow tunables.
type FlowConfig struct {
	PollInterval  time.Duration
	StuckTimeout  time.Duration
	RedirectLimit int
	AttemptTTL    time.Duration
}

type TelegramConfig struct {
	Token       string
	AlertChatID string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("VNPAY_DEEPLINK_SCHEME", "farmmarket://")
	viper.SetDefault("FLOW_POLL_INTERVAL", "3s")
	viper.SetDefault("FLOW_STUCK_TIMEOUT", "10s")
	viper.SetDefault("FLOW_REDIRECT_LIMIT", 10)
	viper.SetDefault("FLOW_ATTEMPT_TTL", "24h")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("BACKEND_BASE_URL"),
			Token:   viper.GetString("BACKEND_TOKEN"),
		},
		VNPay: VNPayConfig{
			DeepLinkScheme: viper.GetString("VNPAY_DEEPLINK_SCHEME"),
			MirrorDomain:   viper.GetString("VNPAY_MIRROR_DOMAIN"),
		},
		Flow: FlowConfig{
			PollInterval:  durationOrDefault("FLOW_POLL_INTERVAL", 3*time.Second),
			StuckTimeout:  durationOrDefault("FLOW_STUCK_TIMEOUT", 10*time.Second),
			RedirectLimit: viper.GetInt("FLOW_REDIRECT_LIMIT"),
			AttemptTTL:    durationOrDefault("FLOW_ATTEMPT_TTL", 24*time.Hour),
		},
		Telegram: TelegramConfig{
			Token:       viper.GetString("TELEGRAM_TOKEN"),
			AlertChatID: viper.GetString("TELEGRAM_ALERT_CHAT_ID"),
		},
	}

	return cfg, nil
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
