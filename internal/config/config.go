package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Драйверы уведомлений
const (
	NotifyDriverLog   = "log"
	NotifyDriverRedis = "redis"
	NotifyDriverKafka = "kafka"
)

// Config структура конфигурации
type Config struct {
	AppEnv           string
	Port             string
	TelegramBotToken string
	JWTSecret        string
	StoreDriver      string
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	MongoConfig      MongoConfig
	SwapConfig       SwapConfig
	NotifyConfig     NotifyConfig
	StripeSecretKey  string
	RateLimitPerMin  int
	OtelConfig       OtelConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// MongoConfig содержит конфигурацию MongoDB
type MongoConfig struct {
	URI      string
	Database string
}

// SwapConfig – параметры протокола обмена
type SwapConfig struct {
	TxMaxAttempts    int
	MonthlySwapLimit int
	DeletionCooldown time.Duration
}

// NotifyConfig – куда отправлять намерения уведомить пользователя
type NotifyConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	KafkaBrokers  []string
	KafkaTopic    string
}

// OtelConfig – трассировка
type OtelConfig struct {
	Enabled      string
	OTLPEndpoint string
	ServiceName  string
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	dbConfig := DatabaseConfig{
		Host:     v.GetString("PGHOST"),
		Port:     v.GetString("PGPORT"),
		User:     v.GetString("PGUSER"),
		Password: v.GetString("PGPASSWORD"),
		Name:     v.GetString("PGDATABASE"),
		SSLMode:  v.GetString("PGSSLMODE"),
		MaxConns: v.GetInt32("PG_MAX_CONNS"),
	}

	// Формируем строку подключения к базе данных, если она не задана целиком
	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)
	}

	return &Config{
		AppEnv:           v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		StoreDriver:      strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:      dbURL,
		DatabaseConfig:   dbConfig,
		MongoConfig: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		SwapConfig: SwapConfig{
			TxMaxAttempts:    v.GetInt("TX_MAX_ATTEMPTS"),
			MonthlySwapLimit: v.GetInt("MONTHLY_SWAP_LIMIT"),
			DeletionCooldown: time.Duration(v.GetInt("DELETION_COOLDOWN_DAYS")) * 24 * time.Hour,
		},
		NotifyConfig: NotifyConfig{
			Driver:        strings.ToLower(v.GetString("NOTIFY_DRIVER")),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RedisStream:   v.GetString("REDIS_STREAM"),
			KafkaBrokers:  splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:    v.GetString("KAFKA_TOPIC"),
		},
		StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
		RateLimitPerMin: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		OtelConfig: OtelConfig{
			Enabled:      strings.ToLower(v.GetString("OTEL_ENABLED")),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("PGHOST", "localhost")
	v.SetDefault("PGPORT", "5432")
	v.SetDefault("PGUSER", "scentswap_user")
	v.SetDefault("PGPASSWORD", "scentswap_pass")
	v.SetDefault("PGDATABASE", "scentswap")
	v.SetDefault("PGSSLMODE", "disable")
	v.SetDefault("PG_MAX_CONNS", 10)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MONGO_DATABASE", "scentswap")
	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("MONTHLY_SWAP_LIMIT", 0)
	v.SetDefault("DELETION_COOLDOWN_DAYS", 30)
	v.SetDefault("NOTIFY_DRIVER", NotifyDriverLog)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_STREAM", "swap:notifications")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "swap-notifications")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("OTEL_SERVICE_NAME", "scentswap-api")
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("не задан JWT_SECRET")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER: %q", c.StoreDriver)
	}
	switch c.NotifyConfig.Driver {
	case NotifyDriverLog, NotifyDriverRedis, NotifyDriverKafka:
	default:
		return fmt.Errorf("неизвестный NOTIFY_DRIVER: %q", c.NotifyConfig.Driver)
	}
	if c.SwapConfig.TxMaxAttempts <= 0 {
		return errors.New("TX_MAX_ATTEMPTS должен быть больше нуля")
	}
	return nil
}

// IsDevelopment сообщает, запущены ли мы не в production
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
