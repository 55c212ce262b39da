package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string `mapstructure:"DB_DSN"`
	Environment string `mapstructure:"ENV"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	// Часовой пояс, в котором трактуются правила рабочих часов
	Timezone string `mapstructure:"TIMEZONE"`
	Location *time.Location

	DefaultSlotMinutes int `mapstructure:"DEFAULT_SLOT_MINUTES"`

	DispatchInterval    time.Duration `mapstructure:"DISPATCH_INTERVAL"`
	DispatchBatchSize   int           `mapstructure:"DISPATCH_BATCH_SIZE"`
	DispatchMaxRetries  int           `mapstructure:"DISPATCH_MAX_RETRIES"`
	DispatchConcurrency int           `mapstructure:"DISPATCH_CONCURRENCY"`
	DispatchBudget      time.Duration `mapstructure:"DISPATCH_BUDGET"`
	ChannelTimeout      time.Duration `mapstructure:"CHANNEL_TIMEOUT"`
	OutboxRetention     time.Duration `mapstructure:"OUTBOX_RETENTION"`

	// Каналы уведомлений: пустой адрес отключает канал
	WebhookURL     string `mapstructure:"WEBHOOK_URL"`
	WebhookSecret  string `mapstructure:"WEBHOOK_SECRET"`
	EmailAPIURL    string `mapstructure:"EMAIL_API_URL"`
	EmailAPIKey    string `mapstructure:"EMAIL_API_KEY"`
	EmailFrom      string `mapstructure:"EMAIL_FROM"`
	EmailTo        string `mapstructure:"EMAIL_TO"`
	ChatWebhookURL string `mapstructure:"CHAT_WEBHOOK_URL"`
	TelegramToken  string `mapstructure:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `mapstructure:"TELEGRAM_CHAT_ID"`
	NATSURL        string `mapstructure:"NATS_URL"`
	NATSSubject    string `mapstructure:"NATS_SUBJECT"`

	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	CalendarCacheTTL time.Duration `mapstructure:"CALENDAR_CACHE_TTL"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		DBDSN:       os.Getenv("DB_DSN"),
		Environment: getEnv("ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		Timezone:    getEnv("TIMEZONE", "UTC"),

		DefaultSlotMinutes: p.int("DEFAULT_SLOT_MINUTES", 30),

		DispatchInterval:    p.duration("DISPATCH_INTERVAL", time.Minute),
		DispatchBatchSize:   p.int("DISPATCH_BATCH_SIZE", 50),
		DispatchMaxRetries:  p.int("DISPATCH_MAX_RETRIES", 5),
		DispatchConcurrency: p.int("DISPATCH_CONCURRENCY", 4),
		DispatchBudget:      p.duration("DISPATCH_BUDGET", 50*time.Second),
		ChannelTimeout:      p.duration("CHANNEL_TIMEOUT", 10*time.Second),
		OutboxRetention:     p.duration("OUTBOX_RETENTION", 7*24*time.Hour),

		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		EmailAPIURL:    os.Getenv("EMAIL_API_URL"),
		EmailAPIKey:    os.Getenv("EMAIL_API_KEY"),
		EmailFrom:      os.Getenv("EMAIL_FROM"),
		EmailTo:        os.Getenv("EMAIL_TO"),
		ChatWebhookURL: os.Getenv("CHAT_WEBHOOK_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: p.int64("TELEGRAM_CHAT_ID", 0),
		NATSURL:        os.Getenv("NATS_URL"),
		NATSSubject:    getEnv("NATS_SUBJECT", "fieldsched.bookings"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          p.int("REDIS_DB", 0),
		CalendarCacheTTL: p.duration("CALENDAR_CACHE_TTL", 5*time.Minute),
	}
	if p.err != nil {
		return nil, p.err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и диапазоны
func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if c.DefaultSlotMinutes <= 0 {
		return fmt.Errorf("DEFAULT_SLOT_MINUTES must be positive, got %d", c.DefaultSlotMinutes)
	}
	if c.DispatchBatchSize <= 0 || c.DispatchMaxRetries <= 0 || c.DispatchConcurrency <= 0 {
		return fmt.Errorf("dispatch batch size, max retries and concurrency must be positive")
	}
	if c.DispatchInterval <= 0 || c.DispatchBudget <= 0 || c.ChannelTimeout <= 0 {
		return fmt.Errorf("dispatch interval, budget and channel timeout must be positive")
	}
	if c.OutboxRetention <= 0 {
		return fmt.Errorf("OUTBOX_RETENTION must be positive, got %s", c.OutboxRetention)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser запоминает первую ошибку разбора
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d
}
