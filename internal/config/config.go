package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken            string
	BotTransport        string
	WebhookURL          string
	WebhookListenAddr   string
	BotPollingIntervalS int
	TelegramTimeout     time.Duration
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	NotifyPort          int
	ReplyWindow         time.Duration
	PendingTTL          time.Duration
	DataDir             string
	LogLevel            string
	LogFilePath         string
	LogMaxSizeMB        int
	LogMaxBackups       int
	LogMaxAgeDays       int
}

func LoadFromEnv() (Config, error) {
	dataDir := defaultString(os.Getenv("DATA_DIR"), "./data")
	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))

	telegramTimeoutMs, err := parseIntWithDefault("TELEGRAM_TIMEOUT_MS", 30000)
	if err != nil {
		return Config{}, err
	}
	pollingInterval, err := parseIntWithDefault("BOT_POLLING_INTERVAL_SECONDS", 2)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := parseIntWithDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	notifyPort, err := parseIntWithDefault("NOTIFY_PORT", 8091)
	if err != nil {
		return Config{}, err
	}
	replyWindowS, err := parseIntWithDefault("REPLY_WINDOW_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}
	pendingTTLHours, err := parseIntWithDefault("PENDING_TTL_HOURS", 24)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BotToken:            botToken,
		BotTransport:        defaultString(os.Getenv("BOT_TRANSPORT"), "polling"),
		WebhookURL:          strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookListenAddr:   defaultString(strings.TrimSpace(os.Getenv("WEBHOOK_LISTEN_ADDR")), ":8090"),
		BotPollingIntervalS: pollingInterval,
		TelegramTimeout:     time.Duration(telegramTimeoutMs) * time.Millisecond,
		RedisAddr:           defaultString(os.Getenv("REDIS_ADDR"), "127.0.0.1:6379"),
		RedisPassword:       strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:             redisDB,
		NotifyPort:          notifyPort,
		ReplyWindow:         time.Duration(replyWindowS) * time.Second,
		PendingTTL:          time.Duration(pendingTTLHours) * time.Hour,
		DataDir:             dataDir,
		LogLevel:            defaultString(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
		LogFilePath:         filepath.Join(dataDir, "logs", "relay.log"),
		LogMaxSizeMB:        10,
		LogMaxBackups:       5,
		LogMaxAgeDays:       14,
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if cfg.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if cfg.BotTransport != "polling" && cfg.BotTransport != "webhook" {
		return fmt.Errorf("BOT_TRANSPORT must be polling or webhook: got %q", cfg.BotTransport)
	}
	if cfg.BotTransport == "webhook" && cfg.WebhookURL == "" {
		return errors.New("WEBHOOK_URL is required when BOT_TRANSPORT=webhook")
	}
	if cfg.BotTransport == "webhook" && strings.TrimSpace(cfg.WebhookListenAddr) == "" {
		return errors.New("WEBHOOK_LISTEN_ADDR is required when BOT_TRANSPORT=webhook")
	}
	if cfg.NotifyPort <= 0 {
		return fmt.Errorf("NOTIFY_PORT must be > 0: got %d", cfg.NotifyPort)
	}
	if cfg.ReplyWindow <= 0 {
		return fmt.Errorf("REPLY_WINDOW_SECONDS must be > 0: got %s", cfg.ReplyWindow)
	}
	if cfg.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL_HOURS must be > 0: got %s", cfg.PendingTTL)
	}
	return nil
}

func parseIntWithDefault(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be integer: %w", key, err)
	}
	return v, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
