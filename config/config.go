package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// CheckinConfig — тайминги жизненного цикла чек-ина. Передаётся в сервисы
// при конструировании, чтобы тесты могли подставлять свои значения.
type CheckinConfig struct {
	WindowBefore time.Duration // за сколько до старта открывается чек-ин
	UndoWindow   time.Duration // сколько владелец может отменить свой чек-ин
	BulkLimit    int           // максимум регистраций в одном bulk-запросе
}

// TeamConfig — настройки командных приглашений.
type TeamConfig struct {
	InviteTTL time.Duration
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	Checkin CheckinConfig
	Team    TeamConfig

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load() // отсутствие .env не фатально

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	checkinWindow, err := minutesEnv("CHECKIN_WINDOW_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	undoWindow, err := minutesEnv("CHECKIN_UNDO_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	bulkLimit, err := intEnv("CHECKIN_BULK_LIMIT", 200)
	if err != nil {
		return nil, err
	}
	if checkinWindow <= 0 || undoWindow <= 0 || bulkLimit <= 0 {
		return nil, fmt.Errorf("check-in window, undo window and bulk limit must all be positive")
	}

	inviteTTLHours, err := intEnv("TEAM_INVITE_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		Checkin: CheckinConfig{
			WindowBefore: checkinWindow,
			UndoWindow:   undoWindow,
			BulkLimit:    bulkLimit,
		},
		Team: TeamConfig{
			InviteTTL: time.Duration(inviteTTLHours) * time.Hour,
		},
		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: smtpPort,
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: os.Getenv("SMTP_FROM"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}

func minutesEnv(key string, defaultMinutes int) (time.Duration, error) {
	minutes, err := intEnv(key, defaultMinutes)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}
