package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN      string
	ServerPort string

	JWTSecret string
	JWTTTL    time.Duration

	// артефакты отчётов и рендер
	ReportsDir     string
	ReportTemplate string
	ChromePath     string
	RenderTimeout  time.Duration

	// почта
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	MailFrom         string
	AdminEmail       string
	SignaturePageURL string

	// необязательные зависимости: пустое значение выключает
	RedisAddr      string
	RedisPassword  string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	LogLevel  string
	LogFormat string

	SeedAdminEmail    string
	SeedAdminPassword string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// FromEnv читает конфигурацию только из переменных окружения.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDSN:      os.Getenv("DB_DSN"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		ReportsDir:     getEnv("REPORTS_DIR", "./reports"),
		ReportTemplate: os.Getenv("REPORT_TEMPLATE"),
		ChromePath:     os.Getenv("CHROME_PATH"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		MailFrom:         os.Getenv("MAIL_FROM"),
		AdminEmail:       getEnv("ADMIN_EMAIL", "admin@example.com"),
		SignaturePageURL: getEnv("SIGNATURE_PAGE_URL", "http://localhost:3000/signature"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "service-reports"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", "superadmin@example.com"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", "superadmin123"),
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RenderTimeout, err = getDuration("RENDER_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if cfg.MinIOUseSSL, err = strconv.ParseBool(v); err != nil {
			return nil, errors.New("MINIO_USE_SSL must be a boolean")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, errors.New(key + " must be a positive duration like 30s or 1h")
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}
