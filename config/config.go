package config

import (
	"os"
	"strconv"
	"time"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QueueConfig struct {
	QueueURL          string
	Region            string
	WaitSeconds       int64
	VisibilityTimeout int64
}

type WorkerConfig struct {
	MaxRetries      int
	LockTimeout     time.Duration
	SettleDelay     time.Duration
	RecoverInterval time.Duration
	CaptchaAPIKey   string // optional; captcha solving is skipped when empty
	DashboardPort   string // optional; dashboard API is skipped when empty
}

type AppConfig struct {
	Database DatabaseConfig
	Queue    QueueConfig
	Worker   WorkerConfig
	LogLevel string
}

func GetDatabaseConfig() DatabaseConfig {
	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func GetQueueConfig() QueueConfig {
	wait, _ := strconv.ParseInt(getEnv("SQS_WAIT_SECONDS", "20"), 10, 64)
	// Visibility must stay above worst-case browser execution time so an
	// in-flight job is never redelivered mid-attempt.
	visibility, _ := strconv.ParseInt(getEnv("SQS_VISIBILITY_TIMEOUT", "1200"), 10, 64)

	return QueueConfig{
		QueueURL:          getEnv("QUEUE_URL", ""),
		Region:            getEnv("AWS_REGION", "us-east-1"),
		WaitSeconds:       wait,
		VisibilityTimeout: visibility,
	}
}

func GetWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRetries:      3,
		LockTimeout:     15 * time.Minute,
		SettleDelay:     5 * time.Second,
		RecoverInterval: 5 * time.Minute,
		CaptchaAPIKey:   getEnv("API_KEY_2CAPTCHA", ""),
		DashboardPort:   getEnv("DASHBOARD_PORT", "8081"),
	}
}

func GetAppConfig() AppConfig {
	return AppConfig{
		Database: GetDatabaseConfig(),
		Queue:    GetQueueConfig(),
		Worker:   GetWorkerConfig(),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
