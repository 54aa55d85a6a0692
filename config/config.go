package config

import (
	"os"
)

type Config struct {
	// 聚合器配置
	AccessToken   string
	MessagingHost string
	APIBaseURL    string
	QueueName     string

	// 数据库配置（消息归档）
	DatabaseURL    string
	ArchiveEnabled bool

	// 服务器配置
	Port string

	// 其他配置
	Environment string

	// 订阅配置
	SessionToken string
}

func Load() *Config {
	return &Config{
		// 聚合器配置
		AccessToken:   getEnv("FEED_ACCESS_TOKEN", ""),
		MessagingHost: getEnv("FEED_MESSAGING_HOST", "amqp://localhost:5672"),
		APIBaseURL:    getEnv("FEED_API_BASE_URL", "https://api.oddsfeed.example.com/v1"),
		QueueName:     getEnv("FEED_QUEUE_NAME", ""),

		// 数据库配置
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/oddsfeed?sslmode=disable"),
		ArchiveEnabled: getEnv("ARCHIVE_ENABLED", "false") == "true",

		// 服务器配置
		Port: getEnv("PORT", "8080"),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),

		// 订阅配置
		SessionToken: getEnv("SESSION_TOKEN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
