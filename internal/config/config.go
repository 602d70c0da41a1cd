package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	// MySQL (items, orders, order_lines)
	MySQLDSN string
	// Redis (session carts, checkout idempotency)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Kafka (notification events - optional)
	KafkaBrokers []string
	KafkaTopic   string
	UseKafka     bool
	// Notification dispatch
	NotifyWorkers   int
	NotifyQueueSize int
	// Checkout
	CheckoutAttempts   int
	DeliveryWindowDays int
}

func Load() *Config {
	// .env file is optional, continue with environment variables.
	_ = godotenv.Load()

	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	for i, broker := range kafkaBrokers {
		kafkaBrokers[i] = strings.TrimSpace(broker)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MySQLDSN: getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/market?parseTime=true"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC_NOTIFICATIONS", "market.notifications"),
		UseKafka:     getEnvAsBool("USE_KAFKA", false),

		NotifyWorkers:   getEnvAsInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),

		CheckoutAttempts:   getEnvAsInt("CHECKOUT_ATTEMPTS", 3),
		DeliveryWindowDays: getEnvAsInt("DELIVERY_WINDOW_DAYS", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.ToLower(value) == "true" || value == "1"
}
