package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// MQTT broker and topics
	MQTTBrokerURL    string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	TopicSensorData  string
	TopicSensorsData string
	TopicStatus      string
	TopicAlerts      string
	TopicPumpControl string

	// Optional RabbitMQ bridge (MQTT plugin via amq.topic)
	RabbitMQURL   string
	RabbitMQQueue string

	// HTTP server
	HTTPPort int

	// SQLite storage
	SQLiteDir string

	// Email notifications
	EmailHost      string
	EmailPort      int
	EmailUser      string
	EmailPass      string
	EmailRecipient string

	// Telegram notifications
	TelegramBotToken string
	TelegramChatID   string

	// Device liveness
	OfflineAfterSeconds     int
	LivenessIntervalSeconds int

	// Alert throttling per device
	AlertThrottleSeconds int

	// Outbound command publish timeout
	PublishTimeoutSeconds int
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		MQTTBrokerURL:    getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:     getEnv("MQTT_CLIENT_ID", "sprig-server"),
		MQTTUsername:     getEnv("MQTT_USERNAME", ""),
		MQTTPassword:     getEnv("MQTT_PASSWORD", ""),
		TopicSensorData:  getEnv("MQTT_TOPIC_SENSOR_DATA", "irrigation/sensor-data"),
		TopicSensorsData: getEnv("MQTT_TOPIC_SENSORS_DATA", "sensors/data"),
		TopicStatus:      getEnv("MQTT_TOPIC_STATUS", "irrigation/status"),
		TopicAlerts:      getEnv("MQTT_TOPIC_ALERTS", "sensors/alerts"),
		TopicPumpControl: getEnv("MQTT_TOPIC_PUMP_CONTROL", "irrigation/pump-control"),

		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue: getEnv("RABBITMQ_QUEUE", "sprig_ingest"),

		HTTPPort: getEnvInt("HTTP_PORT", 3000),

		SQLiteDir: getEnv("SQLITE_DIR", "data"),

		EmailHost:      getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:      getEnvInt("EMAIL_PORT", 587),
		EmailUser:      getEnv("EMAIL_USER", ""),
		EmailPass:      getEnv("EMAIL_PASS", ""),
		EmailRecipient: getEnv("EMAIL_RECIPIENT", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		OfflineAfterSeconds:     getEnvInt("OFFLINE_AFTER_SECONDS", 120),
		LivenessIntervalSeconds: getEnvInt("LIVENESS_INTERVAL_SECONDS", 30),

		AlertThrottleSeconds: getEnvInt("ALERT_THROTTLE_SECONDS", 300),

		PublishTimeoutSeconds: getEnvInt("PUBLISH_TIMEOUT_SECONDS", 5),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

