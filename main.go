package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sprig/api"
	"sprig/config"
	"sprig/log"
	"sprig/services"
	"sprig/storage"
	"sprig/storage/migrations"
)

func main() {
	// Initialize structured logger
	logger := log.GetInstance()
	defer logger.Sync() //nolint:errcheck

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open storage and apply migrations
	db, err := storage.Open(ctx, cfg.SQLiteDir)
	if err != nil {
		logger.Fatal("Failed to open sqlite database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := storage.Migrate(db, migrations.FS); err != nil {
		logger.Fatal("Failed to migrate sqlite database", zap.Error(err))
	}

	deviceStore := storage.NewDeviceStore(db)
	readingStore := storage.NewReadingStore(db)

	// Real-time fanout hub
	hub := services.NewHub(logger)
	go hub.Run(ctx)

	// Notification gateway: email always, Telegram when configured
	var channels []services.Notifier
	if cfg.EmailUser != "" && cfg.EmailRecipient != "" {
		channels = append(channels, services.NewEmailNotifier(cfg, logger))
	} else {
		logger.Warn("Email notifications disabled: EMAIL_USER or EMAIL_RECIPIENT not set")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		telegram, err := services.NewTelegramNotifier(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
		channels = append(channels, telegram)
	}
	notifier := services.NewMultiNotifier(logger, channels...)

	// Ingestion pipeline
	pipeline := services.NewPipeline(deviceStore, readingStore, hub, notifier, logger)

	// MQTT transport: inbound device topics + outbound pump commands
	mqttService := services.NewMQTTService(cfg, pipeline, logger)
	if err := mqttService.Connect(); err != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttService.Close()

	// Command dispatcher, wired back into the hub for controlPump intents
	dispatcher := services.NewDispatcher(deviceStore, mqttService, hub,
		time.Duration(cfg.PublishTimeoutSeconds)*time.Second, logger)
	hub.SetPumpController(dispatcher)

	// Optional RabbitMQ ingress bridge
	if cfg.RabbitMQURL != "" {
		bridge, err := services.NewAMQPBridge(cfg, pipeline, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ bridge", zap.Error(err))
		}
		defer bridge.Close() //nolint:errcheck
		go func() {
			if err := bridge.Consume(ctx); err != nil {
				logger.Error("RabbitMQ consumer stopped", zap.Error(err))
			}
		}()
	}

	// Device liveness monitor
	liveness := services.NewLivenessMonitor(deviceStore, hub,
		time.Duration(cfg.LivenessIntervalSeconds)*time.Second,
		time.Duration(cfg.OfflineAfterSeconds)*time.Second,
		logger)
	go liveness.Start(ctx)

	// HTTP server: REST control surface + websocket endpoint
	handler := api.NewHandler(deviceStore, readingStore, dispatcher, hub, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("Sprig irrigation service started",
		zap.String("mqtt_broker", cfg.MQTTBrokerURL),
		zap.String("topic_sensor_data", cfg.TopicSensorData),
		zap.String("topic_sensors_data", cfg.TopicSensorsData),
		zap.String("topic_status", cfg.TopicStatus),
		zap.String("topic_alerts", cfg.TopicAlerts),
		zap.String("topic_pump_control", cfg.TopicPumpControl))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Sprig irrigation service stopped")
}
