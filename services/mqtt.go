package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"sprig/config"
	"sprig/models"
)

// MQTTService is the device-facing transport: it subscribes the four
// inbound topics and publishes outbound pump commands.
type MQTTService struct {
	client   mqtt.Client
	config   *config.Config
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewMQTTService(cfg *config.Config, pipeline *Pipeline, logger *zap.Logger) *MQTTService {
	s := &MQTTService{
		config:   cfg,
		pipeline: pipeline,
		logger:   logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	// Subscriptions live in OnConnect so they survive reconnects.
	opts.OnConnect = s.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Error("MQTT connection lost", zap.Error(err))
	}

	s.client = mqtt.NewClient(opts)
	return s
}

func (s *MQTTService) Connect() error {
	s.logger.Info("Connecting to MQTT broker",
		zap.String("broker", s.config.MQTTBrokerURL))
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (s *MQTTService) onConnect(client mqtt.Client) {
	s.logger.Info("Connected to MQTT broker",
		zap.String("broker", s.config.MQTTBrokerURL))

	for topic, kind := range s.topicKinds() {
		kind := kind
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			s.pipeline.Ingest(context.Background(), kind, msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			s.logger.Error("Failed to subscribe to topic",
				zap.String("topic", topic),
				zap.Error(token.Error()))
			continue
		}
		s.logger.Info("Subscribed to topic",
			zap.String("topic", topic),
			zap.String("topic_kind", string(kind)))
	}
}

func (s *MQTTService) topicKinds() map[string]TopicKind {
	return map[string]TopicKind{
		s.config.TopicSensorData:  TopicKindSensorData,
		s.config.TopicSensorsData: TopicKindSensorsData,
		s.config.TopicStatus:      TopicKindStatus,
		s.config.TopicAlerts:      TopicKindAlerts,
	}
}

// PublishPumpCommand emits one pump command at QoS 1, bounded by ctx so a
// dead broker degrades to an error instead of hanging the caller.
func (s *MQTTService) PublishPumpCommand(ctx context.Context, cmd models.PumpCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal pump command: %w", err)
	}

	token := s.client.Publish(s.config.TopicPumpControl, 1, false, body)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("publish pump command: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTService) Close() {
	s.logger.Info("Disconnecting from MQTT broker")
	s.client.Disconnect(250)
}
