package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"sprig/config"
)

// AMQPBridge is an optional second ingress: deployments that front the MQTT
// broker with RabbitMQ's MQTT plugin consume the same device messages from
// a durable queue bound to amq.topic. Bodies flow into the identical
// pipeline, keyed by routing key.
type AMQPBridge struct {
	config     *config.Config
	pipeline   *Pipeline
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	reconnect  chan bool
	topicKinds map[string]TopicKind
	isClosing  bool
}

func NewAMQPBridge(cfg *config.Config, pipeline *Pipeline, logger *zap.Logger) (*AMQPBridge, error) {
	bridge := &AMQPBridge{
		config:    cfg,
		pipeline:  pipeline,
		logger:    logger,
		reconnect: make(chan bool),
		// The MQTT plugin maps topic separators to dots in routing keys.
		topicKinds: map[string]TopicKind{
			mqttTopicToRoutingKey(cfg.TopicSensorData):  TopicKindSensorData,
			mqttTopicToRoutingKey(cfg.TopicSensorsData): TopicKindSensorsData,
			mqttTopicToRoutingKey(cfg.TopicStatus):      TopicKindStatus,
			mqttTopicToRoutingKey(cfg.TopicAlerts):      TopicKindAlerts,
		},
	}

	if err := bridge.connect(); err != nil {
		return nil, err
	}

	return bridge, nil
}

func mqttTopicToRoutingKey(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

// connect establishes the connection and declares/binds the ingest queue.
func (b *AMQPBridge) connect() error {
	var err error

	b.logger.Info("Connecting to RabbitMQ", zap.String("url", b.config.RabbitMQURL))

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		b.conn, err = amqp.Dial(b.config.RabbitMQURL)
		if err == nil {
			break
		}

		b.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	b.channel, err = b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err = b.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	queue, err := b.channel.QueueDeclare(
		b.config.RabbitMQQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for routingKey := range b.topicKinds {
		err = b.channel.QueueBind(queue.Name, routingKey, "amq.topic", false, nil)
		if err != nil {
			return fmt.Errorf("bind queue to %q: %w", routingKey, err)
		}
		b.logger.Info("Queue bound to MQTT exchange",
			zap.String("queue", queue.Name),
			zap.String("routing_key", routingKey))
	}

	go b.handleReconnect()

	return nil
}

func (b *AMQPBridge) handleReconnect() {
	for {
		closeErr := <-b.conn.NotifyClose(make(chan *amqp.Error))
		if b.isClosing {
			b.logger.Info("RabbitMQ connection closed gracefully")
			return
		}

		b.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

		for {
			b.logger.Info("Attempting to reconnect to RabbitMQ")
			if err := b.connect(); err == nil {
				b.logger.Info("Reconnected to RabbitMQ")
				b.reconnect <- true
				break
			} else {
				b.logger.Error("Failed to reconnect", zap.Error(err))
				time.Sleep(5 * time.Second)
			}
		}
	}
}

// Consume feeds queued device messages into the pipeline until ctx is
// cancelled.
func (b *AMQPBridge) Consume(ctx context.Context) error {
	for {
		msgs, err := b.channel.Consume(
			b.config.RabbitMQQueue,
			"sprig-ingest",
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("register consumer: %w", err)
		}

		b.logger.Info("Consuming device messages from RabbitMQ",
			zap.String("queue", b.config.RabbitMQQueue))

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				b.logger.Info("Stopping RabbitMQ consumer")
				return nil

			case <-b.reconnect:
				b.logger.Info("Reconnection detected, restarting consumer")
				break consumeLoop

			case msg, ok := <-msgs:
				if !ok {
					b.logger.Warn("Message channel closed")
					time.Sleep(time.Second)
					break consumeLoop
				}

				kind, known := b.topicKinds[msg.RoutingKey]
				if !known {
					b.logger.Warn("Dropping message with unknown routing key",
						zap.String("routing_key", msg.RoutingKey))
					msg.Ack(false) //nolint:errcheck
					continue
				}

				// The pipeline contains its own failures, so every
				// delivery gets acked.
				b.pipeline.Ingest(ctx, kind, msg.Body)
				msg.Ack(false) //nolint:errcheck
			}
		}
	}
}

// Close gracefully closes the RabbitMQ connection.
func (b *AMQPBridge) Close() error {
	b.isClosing = true

	b.logger.Info("Closing RabbitMQ connection")

	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.logger.Error("Error closing channel", zap.Error(err))
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			return err
		}
	}
	return nil
}
