// Package producer publishes ingested restock alerts to a Kafka topic for
// downstream collaborators (notification sender, Discord bot). The real-time
// WebSocket channel is independent of this egress: a Kafka failure never
// fails an ingestion.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// Producer wraps a Kafka writer and publishes restock created events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer with the specified brokers and
// topic. Writes are synchronous with leader acknowledgement, keyed by SKU so
// all restocks of one catalog item land on the same partition.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	// Parse comma-separated broker list
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Try to create topic if it doesn't exist (best effort, may fail silently)
	createTopicIfNotExists(brokerList[0], topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Key-based partitioning (hashes the SKU)
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne, // At-least-once semantics (waits for leader ack)
		Async:        false,            // Synchronous writes for reliability and error handling
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes an alert to JSON and publishes it to Kafka, keyed by SKU.
// Returns an error if serialization or publishing fails.
func (p *Producer) Publish(ctx context.Context, alert *alerts.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		slog.Error("Failed to marshal alert to JSON",
			"alert_id", alert.ID,
			"sku", alert.SKU,
			"error", err,
		)
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.SKU),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "store", Value: []byte(alert.Store)},
			{Key: "source", Value: []byte(alert.Source)},
		},
		Time: alert.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write alert to Kafka",
			"alert_id", alert.ID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write alert to Kafka: %w", err)
	}

	slog.Info("Published restock created event",
		"alert_id", alert.ID,
		"sku", alert.SKU,
		"store", alert.Store,
	)
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}

// createTopicIfNotExists attempts to create the topic on the first broker.
// Failures are logged and ignored; the broker may auto-create topics or the
// topic may already exist.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not dial Kafka to create topic", "broker", broker, "error", err)
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		slog.Warn("Could not resolve Kafka controller", "error", err)
		return
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	if err != nil {
		slog.Warn("Could not dial Kafka controller", "error", err)
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create Kafka topic", "topic", topic, "error", err)
	}
}
