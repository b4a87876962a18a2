package notification

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/waterreg/registry-server/internal/system/config"
	"github.com/waterreg/registry-server/internal/system/log"
)

// Notifier delivers a decided message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// KafkaNotifier publishes mail events consumed by the mail service.
type KafkaNotifier struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaNotifier creates a synchronous producer for the configured topic.
func NewKafkaNotifier(cfg config.NotificationConfig) *KafkaNotifier {
	transport := &kafka.Transport{}
	if cfg.Kafka.Username != "" {
		transport.SASL = plain.Mechanism{
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
		}
	}
	if cfg.Kafka.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			Transport:    transport,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

// Send publishes msg keyed by its recipient.
func (n *KafkaNotifier) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode mail event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to publish mail event: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier only logs messages. It is used outside production.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "LogNotifier"))}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.WithContext(ctx).Info("Mail suppressed",
		log.String("to", msg.To),
		log.Any("template_id", msg.TemplateID),
		log.Any("model", msg.Model))
	return nil
}

// NewNotifier picks the delivery backend for the environment.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg.IsProduction() && cfg.Notification.Enabled && cfg.Notification.KafkaEnabled() {
		return NewKafkaNotifier(cfg.Notification)
	}
	return NewLogNotifier()
}
