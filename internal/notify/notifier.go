package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// Notifier delivers user-facing withdrawal status messages.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, model.Notification) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.CRC32Balancer{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// KafkaNotifier publishes notifications keyed by user id.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaNotifier(writer messageWriter, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger}
}

type notificationMessage struct {
	UserID       int64   `json:"userId"`
	WithdrawalID string  `json:"withdrawalId"`
	Status       string  `json:"status"`
	Reason       *string `json:"reason,omitempty"`
	Message      string  `json:"message"`
}

func (k *KafkaNotifier) Notify(ctx context.Context, n model.Notification) error {
	msg := notificationMessage{
		UserID:       n.UserID,
		WithdrawalID: n.WithdrawalID.String(),
		Status:       string(n.Status),
		Message:      n.Message,
	}
	if n.Reason != nil {
		reason := string(*n.Reason)
		msg.Reason = &reason
		if msg.Message == "" {
			msg.Message = n.Reason.Message()
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(n.UserID, 10)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	k.logger.Debug("notification published",
		zap.Int64("user_id", n.UserID),
		zap.String("withdrawal_id", msg.WithdrawalID),
		zap.String("status", msg.Status),
	)
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
