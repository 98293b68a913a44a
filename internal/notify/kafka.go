package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// MessageWriter описывает используемую часть *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type event struct {
	ID        int64     `json:"id,omitempty"`
	UserID    *int64    `json:"userId,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Global    bool      `json:"global"`
	CreatedAt time.Time `json:"createdAt"`
}

// KafkaSink публикует уведомления в топик Kafka. Ключом сообщения служит идентификатор
// пользователя или "global".
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaSink создаёт канал публикации в Kafka.
func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w, now: time.Now}
}

// NewKafkaWriter создаёт асинхронный writer для топика уведомлений.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// Deliver публикует одно уведомление.
func (k *KafkaSink) Deliver(ctx context.Context, n *model.Notification) error {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = k.now()
	}

	payload, err := json.Marshal(event{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Global:    n.IsGlobal,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	key := "global"
	if n.UserID != nil {
		key = strconv.FormatInt(*n.UserID, 10)
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  createdAt,
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
