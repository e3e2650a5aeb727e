package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TopicAuthEvents = "auth_events"

	writeTimeout = 5 * time.Second
)

const (
	EventLogin      = "user.login"
	EventRegistered = "user.registered"
	EventRefreshed  = "token.refreshed"
	EventRevoked    = "token.revoked"
	EventLogout     = "user.logout"
)

type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UserID uint      `json:"userId"`
	Role   string    `json:"role,omitempty"`
	Time   time.Time `json:"time"`
}

func NewEvent(eventType string, userID uint, role string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		UserID: userID,
		Role:   role,
		Time:   time.Now().UTC(),
	}
}

type Publisher interface {
	PublishEvent(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// PublishEvent keys messages by user so one user's events stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.UserID), 10)),
		Value: data,
		Time:  e.Time,
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, Event) error { return nil }
func (Nop) Close() error                              { return nil }
