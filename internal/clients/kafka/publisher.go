package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
)

type Config struct {
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes domain events as JSON, keyed by customer id so one customer's
// events stay in one partition.
type Publisher struct {
	log     *logger.Logger
	topic   string
	timeout time.Duration

	mu     sync.Mutex
	w      writer
	closed bool
}

func NewPublisher(log *logger.Logger, cfg Config) (*Publisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = "custrisk.events"
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(log, w, topic, cfg.Timeout), nil
}

func newPublisher(log *logger.Logger, w writer, topic string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		log:     log.With("service", "KafkaEventPublisher"),
		topic:   topic,
		timeout: timeout,
		w:       w,
	}
}

func (p *Publisher) Publish(ctx context.Context, ev types.Event) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}
	msg := kafkago.Message{
		Key:   []byte(ev.CustomerID.String()),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "entity_id", Value: []byte(ev.EntityID.String())},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: ev.OccurredAt,
	}

	p.mu.Lock()
	w, closed := p.w, p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("kafka publisher closed")
	}

	// Writes are detached from request cancellation.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := w.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	p.log.Debug("event published", "topic", p.topic, "event", ev.Type, "customer_id", ev.CustomerID, "bytes", len(payload))
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.w.Close()
}
