package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// ReminderEvent is the message body published for every reminder.
type ReminderEvent struct {
	EventID string      `json:"event_id"`
	Address string      `json:"address"`
	Kind    domain.Kind `json:"kind"`
	SentAt  time.Time   `json:"sent_at"`
}

// RoutingKey returns the topic a reminder of kind is published under.
func RoutingKey(kind domain.Kind) string {
	return "reminder." + string(kind)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends reminder events to a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // guards ch
	ch       channel
	exchange string
	now      func() time.Time
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return newPublisher(conn, ch, exchange), nil
}

func newPublisher(conn *amqp.Connection, ch channel, exchange string) *Publisher {
	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send implements scheduler.Messenger.
func (p *Publisher) Send(ctx context.Context, address string, kind domain.Kind) error {
	ev := ReminderEvent{
		EventID: uuid.NewString(),
		Address: address,
		Kind:    kind,
		SentAt:  p.now(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    ev.SentAt,
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKey(kind), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
