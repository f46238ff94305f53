package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-reservation/internal/queue"
)

// EventPublisher publishes reservation events to RabbitMQ. The connection
// is opened lazily and reused; a broken connection is dropped and redialed
// on the next publish. Failures are logged and returned so the caller can
// choose to ignore them. Messages are marked as persistent.
type EventPublisher struct {
	url    string
	logger *log.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewEventPublisher returns a publisher for the broker at url.
func NewEventPublisher(url string, logger *log.Logger) *EventPublisher {
	if logger == nil {
		logger = log.New("events")
	}
	return &EventPublisher{url: url, logger: logger}
}

// Publish sends ev to the reservation events queue.
func (p *EventPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.logger.Warnf("rabbitmq: connect failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                     // default exchange
		queue.ReservationQueue, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		pub,
	); err != nil {
		p.logger.Warnf("rabbitmq: publish %s failed: %v", ev.Type, err)
		p.reset()
		return err
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel, dialing when needed. p.mu must be held.
func (p *EventPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := declareReservationQueue(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *EventPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declareReservationQueue makes sure the durable queue exists.
func declareReservationQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		queue.ReservationQueue, // name
		true,                   // durable
		false,                  // autoDelete
		false,                  // exclusive
		false,                  // noWait
		nil,                    // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	return nil
}
