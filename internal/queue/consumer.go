package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventLogFile is the file, inside the configured directory, that the
// consumer appends reservation events to.
const EventLogFile = "reservations.log"

// EventLog appends one human-readable line per reservation event.
type EventLog struct {
	dir string
	mu  sync.Mutex
}

// NewEventLog returns an EventLog writing under dir.
func NewEventLog(dir string) *EventLog {
	if dir == "" {
		dir = "logs"
	}
	return &EventLog{dir: dir}
}

// Path returns the full path of the log file.
func (l *EventLog) Path() string { return filepath.Join(l.dir, EventLogFile) }

// Handle decodes a message body and appends it to the log.
func (l *EventLog) Handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return errors.New("event without type or reservation id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single log line ending in a newline.
func FormatEvent(ev ReservationEvent) string {
	table := "none"
	if ev.TableID != nil {
		table = fmt.Sprint(*ev.TableID)
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | restaurant_id=%d | table_id=%s | slot=%s %s | party_size=%d | status=%s\n",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.UserID, ev.RestaurantID, table, ev.Date, ev.Time, ev.PartySize, ev.Status)
}

// StartReservationConsumer connects to RabbitMQ, declares the durable
// reservation events queue and hands every delivery to sink. It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// done. A message sink rejects is dropped without requeue so a poison
// message cannot loop.
func StartReservationConsumer(ctx context.Context, url string, sink *EventLog, logger *log.Logger) error {
	if logger == nil {
		logger = log.New("events")
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warnf("reservation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, sink, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warnf("reservation-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink *EventLog, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warnf("reservation-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(ReservationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, ReservationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := sink.Handle(d.Body); err != nil {
			logger.Errorf("reservation-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
