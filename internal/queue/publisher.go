package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
)

// Publisher sends domain events to RabbitMQ.  It dials per publish, which
// keeps it free of connection state; booking volume is low enough for that.
type Publisher struct {
	url   string
	queue string
	log   logger.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log logger.Logger) *Publisher {
	return &Publisher{url: url, queue: SeatsBookedQueue, log: log}
}

// PublishSeatsBooked publishes ev to the seats.booked queue as a persistent
// JSON message.  Errors are logged and returned so the caller can decide to
// ignore them.
func (p *Publisher) PublishSeatsBooked(ctx context.Context, ev SeatsBookedEvent) error {
	conn, err := dialContext(ctx, p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", "error", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", "queue", p.queue, "error", err)
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.MessageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", "queue", p.queue, "message_id", ev.MessageID, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// dialTimeout bounds the connection and handshake when ctx has no deadline.
const dialTimeout = 5 * time.Second

// dialContext opens a broker connection whose TCP dial and AMQP handshake
// both end at ctx's deadline.  amqp.Dial would wait up to 30s on an
// unreachable broker regardless of ctx.
func dialContext(ctx context.Context, url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			deadline, ok := ctx.Deadline()
			if !ok {
				deadline = time.Now().Add(dialTimeout)
			}
			// cleared by the client once the handshake completes
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	})
}
