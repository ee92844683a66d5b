// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/ArRuslan/ticketer/internal/queue"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher keeps one broker channel open and re-dials it after a failed
// publish.
type Publisher struct {
	dial func() (channel, func(), error)

	mu      sync.Mutex
	ch      channel
	release func()
}

// New returns a Publisher for the broker at url.  No connection is made
// until the first Publish.
func New(url string) *Publisher {
	return &Publisher{dial: func() (channel, func(), error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, func() { _ = conn.Close() }, nil
	}}
}

func (p *Publisher) channel() (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, release, err := p.dial()
	if err != nil {
		return nil, err
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(q.TicketsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		release()
		return nil, err
	}
	p.ch, p.release = ch, release
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.release()
	}
	p.ch, p.release = nil, nil
}

// PublishTicketEvent publishes ev to the tickets.events queue as a
// persistent JSON message with a fresh message id.
func (p *Publisher) PublishTicketEvent(ctx context.Context, ev q.TicketEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		log.Printf("rabbitmq: connect failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.TicketsQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		p.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
