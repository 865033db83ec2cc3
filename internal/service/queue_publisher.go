// Package queue_publisher delivers domain events to RabbitMQ.  A single
// broker connection is shared across publishes and re-established lazily
// when it drops, so the request path never pays a dial on every event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/evently/checkout-service/internal/queue"
)

// Publisher writes persistent JSON messages to one durable queue.  All
// methods are safe for concurrent use.  Errors are logged and returned;
// callers on the checkout path treat publishing as best effort, since a
// paid checkout must not fail because the broker is down.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher constructs a Publisher for the given broker URL and queue
// name.  No connection is made until the first publish.
func NewPublisher(url, queueName string) *Publisher {
	return &Publisher{url: url, queue: queueName}
}

// PublishCheckoutCompleted marshals the event and publishes it to the
// configured queue.  A publish that hits a dead connection drops the
// connection so the next call redials.
func (p *Publisher) PublishCheckoutCompleted(ctx context.Context, event q.CheckoutCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		log.Printf("rabbitmq: no channel for %s: %v", p.queue, err)
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		log.Printf("rabbitmq: publish to %s failed: %v", p.queue, err)
		p.reset()
		return err
	}
	return nil
}

// channel returns the live channel, dialing and declaring the durable
// queue when none is held.  Caller must hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// reset drops the held connection and channel.  Caller must hold p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
