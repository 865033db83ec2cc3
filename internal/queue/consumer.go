// Package queue contains the background consumer that listens to the
// checkout.completed queue and writes structured audit lines to
// logs/checkout.log.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CheckoutCompletedQueue is the durable queue both the publisher and the
// audit consumer agree on.
const CheckoutCompletedQueue = "checkout.completed"

// StartCheckoutConsumer connects to RabbitMQ at the given URL, declares the
// durable checkout.completed queue, and consumes it forever.  Each message
// becomes one line in logs/checkout.log.  The function runs a reconnect loop
// with capped backoff and never panics; processing errors are logged and the
// offending message is rejected without requeue so the consumer cannot spin
// on a poison message.
func StartCheckoutConsumer(url string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("checkout-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			log.Printf("checkout-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("checkout-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(CheckoutCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(CheckoutCompletedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("checkout-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev CheckoutCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "checkout.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Checkout completed | checkout_id=%s | user_id=%d | event=%q | tier=%q | qty=%d | subtotal=%d | discount=%d | charged=%d | points_used=%d | points_to_earn=%d | session=%s\n",
		ev.CompletedAt, ev.CheckoutID, ev.UserID, ev.EventTitle, ev.TierLabel, ev.Quantity,
		ev.Subtotal, ev.Discount, ev.FinalTotal, ev.PointsRedeemed, ev.PointsToEarn, ev.SessionID)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
