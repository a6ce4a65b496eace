// Package rabbit publishes rating events to a RabbitMQ topic exchange so
// analytics consumers can follow question feedback.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quiz-agent-service/internal/domain"
)

// RatedRoutingKey is the routing key of rating events.
const RatedRoutingKey = "question.rated"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends one message per rating. Channels are not safe for
// concurrent publishing, so sends are serialised.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch channel
}

// Dial connects and declares a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{exchange: exchange, ch: ch}
}

func (p *Publisher) Name() string { return "rabbitmq" }

// Record publishes r as JSON under RatedRoutingKey.
func (p *Publisher) Record(ctx context.Context, r domain.Rating) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode rating: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    r.ID,
		Body:         body,
		Headers: amqp.Table{
			"question_id": r.QuestionID,
			"session_id":  r.SessionID,
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RatedRoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish rating: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
