package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher sends JSON messages to a durable topic exchange.
type Publisher struct {
	conn        *amqp091.Connection
	exchange    string
	openChannel func() (channel, error)

	mu sync.Mutex // guards ch; an amqp channel is not safe for concurrent publishes
	ch channel
}

// NewPublisher connects to RabbitMQ and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	p := newPublisher(exchange, func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	})
	p.conn = conn

	if err := p.reopen(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Connected to RabbitMQ, publishing to exchange %s", exchange)
	return p, nil
}

func newPublisher(exchange string, openChannel func() (channel, error)) *Publisher {
	return &Publisher{exchange: exchange, openChannel: openChannel}
}

// reopen replaces the channel and declares the exchange on it.
func (p *Publisher) reopen() error {
	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.ch = ch
	return nil
}

// Publish sends payload as JSON with the given routing key.
// A closed channel is reopened once before giving up.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if err := p.reopen(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
