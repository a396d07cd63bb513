package util

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postboard/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

func NewRabbitMQClient(cfg *config.Config) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
	}, nil
}

// DeclareFanoutQueue declares a durable fanout exchange and binds a fresh
// server-named queue to it. The queue is exclusive to this connection and
// deleted with it, so every connected instance receives every message.
func (r *RabbitMQClient) DeclareFanoutQueue(exchange string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	queue, err := r.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue for %s: %w", exchange, err)
	}
	if err := r.channel.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}
	return queue.Name, nil
}

// Publish sends a persistent JSON message
func (r *RabbitMQClient) Publish(exchange, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// GetChannel returns the underlying channel
func (r *RabbitMQClient) GetChannel() *amqp.Channel {
	return r.channel
}

// IsClosed reports whether the connection has gone away
func (r *RabbitMQClient) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

// Close closes the channel and connection
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
