package util

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrRabbitMQClosed = errors.New("rabbitmq connection closed")

// RabbitMQClient owns one connection and one publishing channel.
// amqp channels are not safe for concurrent publishing, so Publish serializes on mu.
type RabbitMQClient struct {
	url  string
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	c := &RabbitMQClient{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	c.conn = conn
	c.ch = ch
	return nil
}

// DeclareTopicExchange makes sure a durable topic exchange exists.
func (c *RabbitMQClient) DeclareTopicExchange(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return ErrRabbitMQClosed
	}
	return c.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// Publish sends a persistent JSON message. A dropped connection is re-dialed once.
func (c *RabbitMQClient) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connect(); err != nil {
			return err
		}
	}

	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (c *RabbitMQClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
