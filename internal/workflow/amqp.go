package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology used for zip-request events.
const (
	ExchangeName = "ex.leadops.workflow"
	QueueName    = "q.zip-requests"
	RoutingKey   = "zip.requested"
)

// publisher is the subset of *amqp.Channel the trigger needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPTrigger publishes events to RabbitMQ as persistent JSON messages on a
// durable direct exchange.
type AMQPTrigger struct {
	conn *amqp.Connection
	ch   publisher
}

// DialAMQP connects to url and declares the exchange, queue and binding.
func DialAMQP(url string) (*AMQPTrigger, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setupTopology(ch); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	return &AMQPTrigger{conn: conn, ch: ch}, nil
}

func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil)
}

func (t *AMQPTrigger) Name() string { return DriverAMQP }

// ZipRequested publishes ev.
func (t *AMQPTrigger) ZipRequested(ctx context.Context, ev ZipRequestedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = t.ch.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ZipRequestID,
		Timestamp:    ev.RequestedAt,
	})
	if err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	return nil
}

// Close closes the connection and its channels.
func (t *AMQPTrigger) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
