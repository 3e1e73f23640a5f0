package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp091.Channel the AMQP mailer uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPMailer hands messages to a notification worker through RabbitMQ.
type AMQPMailer struct {
	publisher  Publisher
	exchange   string
	routingKey string
	now        func() time.Time
}

func NewAMQPMailer(publisher Publisher, exchange, routingKey string) *AMQPMailer {
	return &AMQPMailer{publisher: publisher, exchange: exchange, routingKey: routingKey, now: time.Now}
}

func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mail: encode message: %w", err)
	}

	err = m.publisher.PublishWithContext(ctx, m.exchange, m.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    m.now(),
		Type:         msg.Template,
	})
	if err != nil {
		return fmt.Errorf("mail: publish: %w", err)
	}
	return nil
}

// DialAMQP opens a connection and channel and declares a durable queue bound
// to routingKey on exchange.
func DialAMQP(url, exchange, routingKey string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
		}
	}
	q, err := ch.QueueDeclare(routingKey, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if exchange != "" {
		if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}
	return conn, ch, nil
}
