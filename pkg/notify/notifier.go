// Package notify publishes operator alerts to an AMQP exchange. A separate
// consumer turns them into email or chat messages.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const routingKey = "operator.alert"

type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

type Message struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sentAt"`
}

type amqpNotifier struct {
	conn     *amqp.Connection
	exchange string
}

func NewAMQPNotifier(conn *amqp.Connection, exchange string) Notifier {
	return &amqpNotifier{
		conn:     conn,
		exchange: exchange,
	}
}

func (n *amqpNotifier) Send(ctx context.Context, subject, body string) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	payload, err := json.Marshal(Message{
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("subject", subject).Msg("operator notification dispatched")
	return nil
}
