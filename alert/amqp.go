package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPNotifier publishes events to a durable RabbitMQ queue as
// persistent JSON messages. The connection is dialed lazily and redialed
// after a failure.
type AMQPNotifier struct {
	url   string
	queue string
	log   zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPNotifier(url, queue string, log zerolog.Logger) *AMQPNotifier {
	return &AMQPNotifier{url: url, queue: queue, log: log}
}

func (n *AMQPNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channel()
	if err != nil {
		n.log.Error().Err(err).Msg("alert broker unavailable")
		return err
	}

	err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		n.reset()
		n.log.Error().Err(err).Str("kind", ev.Kind).Msg("alert publish failed")
		return err
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
	return nil
}

// channel returns the cached channel, dialing and declaring the queue on
// first use. Caller holds n.mu.
func (n *AMQPNotifier) channel() (*amqp.Channel, error) {
	if n.ch != nil {
		return n.ch, nil
	}

	conn, err := amqp.Dial(n.url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", n.queue, err)
	}

	n.conn, n.ch = conn, ch
	return ch, nil
}

func (n *AMQPNotifier) reset() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}
