package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ahinestrog/mypos/internal/checkout"
)

// Publisher sends a JSON message to a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *Rabbit) PublishJSON(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Notifier announces committed transactions. With a nil publisher it does
// nothing, so the cashier runs without a broker.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier { return &Notifier{pub: pub} }

// Resync publishes the completed transaction and the stock movement it
// caused.
func (n *Notifier) Resync(ctx context.Context, r checkout.Receipt) error {
	if n == nil || n.pub == nil {
		return nil
	}
	return errors.Join(
		n.pub.PublishJSON(ctx, RKTransactionCompleted, completedPayload(r)),
		n.pub.PublishJSON(ctx, RKInventoryResyncRequired, resyncPayload(r)),
	)
}
