package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/orders"
)

const notificationsTopic = "order-notifications"

// event is the message the downstream mailer consumes. Template rendering
// happens in the consumer, not here.
type event struct {
	Kind       string            `json:"kind"` // "buyer" or "operator"
	OrderID    string            `json:"order_id"`
	BuyerEmail string            `json:"buyer_email"`
	BuyerName  string            `json:"buyer_name"`
	Method     string            `json:"method"`
	Total      string            `json:"total"`
	Currency   string            `json:"currency"`
	Items      []orders.LineItem `json:"items"`
	EmittedAt  time.Time         `json:"emitted_at"`
}

// KafkaNotifier publishes notification events to a Kafka topic. Delivery to
// the actual mailboxes is the consumer's problem; publishing is the only
// responsibility here and even that is best-effort.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a notifier publishing to the given brokers.
func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  notificationsTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) NotifyBuyer(ctx context.Context, order *orders.Order, buyer *identity.Identity) error {
	return n.publish(ctx, "buyer", order, buyer)
}

func (n *KafkaNotifier) NotifyOperator(ctx context.Context, order *orders.Order, buyer *identity.Identity) error {
	return n.publish(ctx, "operator", order, buyer)
}

func (n *KafkaNotifier) publish(ctx context.Context, kind string, order *orders.Order, buyer *identity.Identity) error {
	ev := event{
		Kind:      kind,
		OrderID:   order.OrderID,
		Method:    string(order.Method),
		Total:     order.Amount().Decimal(),
		Currency:  order.Currency,
		Items:     order.Items,
		EmittedAt: time.Now().UTC(),
	}
	if buyer != nil {
		ev.BuyerEmail = buyer.Email
		ev.BuyerName = buyer.Name
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode %s event for %s: %w", kind, order.OrderID, err)
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderID),
		Value: raw,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: publish %s event for %s: %w", kind, order.OrderID, err)
	}
	return nil
}

var _ Notifier = (*KafkaNotifier)(nil)
