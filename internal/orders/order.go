// Package orders holds the durable order record and the idempotent
// finalization service. The order id doubles as the idempotency key: the
// client checkout path and the webhook reconciler may both try to finalize
// the same payment, and the store's insert-or-return-existing semantics are
// the only synchronization between them.
package orders

import (
	"time"

	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// Status is the fulfilment state of an order. Delivery of account
// credentials is manual, so orders are recorded fulfilled.
type Status string

const (
	StatusFulfilled Status = "fulfilled"
)

// LineItem is a purchase-time snapshot of a cart line. Catalog price changes
// never alter historical orders.
type LineItem struct {
	Name      string `bson:"name" json:"name"`
	UnitPrice int64  `bson:"unit_price" json:"unitPrice"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// Order is the durable record of a finalized purchase. Immutable once written.
type Order struct {
	// OrderID is the human-readable identifier ("ORD-AB12CD") and the
	// idempotency key. Globally unique.
	OrderID string `bson:"order_id" json:"orderId"`
	// BuyerID references the identity that paid.
	BuyerID    string `bson:"buyer_id" json:"buyerId"`
	BuyerEmail string `bson:"buyer_email" json:"buyerEmail"`
	// TransactionID is the gateway's opaque charge reference.
	TransactionID string         `bson:"transaction_id" json:"transactionId"`
	Method        payment.Method `bson:"method" json:"method"`
	Items         []LineItem     `bson:"items" json:"items"`
	// Total is in minor units; Currency is the lower-case ISO code.
	Total     int64     `bson:"total" json:"total"`
	Currency  string    `bson:"currency" json:"currency"`
	Status    Status    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Amount returns the order total as a money.Amount.
func (o *Order) Amount() money.Amount {
	return money.New(o.Total, o.Currency)
}
