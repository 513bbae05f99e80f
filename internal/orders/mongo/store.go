// Package mongo implements orders.Store on a MongoDB collection.
//
// Idempotency relies on a unique index over order_id: the first writer's
// InsertOne wins and the loser's duplicate-key error is folded into the
// "already applied" case by re-reading the stored document. That makes the
// client finalization path and the webhook reconciler safe to race.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcmexdev/gameshop/internal/orders"
)

const collectionName = "orders"

// Store is the MongoDB-backed orders.Store.
type Store struct {
	collection *mongo.Collection
}

// NewStore wraps the orders collection of the given database.
func NewStore(db *mongo.Database) *Store {
	return &Store{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique order_id index the idempotency contract
// depends on, plus the buyer listing index. Call once at startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo: create order indexes: %w", err)
	}
	return nil
}

// CreateOrder inserts the order or, when a record with the same order id
// already exists, returns the existing record unchanged.
func (s *Store) CreateOrder(ctx context.Context, order *orders.Order) (*orders.Order, bool, error) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err := s.collection.InsertOne(ctx, order)
	if err == nil {
		cp := *order
		return &cp, true, nil
	}

	if mongo.IsDuplicateKeyError(err) {
		existing, getErr := s.GetOrder(ctx, order.OrderID)
		if getErr != nil {
			return nil, false, fmt.Errorf("mongo: order %q lost insert race and re-read failed: %w", order.OrderID, getErr)
		}
		return existing, false, nil
	}

	return nil, false, fmt.Errorf("mongo: insert order %q: %w", order.OrderID, err)
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	var order orders.Order
	err := s.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orders.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: get order %q: %w", orderID, err)
	}
	return &order, nil
}

func (s *Store) ListOrdersForBuyer(ctx context.Context, buyerID string) ([]*orders.Order, error) {
	return s.list(ctx, bson.M{"buyer_id": buyerID})
}

func (s *Store) ListAllOrders(ctx context.Context) ([]*orders.Order, error) {
	return s.list(ctx, bson.M{})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]*orders.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list orders: %w", err)
	}
	defer cur.Close(ctx)

	var out []*orders.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decode orders: %w", err)
	}
	return out, nil
}

var _ orders.Store = (*Store)(nil)
