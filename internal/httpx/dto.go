package httpx

import (
	"time"

	"github.com/jcmexdev/gameshop/internal/checkout"
	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/orders"
)

// Amounts cross the wire in integer minor units; decimal strings appear
// only in display fields.

type LineItemDTO struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

type CreateIntentRequest struct {
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	OrderItems    []LineItemDTO `json:"orderItems"`
	CustomerEmail string        `json:"customerEmail"`
}

type CreateIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      string `json:"orderId"`
}

type CreateWalletOrderRequest struct {
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Items    []LineItemDTO `json:"items"`
}

type CreateWalletOrderResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"`
}

type CaptureResponse struct {
	Status     string `json:"status"`
	OrderID    string `json:"orderId"`
	PayerEmail string `json:"payerEmail,omitempty"`
}

type SaveOrderRequest struct {
	OrderID       string        `json:"orderId"`
	TransactionID string        `json:"transactionId"`
	Items         []LineItemDTO `json:"items"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	Method        string        `json:"method"`
}

type OrderResponse struct {
	OrderID       string        `json:"orderId"`
	BuyerID       string        `json:"buyerId,omitempty"`
	BuyerEmail    string        `json:"buyerEmail,omitempty"`
	TransactionID string        `json:"transactionId"`
	Method        string        `json:"method"`
	Items         []LineItemDTO `json:"items"`
	Total         int64         `json:"total"`
	TotalDisplay  string        `json:"totalDisplay"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type OrderEnvelope struct {
	Order OrderResponse `json:"order"`
}

type OrdersEnvelope struct {
	Orders []OrderResponse `json:"orders"`
}

type BeginCheckoutRequest struct {
	Items    []LineItemDTO `json:"items"`
	Currency string        `json:"currency"`
}

type SelectMethodRequest struct {
	Method      string `json:"method"`
	AcceptTerms bool   `json:"acceptTerms"`
}

type RedirectReturnRequest struct {
	// GatewayRef echoes what the redirect query string claimed; it is only
	// cross-checked, never trusted.
	GatewayRef string `json:"gatewayRef"`
}

type CheckoutSessionResponse struct {
	ID            string        `json:"id"`
	State         string        `json:"state"`
	OrderID       string        `json:"orderId,omitempty"`
	Method        string        `json:"method,omitempty"`
	GatewayRef    string        `json:"gatewayRef,omitempty"`
	ClientSecret  string        `json:"clientSecret,omitempty"`
	Total         int64         `json:"total"`
	TotalDisplay  string        `json:"totalDisplay"`
	Currency      string        `json:"currency"`
	Items         []LineItemDTO `json:"items,omitempty"`
	FailureReason string        `json:"failureReason,omitempty"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type HealthResponse struct {
	Status string          `json:"status"`
	Time   time.Time       `json:"time"`
	Env    string          `json:"env"`
	Deps   map[string]bool `json:"deps"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapLineItems(items []LineItemDTO) []orders.LineItem {
	out := make([]orders.LineItem, len(items))
	for i, it := range items {
		out[i] = orders.LineItem{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	return out
}

func mapLineItemDTOs(items []orders.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, len(items))
	for i, it := range items {
		out[i] = LineItemDTO{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	return out
}

func mapOrderToResponse(o *orders.Order) OrderResponse {
	return OrderResponse{
		OrderID:       o.OrderID,
		BuyerID:       o.BuyerID,
		BuyerEmail:    o.BuyerEmail,
		TransactionID: o.TransactionID,
		Method:        string(o.Method),
		Items:         mapLineItemDTOs(o.Items),
		Total:         o.Total,
		TotalDisplay:  o.Amount().Decimal(),
		Currency:      o.Currency,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
	}
}

func mapSessionToResponse(s *checkout.Session) CheckoutSessionResponse {
	resp := CheckoutSessionResponse{
		ID:            s.ID,
		State:         string(s.State),
		OrderID:       s.OrderID,
		Total:         s.Total(),
		TotalDisplay:  money.New(s.Total(), s.Currency).Decimal(),
		Currency:      s.Currency,
		Items:         mapLineItemDTOs(s.Cart),
		FailureReason: s.FailureReason,
	}
	if s.Attempt != nil {
		resp.Method = string(s.Attempt.Method)
		resp.GatewayRef = s.Attempt.GatewayRef
		resp.ClientSecret = s.Attempt.ClientSecret
	}
	return resp
}
