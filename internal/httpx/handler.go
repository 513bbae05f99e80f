package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/gameshop/internal/checkout"
	"github.com/jcmexdev/gameshop/internal/httpx/middlewares"
	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/paylog"
	"github.com/jcmexdev/gameshop/internal/payment"
	"github.com/jcmexdev/gameshop/internal/webhook"
)

// maxBodySize bounds request bodies, including raw webhook payloads.
const maxBodySize = 1 << 20

// DependencyCheck reports whether a backing dependency is usable right now.
type DependencyCheck func() bool

// Handler carries the wired services behind the HTTP surface.
type Handler struct {
	card       payment.Gateway
	wallet     payment.Gateway
	checkout   *checkout.Orchestrator
	orders     *orders.Service
	reconciler *webhook.Reconciler
	audit      paylog.Repository
	env        string
	deps       map[string]DependencyCheck
}

// NewHandler initializes the handler with its required services.
// audit may be nil (no audit log configured).
func NewHandler(
	card payment.Gateway,
	wallet payment.Gateway,
	orchestrator *checkout.Orchestrator,
	orderSvc *orders.Service,
	reconciler *webhook.Reconciler,
	audit paylog.Repository,
	env string,
	deps map[string]DependencyCheck,
) *Handler {
	if audit == nil {
		audit = paylog.Nop{}
	}
	return &Handler{
		card:       card,
		wallet:     wallet,
		checkout:   orchestrator,
		orders:     orderSvc,
		reconciler: reconciler,
		audit:      audit,
		env:        env,
		deps:       deps,
	}
}

// CreateIntent opens an intent-based charge and hands the client secret back
// for the browser SDK to confirm. The order id returned here is the
// idempotency key the client must finalize under.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	amount := money.New(req.Amount, req.Currency)
	if err := amount.Validate(); err != nil {
		// Rejected before any gateway call.
		writeDomainError(w, err)
		return
	}

	orderID := orders.NewOrderID()
	names := make([]string, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		names = append(names, it.Name)
	}

	charge, err := h.card.CreateCharge(r.Context(), amount, payment.Metadata{
		OrderID:    orderID,
		BuyerEmail: req.CustomerEmail,
		ItemNames:  names,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.record(r, charge.Ref, orderID, paylog.EventIntentCreated, "card "+amount.String())
	slog.InfoContext(r.Context(), "payment intent created", "ref", charge.Ref, "order_id", orderID, "amount", amount.String())

	writeJSON(w, http.StatusOK, CreateIntentResponse{
		ClientSecret: charge.ClientSecret,
		OrderID:      orderID,
	})
}

// CreateWalletOrder opens a redirect-wallet order.
func (h *Handler) CreateWalletOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	amount := money.New(req.Amount, req.Currency)
	if err := amount.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	orderID := orders.NewOrderID()
	names := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		names = append(names, it.Name)
	}

	charge, err := h.wallet.CreateCharge(r.Context(), amount, payment.Metadata{
		OrderID:   orderID,
		ItemNames: names,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.record(r, charge.Ref, orderID, paylog.EventOrderCreated, "paypal "+amount.String())
	slog.InfoContext(r.Context(), "wallet order created", "ref", charge.Ref, "order_id", orderID, "amount", amount.String())

	writeJSON(w, http.StatusOK, CreateWalletOrderResponse{ID: charge.Ref, OrderID: orderID})
}

// CaptureWalletOrder captures a buyer-approved wallet order. Only the
// provider's definitive completed status succeeds; "approved but not
// captured" is not success and no order may be recorded off it.
func (h *Handler) CaptureWalletOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "orderID")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	result, err := h.wallet.FinalizeCharge(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if result.Status != payment.StatusSucceeded {
		writeError(w, http.StatusBadGateway, "unexpected_gateway_status", string(result.Status))
		return
	}

	h.record(r, ref, "", paylog.EventCaptureCompleted, "payer="+result.PayerEmail)
	slog.InfoContext(r.Context(), "wallet order captured", "ref", ref, "payer", result.PayerEmail)

	writeJSON(w, http.StatusOK, CaptureResponse{
		Status:     "COMPLETED",
		OrderID:    ref,
		PayerEmail: result.PayerEmail,
	})
}

// GatewayWebhook feeds raw deliveries to the reconciler. The body is read
// before any JSON handling: the signature covers the exact bytes sent.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body", err.Error())
		return
	}

	err = h.reconciler.Handle(r.Context(), payload, r.Header.Get(webhook.SignatureHeader))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, WebhookAck{Received: true})
	case errors.Is(err, webhook.ErrSecretUnconfigured):
		writeError(w, http.StatusServiceUnavailable, "webhook_unconfigured", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "signature_invalid", err.Error())
	}
}

// SaveOrder finalizes an order from the client success path. Idempotent on
// the order id: a replay (or losing the race against the webhook path)
// returns the stored record unchanged.
func (h *Handler) SaveOrder(w http.ResponseWriter, r *http.Request) {
	buyer, ok := middlewares.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req SaveOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.OrderID == "" || req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "orderId and transactionId are required")
		return
	}
	method := payment.Method(req.Method)
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown payment method")
		return
	}
	amount := money.New(req.Total, req.Currency)
	if err := amount.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	order := &orders.Order{
		OrderID:       req.OrderID,
		BuyerID:       buyer.ID,
		BuyerEmail:    buyer.Email,
		TransactionID: req.TransactionID,
		Method:        method,
		Items:         mapLineItems(req.Items),
		Total:         amount.Minor,
		Currency:      amount.Currency,
	}

	stored, created, err := h.orders.Finalize(r.Context(), order, buyer)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.record(r, stored.TransactionID, stored.OrderID, paylog.EventOrderFinalized, "client path")
	}
	writeJSON(w, status, OrderEnvelope{Order: mapOrderToResponse(stored)})
}

// ListOwnOrders returns the caller's orders.
func (h *Handler) ListOwnOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := middlewares.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	list, err := h.orders.ListForBuyer(r.Context(), buyer.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersEnvelope(list))
}

// ListAllOrders returns every order. Admin only.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := middlewares.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	if !buyer.Admin {
		writeError(w, http.StatusForbidden, "forbidden", "admin role required")
		return
	}

	list, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ordersEnvelope(list))
}

// Health reports liveness plus a flag per backing dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]bool, len(h.deps))
	for name, check := range h.deps {
		deps[name] = check()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
		Env:    h.env,
		Deps:   deps,
	})
}

func ordersEnvelope(list []*orders.Order) OrdersEnvelope {
	out := OrdersEnvelope{Orders: make([]OrderResponse, len(list))}
	for i, o := range list {
		out.Orders[i] = mapOrderToResponse(o)
	}
	return out
}

func (h *Handler) record(r *http.Request, ref, orderID string, typ paylog.EventType, detail string) {
	ctx := r.Context()
	if err := h.audit.Record(ctx, paylog.NewEntry(ctx, ref, orderID, typ, detail)); err != nil {
		slog.ErrorContext(ctx, "payment audit write failed", "type", typ, "error", err)
	}
}
