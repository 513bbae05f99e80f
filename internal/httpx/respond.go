package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jcmexdev/gameshop/internal/checkout"
	"github.com/jcmexdev/gameshop/internal/money"
	"github.com/jcmexdev/gameshop/internal/orders"
	"github.com/jcmexdev/gameshop/internal/payment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. The one case
// that must never be blurred: a recording failure after a captured charge is
// not a payment failure, and the response says so explicitly.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, money.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, orders.ErrRecordingFailed):
		writeError(w, http.StatusBadGateway, "order_recording_failed",
			"payment captured, order recording failed — contact support")
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "checkout_not_found", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "login_required", err.Error())
	case errors.Is(err, checkout.ErrTermsNotAccepted):
		writeError(w, http.StatusBadRequest, "terms_not_accepted", err.Error())
	case errors.Is(err, checkout.ErrUnknownMethod):
		writeError(w, http.StatusBadRequest, "unknown_method", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrNoLiveAttempt),
		errors.Is(err, checkout.ErrRefMismatch):
		writeError(w, http.StatusConflict, "checkout_conflict", err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusServiceUnavailable, "gateway_unavailable", err.Error())
	case errors.Is(err, payment.ErrGatewayRejected):
		writeError(w, http.StatusPaymentRequired, "payment_rejected", err.Error())
	case errors.Is(err, payment.ErrGatewayAmbiguous):
		writeError(w, http.StatusConflict, "payment_pending_resolution", err.Error())
	case errors.Is(err, payment.ErrUnexpectedStatus):
		writeError(w, http.StatusBadGateway, "unexpected_gateway_status", err.Error())
	case errors.Is(err, payment.ErrGatewayError):
		writeError(w, http.StatusBadGateway, "gateway_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
