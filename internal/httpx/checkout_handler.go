package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/gameshop/internal/httpx/middlewares"
	"github.com/jcmexdev/gameshop/internal/payment"
)

// BeginCheckout opens a session over a snapshot of the client's cart.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	buyer, ok := middlewares.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req BeginCheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	session, err := h.checkout.Begin(r.Context(), buyer, mapLineItems(req.Items), req.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSessionToResponse(session))
}

// SelectMethod picks a gateway for the session and opens the charge.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req SelectMethodRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	session, err := h.checkout.SelectMethod(r.Context(), chi.URLParam(r, "sessionID"), payment.Method(req.Method), req.AcceptTerms)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSessionToResponse(session))
}

// ConfirmCheckout asks the gateway for a definitive outcome of the live
// attempt. A rejection still returns the session body so the client can show
// the failed attempt and offer a method change.
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.checkout.Confirm(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSessionToResponse(session))
}

// ResumeCheckout resolves a session after the browser comes back from a
// step-up redirect. The gateway ref from the return URL is cross-checked
// only; the outcome comes from re-querying the gateway.
func (h *Handler) ResumeCheckout(w http.ResponseWriter, r *http.Request) {
	var req RedirectReturnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	session, err := h.checkout.ResumeFromRedirect(r.Context(), chi.URLParam(r, "sessionID"), req.GatewayRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSessionToResponse(session))
}

// CancelCheckout abandons the session; the cart is untouched.
func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.checkout.Cancel(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSessionToResponse(session))
}

// GetCheckout returns the current session state.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.checkout.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSessionToResponse(session))
}
