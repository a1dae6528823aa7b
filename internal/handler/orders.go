package handler

import (
	"net/http"

	"baklava-be/internal/auth"
	"baklava-be/internal/order"
	"baklava-be/internal/payment"
	"baklava-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type orderResponse struct {
	*order.Order
	PaymentInstructions []string `json:"payment_instructions,omitempty"`
}

func withInstructions(o *order.Order) orderResponse {
	resp := orderResponse{Order: o}
	if o.PaymentStatus == order.PaymentUnpaid && o.Status != order.StatusCancelled {
		resp.PaymentInstructions = payment.InstructionsFor(o)
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.Lang = langOf(r)

	o, err := h.orders.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, withInstructions(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), auth.FromContext(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, withInstructions(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.Cancel(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]order.CancelResult{"result": result})
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var in cartRequest
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkout.CreateSession(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), in.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	conf, err := h.checkout.Confirm(r.Context(), auth.FromContext(r.Context()),
		chi.URLParam(r, "id"), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, conf)
}

// orderFilter reads list filters. user_id is ignored for non-admins by the
// order service.
func orderFilter(r *http.Request) (order.ListFilter, error) {
	var f order.ListFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		s := order.Status(v)
		if err := order.ValidateStatus(s); err != nil {
			return f, err
		}
		f.Status = &s
	}
	if v := q.Get("payment_status"); v != "" {
		ps := order.PaymentStatus(v)
		if err := order.ValidatePaymentStatus(ps); err != nil {
			return f, err
		}
		f.PaymentStatus = &ps
	}
	if v := q.Get("user_id"); v != "" {
		id, err := parseID(v, "user_id")
		if err != nil {
			return f, err
		}
		f.UserID = &id
	}

	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	return f, nil
}
