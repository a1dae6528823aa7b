package handler

import (
	"net/http"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/order"
	"baklava-be/internal/product"
	"baklava-be/internal/storage"
	"baklava-be/internal/user"
	"baklava-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type docsRequest struct {
	Message string `json:"message"`
}

// ---- users ----

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	var f user.ListFilter
	if v := r.URL.Query().Get("status"); v != "" {
		s := auth.ApprovalStatus(v)
		if !s.Valid() {
			writeError(w, r, user.ErrInvalidApprovalStatus)
			return
		}
		f.Status = &s
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Page, err = queryInt(r, "page"); err != nil {
		writeError(w, r, err)
		return
	}

	users, err := h.users.List(r.Context(), auth.FromContext(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) adminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.Get(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) adminSetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in user.ApprovalInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.SetApproval(r.Context(), auth.FromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) adminRequestDocs(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in docsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.RequestDocuments(r.Context(), auth.FromContext(r.Context()), id, in.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) adminResendDocRequests(w http.ResponseWriter, r *http.Request) {
	res, err := h.users.ResendPendingDocumentRequests(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// ---- orders ----

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	h.listOrders(w, r)
}

func (h *Handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in order.StatusUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) adminOrderEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Events(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, events)
}

// ---- products ----

func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.AdminList(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+(1<<10))
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		writeError(w, r, apperror.Validation("image", "image must be a multipart upload of at most 5 MB"))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperror.Validation("image", "image file is required"))
		return
	}
	defer file.Close()

	p, err := h.products.UploadImage(r.Context(), auth.FromContext(r.Context()),
		chi.URLParam(r, "id"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, p)
}

// ---- metrics ----

func (h *Handler) adminMetrics(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.counters.Snapshot())
}
