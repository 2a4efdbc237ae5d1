package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-kiosk/internal/apiclient"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
	"github.com/ariefcatur/go-kiosk/internal/checkout"
	"github.com/ariefcatur/go-kiosk/internal/idle"
	"github.com/ariefcatur/go-kiosk/internal/kiosk"
)

type ReceiptSource interface {
	Receipt(ctx context.Context, orderID int64) (*apiclient.Receipt, error)
}

// KioskHandler is the API the on-device renderer drives.
type KioskHandler struct {
	Session  *kiosk.Session
	Receipts ReceiptSource
	Timeout  time.Duration
}

func (h *KioskHandler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.getCatalog)

		r.Get("/session", h.getSession)
		r.Post("/session/start", h.startSession)
		r.Post("/session/activity", h.activity)

		r.Post("/cart/items", h.addItem)
		r.Patch("/cart/items/{productID}", h.updateQuantity)
		r.Delete("/cart/items/{productID}", h.removeItem)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/toggle", h.toggleCart)

		r.Post("/checkout", h.beginCheckout)
		r.Delete("/checkout", h.leaveCheckout)
		r.Post("/checkout/pay", h.pay)
		r.Post("/checkout/confirm", h.confirm)
		r.Post("/checkout/sync", h.sync)
		r.Get("/checkout/receipt", h.receipt)
	})
}

func (h *KioskHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

type catalogResp struct {
	Categories       []catalog.Category `json:"categories"`
	Products         []catalog.Product  `json:"products"`
	SelectedCategory int64              `json:"selected_category"`
	Degraded         bool               `json:"degraded,omitempty"`
}

// getCatalog never fails: an unreachable catalog renders as an empty menu.
func (h *KioskHandler) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	snap, err := h.Session.Catalog(ctx)
	selected := catalog.DefaultCategory(snap.Categories)
	if s := r.URL.Query().Get("category_id"); s != "" {
		if id, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			selected = id
		}
	}
	writeJSON(w, http.StatusOK, catalogResp{
		Categories:       snap.Categories,
		Products:         catalog.Filter(snap.Products, selected),
		SelectedCategory: selected,
		Degraded:         err != nil,
	})
}

func (h *KioskHandler) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.View())
}

func (h *KioskHandler) startSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Start())
}

type activityReq struct {
	Event idle.Event `json:"event"`
}

func (h *KioskHandler) activity(w http.ResponseWriter, r *http.Request) {
	var req activityReq
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.Session.Activity(req.Event); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
}

type quantityReq struct {
	Delta int `json:"delta"`
}

func (h *KioskHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	if err := h.Session.AddProduct(ctx, req.ProductID); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Session.View().Cart)
}

func (h *KioskHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req quantityReq
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.Session.UpdateQuantity(id, req.Delta); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.View().Cart)
}

func (h *KioskHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Session.RemoveProduct(id); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.View().Cart)
}

func (h *KioskHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.ClearCart(); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.View().Cart)
}

func (h *KioskHandler) toggleCart(w http.ResponseWriter, r *http.Request) {
	h.Session.ToggleCart()
	writeJSON(w, http.StatusOK, h.Session.View().Cart)
}

type checkoutErrorResp struct {
	ErrorResponse
	Checkout checkout.Snapshot `json:"checkout"`
}

// respondCheckout answers with the snapshot either way so the renderer can
// show the alert and the phase it fell back to.
func respondCheckout(w http.ResponseWriter, snap checkout.Snapshot, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if errors.Is(err, kiosk.ErrNoCheckout) {
		respondErr(w, err)
		return
	}
	status, code, msg := errorStatus(err)
	writeJSON(w, status, checkoutErrorResp{ErrorResponse: ErrorResponse{Error: msg, Code: code}, Checkout: snap})
}

func (h *KioskHandler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Session.BeginCheckout()
	respondCheckout(w, snap, err)
}

func (h *KioskHandler) leaveCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.LeaveCheckout(); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KioskHandler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	snap, err := h.Session.Pay(ctx)
	respondCheckout(w, snap, err)
}

func (h *KioskHandler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	snap, err := h.Session.Confirm(ctx)
	respondCheckout(w, snap, err)
}

func (h *KioskHandler) sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	snap, err := h.Session.Sync(ctx)
	respondCheckout(w, snap, err)
}

// receipt proxies the PDF of ?order_id=, defaulting to the order on screen.
func (h *KioskHandler) receipt(w http.ResponseWriter, r *http.Request) {
	var orderID int64
	if s := r.URL.Query().Get("order_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be positive")
			return
		}
		orderID = id
	} else if v := h.Session.View(); v.Checkout != nil && v.Checkout.Phase == checkout.PhaseSuccess {
		orderID = v.Checkout.OrderID
	}
	if orderID == 0 {
		respondError(w, http.StatusNotFound, "no_receipt", "no paid order to print")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()
	rc, err := h.Receipts.Receipt(ctx, orderID)
	if err != nil {
		respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", rc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rc.Body)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be positive")
		return 0, false
	}
	return id, true
}
