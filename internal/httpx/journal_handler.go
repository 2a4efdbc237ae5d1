package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-kiosk/internal/journal"
)

type JournalReader interface {
	Recent(ctx context.Context, kioskID string, limit int) ([]journal.Entry, error)
}

// JournalHandler exposes the recorded orders for back-office reconciliation.
type JournalHandler struct {
	Repo JournalReader
}

func (h *JournalHandler) Register(r chi.Router) {
	r.Get("/orders/recent", h.recent)
}

func (h *JournalHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := h.Repo.Recent(r.Context(), r.URL.Query().Get("kiosk_id"), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
