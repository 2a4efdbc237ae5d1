package httpx

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-kiosk/internal/analytics"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
)

// AdminAPI is the part of the commerce API behind the analytics pages.
type AdminAPI interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	Products(ctx context.Context) ([]catalog.Product, error)
	TimeSeries(ctx context.Context, q analytics.Query) (*analytics.TimeSeries, error)
	TopProducts(ctx context.Context, q analytics.Query) ([]analytics.TopProduct, error)
	RunForecast(ctx context.Context, req analytics.ForecastRequest) (*analytics.ForecastResult, error)
}

type AdminHandler struct {
	API     AdminAPI
	Gate    *analytics.Gate
	Timeout time.Duration
	Now     func() time.Time
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/unlock", h.unlock)

		r.Group(func(r chi.Router) {
			r.Use(h.requireToken)
			r.Get("/categories", h.categories)
			r.Get("/products", h.products)
			r.Get("/analytics/timeseries", h.timeseries)
			r.Get("/analytics/top-products", h.topProducts)
			r.Get("/analytics/export.csv", h.exportCSV)
			r.Post("/forecast", h.forecast)
		})
	})
}

// requireToken checks the Bearer token issued by /admin/unlock.
func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
			return
		}
		if err := h.Gate.Verify(parts[1]); err != nil {
			respondErr(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type unlockReq struct {
	PIN string `json:"pin"`
}

type unlockResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AdminHandler) unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockReq
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	token, exp, err := h.Gate.Unlock(req.PIN)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unlockResp{Token: token, ExpiresAt: exp})
}

// Metadata lists feed the filter dropdowns; a failure degrades to an empty
// list instead of breaking the page.
func (h *AdminHandler) categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	cats, err := h.API.Categories(ctx)
	if err != nil {
		log.Printf("admin categories: %v", err)
		cats = []catalog.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *AdminHandler) products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	prods, err := h.API.Products(ctx)
	if err != nil {
		log.Printf("admin products: %v", err)
		prods = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, prods)
}

type rangeResp struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type timeseriesResp struct {
	Current       *analytics.TimeSeries    `json:"current"`
	Previous      *analytics.TimeSeries    `json:"previous,omitempty"`
	PreviousRange *rangeResp               `json:"previous_range,omitempty"`
	Overlay       []analytics.OverlayPoint `json:"overlay,omitempty"`
}

// timeseries returns the selected period; with compare=1 it also fetches the
// preceding period of equal length and overlays the two.
func (h *AdminHandler) timeseries(w http.ResponseWriter, r *http.Request) {
	q, err := analytics.ParseQuery(r.URL.Query(), h.now())
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	cur, err := h.API.TimeSeries(ctx, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	resp := timeseriesResp{Current: cur}

	if r.URL.Query().Get("compare") == "1" {
		pq := q.Previous()
		resp.PreviousRange = &rangeResp{Start: pq.Start.Format(analytics.DateLayout), End: pq.End.Format(analytics.DateLayout)}
		prev, err := h.API.TimeSeries(ctx, pq)
		if err != nil {
			log.Printf("previous period %s..%s: %v", resp.PreviousRange.Start, resp.PreviousRange.End, err)
		} else {
			resp.Previous = prev
			resp.Overlay = analytics.Overlay(cur.Series, prev.Series)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) topProducts(w http.ResponseWriter, r *http.Request) {
	q, err := analytics.ParseQuery(r.URL.Query(), h.now())
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	top, err := h.API.TopProducts(ctx, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	if top == nil {
		top = []analytics.TopProduct{}
	}
	writeJSON(w, http.StatusOK, top)
}

func (h *AdminHandler) exportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := analytics.ParseQuery(r.URL.Query(), h.now())
	if err != nil {
		respondErr(w, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	ts, err := h.API.TimeSeries(ctx, q)
	if err != nil {
		respondErr(w, err)
		return
	}
	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, q.Metric, ts.Series); err != nil {
		respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", analytics.CSVFilename(q.Metric, q.Start, q.End)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type forecastReq struct {
	Metric     string `json:"metric"`
	Freq       string `json:"freq"`
	Start      string `json:"start"`
	End        string `json:"end"`
	CategoryID int64  `json:"category_id"`
	ProductID  int64  `json:"product_id"`
	Model      string `json:"model"`
	Horizon    int    `json:"horizon"`
}

type forecastResp struct {
	Request analytics.ForecastRequest `json:"request"`
	Result  *analytics.ForecastResult `json:"result"`
	Chart   []analytics.ChartPoint    `json:"chart"`
}

func (h *AdminHandler) forecast(w http.ResponseWriter, r *http.Request) {
	var req forecastReq
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Model != "" && !analytics.ValidModel(req.Model) {
		respondError(w, http.StatusBadRequest, "invalid_model", fmt.Sprintf("unknown model %q", req.Model))
		return
	}
	q, err := analytics.ParseQuery(toValues(req), h.now())
	if err != nil {
		respondErr(w, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	fr := analytics.NewForecastRequest(q, req.Model, req.Horizon)
	res, err := h.API.RunForecast(ctx, fr)
	if err != nil {
		respondErr(w, err)
		return
	}

	resp := forecastResp{Request: fr, Result: res, Chart: []analytics.ChartPoint{}}
	hist, err := h.API.TimeSeries(ctx, q)
	if err != nil {
		log.Printf("forecast history: %v", err)
	} else if chart := analytics.ForecastChart(hist.Series, res.ForecastSeries); chart != nil {
		resp.Chart = chart
	}
	writeJSON(w, http.StatusOK, resp)
}

func toValues(req forecastReq) url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v[k] = []string{s}
		}
	}
	set("metric", req.Metric)
	set("freq", req.Freq)
	set("start", req.Start)
	set("end", req.End)
	if req.CategoryID != 0 {
		set("category_id", fmt.Sprint(req.CategoryID))
	}
	if req.ProductID != 0 {
		set("product_id", fmt.Sprint(req.ProductID))
	}
	return v
}
