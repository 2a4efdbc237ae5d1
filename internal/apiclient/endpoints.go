package apiclient

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"github.com/ariefcatur/go-kiosk/internal/analytics"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
	"github.com/ariefcatur/go-kiosk/internal/checkout"
)

// ---- storefront ----

func (c *Client) StoreCategories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.getJSON(ctx, "/store/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StoreProducts(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.getJSON(ctx, "/store/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- admin metadata ----

func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.getJSON(ctx, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.getJSON(ctx, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- analytics ----

func (c *Client) TimeSeries(ctx context.Context, q analytics.Query) (*analytics.TimeSeries, error) {
	var out analytics.TimeSeries
	if err := c.getJSON(ctx, "/analytics/timeseries", q.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TopProducts(ctx context.Context, q analytics.Query) ([]analytics.TopProduct, error) {
	var out []analytics.TopProduct
	if err := c.getJSON(ctx, "/analytics/top-products", q.RangeValues(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunForecast is a long running write-style call and bypasses the breaker.
// A 400 carries the backend's reason (e.g. not enough history).
func (c *Client) RunForecast(ctx context.Context, req analytics.ForecastRequest) (*analytics.ForecastResult, error) {
	var out analytics.ForecastResult
	if err := c.postJSON(ctx, "/forecast/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- payments ----

func (c *Client) Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	var out checkout.Result
	if err := c.postJSON(ctx, "/payments/checkout", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MockPay marks an order paid. A 2xx answer with success=false is treated
// as a failure.
func (c *Client) MockPay(ctx context.Context, orderID int64) error {
	var out struct {
		Success *bool `json:"success"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("/payments/orders/%d/mock-pay", orderID), nil, &out); err != nil {
		return err
	}
	if out.Success != nil && !*out.Success {
		return fmt.Errorf("%w: mock-pay reported success=false", ErrMalformed)
	}
	return nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID int64) (*checkout.OrderStatus, error) {
	var out checkout.OrderStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/payments/orders/%d/status", orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Receipt struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Receipt downloads the order's PDF receipt.
func (c *Client) Receipt(ctx context.Context, orderID int64) (*Receipt, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/payments/orders/%d/receipt", orderID), nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	body, hdr, err := c.do(req)
	if err != nil {
		return nil, err
	}

	r := &Receipt{
		Body:        body,
		ContentType: hdr.Get("Content-Type"),
		Filename:    fmt.Sprintf("receipt_order_%d.pdf", orderID),
	}
	if r.ContentType == "" {
		r.ContentType = "application/pdf"
	}
	if _, params, err := mime.ParseMediaType(hdr.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		r.Filename = params["filename"]
	}
	return r, nil
}

var (
	_ checkout.Gateway = (*Client)(nil)
	_ catalog.Source   = (*Client)(nil)
)
