package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kiosk/internal/analytics"
	"github.com/ariefcatur/go-kiosk/internal/apiclient"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
)

type fakeAdminAPI struct {
	queries     []analytics.Query
	forecasts   []analytics.ForecastRequest
	forecastErr error
	catErr      error
}

func (f *fakeAdminAPI) Categories(context.Context) ([]catalog.Category, error) {
	if f.catErr != nil {
		return nil, f.catErr
	}
	return []catalog.Category{{ID: 1, Name: "Coffee"}}, nil
}

func (f *fakeAdminAPI) Products(context.Context) ([]catalog.Product, error) {
	return []catalog.Product{{ID: 10, CategoryID: 1, Name: "Latte", Price: 350}}, nil
}

func (f *fakeAdminAPI) TimeSeries(_ context.Context, q analytics.Query) (*analytics.TimeSeries, error) {
	f.queries = append(f.queries, q)
	return &analytics.TimeSeries{
		Series: []analytics.Point{
			{DS: q.Start.Format(analytics.DateLayout), Y: 1000},
			{DS: q.End.Format(analytics.DateLayout), Y: 2050},
		},
		Summary: analytics.Summary{Total: 3050},
	}, nil
}

func (f *fakeAdminAPI) TopProducts(context.Context, analytics.Query) ([]analytics.TopProduct, error) {
	return []analytics.TopProduct{{ProductName: "Latte", Qty: 12, Revenue: 4200}}, nil
}

func (f *fakeAdminAPI) RunForecast(_ context.Context, req analytics.ForecastRequest) (*analytics.ForecastResult, error) {
	f.forecasts = append(f.forecasts, req)
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return &analytics.ForecastResult{
		ModelInfo: req.Model,
		ForecastSeries: []analytics.ForecastPoint{
			{Date: "2024-01-11", YHat: 2100},
			{Date: "2024-01-12", YHat: 2200},
		},
	}, nil
}

type adminEnv struct {
	srv *httptest.Server
	api *fakeAdminAPI
}

var adminNow = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

func newAdminEnv(t *testing.T) *adminEnv {
	e := &adminEnv{api: &fakeAdminAPI{}}
	r := chi.NewRouter()
	(&AdminHandler{
		API:  e.api,
		Gate: analytics.NewGate("2468", "", "test-secret", time.Hour),
		Now:  func() time.Time { return adminNow },
	}).Register(r)
	e.srv = httptest.NewServer(r)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *adminEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *adminEnv) unlock(t *testing.T) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/admin/unlock", "", map[string]string{"pin": "2468"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[unlockResp](t, resp)
	require.NotEmpty(t, got.Token)
	return got.Token
}

func TestAdmin_UnlockAndGuard(t *testing.T) {
	e := newAdminEnv(t)

	resp := e.request(t, http.MethodPost, "/admin/unlock", "", map[string]string{"pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "wrong_pin", decode[ErrorResponse](t, resp).Code)

	resp = e.request(t, http.MethodGet, "/admin/categories", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.request(t, http.MethodGet, "/admin/categories", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := e.unlock(t)
	resp = e.request(t, http.MethodGet, "/admin/categories", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]catalog.Category](t, resp), 1)
}

func TestAdmin_MetadataDegradesToEmpty(t *testing.T) {
	e := newAdminEnv(t)
	e.api.catErr = apiclient.ErrTransport
	token := e.unlock(t)

	resp := e.request(t, http.MethodGet, "/admin/categories", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]catalog.Category](t, resp))

	resp = e.request(t, http.MethodGet, "/admin/products", token, nil)
	assert.Len(t, decode[[]catalog.Product](t, resp), 1)
}

func TestAdmin_TimeSeriesCompare(t *testing.T) {
	e := newAdminEnv(t)
	token := e.unlock(t)

	resp := e.request(t, http.MethodGet, "/admin/analytics/timeseries?start=2024-01-08&end=2024-01-10&compare=1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[timeseriesResp](t, resp)

	require.NotNil(t, got.PreviousRange)
	assert.Equal(t, "2024-01-05", got.PreviousRange.Start)
	assert.Equal(t, "2024-01-07", got.PreviousRange.End)
	require.NotNil(t, got.Previous)
	require.Len(t, got.Overlay, 2)
	assert.Equal(t, 1000.0, got.Overlay[0].Current)
	assert.Equal(t, 1000.0, *got.Overlay[0].Previous)
	require.Len(t, e.api.queries, 2)
	assert.Equal(t, analytics.MetricRevenue, e.api.queries[1].Metric)

	resp = e.request(t, http.MethodGet, "/admin/analytics/timeseries?start=2024-01-08&end=2024-01-10", token, nil)
	got = decode[timeseriesResp](t, resp)
	assert.Nil(t, got.Previous)
	assert.Nil(t, got.Overlay)

	resp = e.request(t, http.MethodGet, "/admin/analytics/timeseries?start=2024-02-01&end=2024-01-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_query", decode[ErrorResponse](t, resp).Code)
}

func TestAdmin_TopProducts(t *testing.T) {
	e := newAdminEnv(t)
	token := e.unlock(t)

	resp := e.request(t, http.MethodGet, "/admin/analytics/top-products", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decode[[]analytics.TopProduct](t, resp)
	require.Len(t, top, 1)
	assert.Equal(t, int64(12), top[0].Qty)
}

func TestAdmin_ExportCSV(t *testing.T) {
	e := newAdminEnv(t)
	token := e.unlock(t)

	resp := e.request(t, http.MethodGet, "/admin/analytics/export.csv?start=2024-01-08&end=2024-01-10", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Date,Revenue\n2024-01-08,10.00\n2024-01-10,20.50\n", string(body))
}

func TestAdmin_Forecast(t *testing.T) {
	e := newAdminEnv(t)
	token := e.unlock(t)

	resp := e.request(t, http.MethodPost, "/admin/forecast", token, map[string]any{
		"start": "2024-01-01", "end": "2024-01-10", "model": "arima", "horizon": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[forecastResp](t, resp)

	assert.Equal(t, "arima", got.Request.Model)
	assert.Equal(t, 2, got.Request.Horizon)
	require.NotNil(t, got.Request.CV)
	// two actuals, the bridge and two forecast points
	require.Len(t, got.Chart, 5)
	assert.Equal(t, "2024-01-11", got.Chart[2].Date)
	assert.Equal(t, 2050.0, *got.Chart[2].Actual)
	assert.Equal(t, 2050.0, *got.Chart[2].Forecast)
}

func TestAdmin_ForecastErrors(t *testing.T) {
	e := newAdminEnv(t)
	token := e.unlock(t)

	resp := e.request(t, http.MethodPost, "/admin/forecast", token, map[string]any{"model": "crystal-ball"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_model", decode[ErrorResponse](t, resp).Code)
	assert.Empty(t, e.api.forecasts)

	e.api.forecastErr = &apiclient.StatusError{Code: http.StatusBadRequest, Message: "not enough history"}
	resp = e.request(t, http.MethodPost, "/admin/forecast", token, map[string]any{"model": "xgboost"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "not enough history", decode[ErrorResponse](t, resp).Error)
}
