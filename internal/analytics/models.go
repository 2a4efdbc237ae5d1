package analytics

import "encoding/json"

// ---- timeseries ----

type Point struct {
	DS string  `json:"ds"`
	Y  float64 `json:"y"`
}

type Summary struct {
	Total float64 `json:"total"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type Breakdown struct {
	WeekdayAvg map[string]float64 `json:"weekday_avg"`
	HourAvg    map[string]float64 `json:"hour_avg"`
}

type TimeSeries struct {
	Series    []Point    `json:"series"`
	Summary   Summary    `json:"summary"`
	Breakdown *Breakdown `json:"breakdown,omitempty"`
}

type TopProduct struct {
	ProductName string  `json:"product_name"`
	Qty         int64   `json:"qty"`
	Revenue     float64 `json:"revenue"` // cents
}

// ---- forecast ----

type Filters struct {
	CategoryID int64 `json:"category_id,omitempty"`
	ProductID  int64 `json:"product_id,omitempty"`
}

type CV struct {
	Type   string `json:"type"`
	Splits int    `json:"splits"`
	Step   int    `json:"step"`
}

type ForecastRequest struct {
	Metric     string  `json:"metric"`
	Freq       string  `json:"freq"`
	Horizon    int     `json:"horizon"`
	Model      string  `json:"model"`
	TrainStart string  `json:"train_start,omitempty"`
	TrainEnd   string  `json:"train_end,omitempty"`
	Filters    Filters `json:"filters"`
	CV         *CV     `json:"cv,omitempty"`
}

type ForecastPoint struct {
	Date  string   `json:"date"`
	YHat  float64  `json:"yhat"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

type ForecastResult struct {
	ModelInfo       string             `json:"model_info"`
	FittedRange     json.RawMessage    `json:"fitted_range,omitempty"`
	BacktestMetrics map[string]float64 `json:"backtest_metrics,omitempty"`
	ForecastSeries  []ForecastPoint    `json:"forecast_series"`
}
