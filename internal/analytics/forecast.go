package analytics

import "strings"

const (
	DefaultModel   = "xgboost"
	DefaultHorizon = 14
)

var Models = []string{"arima", "sklearn", "xgboost"}

// NewForecastRequest trains on the query's range and filters and always asks
// for a rolling backtest of 3 splits, 7 steps apart.
func NewForecastRequest(q Query, model string, horizon int) ForecastRequest {
	if model == "" {
		model = DefaultModel
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return ForecastRequest{
		Metric:     q.Metric,
		Freq:       q.Freq,
		Horizon:    horizon,
		Model:      model,
		TrainStart: q.Start.Format(DateLayout),
		TrainEnd:   q.End.Format(DateLayout),
		Filters:    Filters{CategoryID: q.CategoryID, ProductID: q.ProductID},
		CV:         &CV{Type: "rolling", Splits: 3, Step: 7},
	}
}

func ValidModel(m string) bool {
	for _, x := range Models {
		if x == m {
			return true
		}
	}
	return false
}

type ChartPoint struct {
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual,omitempty"`
	Forecast *float64 `json:"forecast,omitempty"`
	Lower    *float64 `json:"lower,omitempty"`
	Upper    *float64 `json:"upper,omitempty"`
}

// ForecastChart joins history and forecast into one line. When the forecast
// does not start on the last actual date a bridge point is inserted at the
// first forecast date carrying the last actual value, so the two lines meet.
// Missing bounds default to yhat.
func ForecastChart(history []Point, forecast []ForecastPoint) []ChartPoint {
	if len(history) == 0 || len(forecast) == 0 {
		return nil
	}
	out := make([]ChartPoint, 0, len(history)+len(forecast)+1)
	for _, p := range history {
		out = append(out, ChartPoint{Date: p.DS, Actual: ptr(p.Y)})
	}

	last := history[len(history)-1]
	first := dateOnly(forecast[0].Date)
	if first != last.DS {
		out = append(out, ChartPoint{
			Date:     first,
			Actual:   ptr(last.Y),
			Forecast: ptr(last.Y),
			Lower:    ptr(last.Y),
			Upper:    ptr(last.Y),
		})
	}

	for _, f := range forecast {
		cp := ChartPoint{Date: dateOnly(f.Date), Forecast: ptr(f.YHat), Lower: ptr(f.YHat), Upper: ptr(f.YHat)}
		if f.Lower != nil {
			cp.Lower = ptr(*f.Lower)
		}
		if f.Upper != nil {
			cp.Upper = ptr(*f.Upper)
		}
		out = append(out, cp)
	}
	return out
}

func dateOnly(s string) string {
	d, _, _ := strings.Cut(s, " ")
	return d
}

func ptr(v float64) *float64 { return &v }
