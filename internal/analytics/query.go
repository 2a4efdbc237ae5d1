// Package analytics holds the admin reporting logic: query building, period
// comparison, forecast chart assembly, CSV export and the PIN gate.
package analytics

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

const (
	MetricRevenue = "revenue"
	MetricOrders  = "orders"
)

const (
	FreqHourly = "H"
	FreqDaily  = "D"
	FreqWeekly = "W"
)

var ErrInvalidQuery = errors.New("invalid analytics query")

// Query selects one metric over a date range, optionally narrowed to a
// category or product. Zero ids mean no filter.
type Query struct {
	Metric     string
	Freq       string
	Start      time.Time
	End        time.Time
	CategoryID int64
	ProductID  int64
}

// DefaultQuery is daily revenue for the last 365 days up to now.
func DefaultQuery(now time.Time) Query {
	end := day(now)
	return Query{
		Metric: MetricRevenue,
		Freq:   FreqDaily,
		Start:  end.AddDate(0, 0, -365),
		End:    end,
	}
}

// ParseQuery reads metric, freq, start, end, category_id and product_id,
// falling back to DefaultQuery for anything absent.
func ParseQuery(v url.Values, now time.Time) (Query, error) {
	q := DefaultQuery(now)
	if s := v.Get("metric"); s != "" {
		q.Metric = s
	}
	if s := v.Get("freq"); s != "" {
		q.Freq = s
	}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(DateLayout, s); err != nil {
			return q, fmt.Errorf("%w: start: %v", ErrInvalidQuery, err)
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(DateLayout, s); err != nil {
			return q, fmt.Errorf("%w: end: %v", ErrInvalidQuery, err)
		}
	}
	if q.CategoryID, err = optionalID(v, "category_id"); err != nil {
		return q, err
	}
	if q.ProductID, err = optionalID(v, "product_id"); err != nil {
		return q, err
	}
	return q, q.Validate()
}

func (q Query) Validate() error {
	switch q.Metric {
	case MetricRevenue, MetricOrders:
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidQuery, q.Metric)
	}
	switch q.Freq {
	case FreqHourly, FreqDaily, FreqWeekly:
	default:
		return fmt.Errorf("%w: unknown freq %q", ErrInvalidQuery, q.Freq)
	}
	if q.End.Before(q.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidQuery)
	}
	return nil
}

// Values renders the timeseries query string.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("metric", q.Metric)
	v.Set("freq", q.Freq)
	v.Set("start", q.Start.Format(DateLayout))
	v.Set("end", q.End.Format(DateLayout))
	if q.CategoryID != 0 {
		v.Set("category_id", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.ProductID != 0 {
		v.Set("product_id", strconv.FormatInt(q.ProductID, 10))
	}
	return v
}

// RangeValues is the start/end pair used by top-products.
func (q Query) RangeValues() url.Values {
	v := url.Values{}
	v.Set("start", q.Start.Format(DateLayout))
	v.Set("end", q.End.Format(DateLayout))
	return v
}

// Previous returns the same query shifted onto the preceding period.
func (q Query) Previous() Query {
	p := q
	p.Start, p.End = PreviousRange(q.Start, q.End)
	return p
}

// PreviousRange is the period of equal length that ends the day before start.
func PreviousRange(start, end time.Time) (time.Time, time.Time) {
	span := day(end).Sub(day(start))
	pEnd := day(start).AddDate(0, 0, -1)
	return pEnd.Add(-span), pEnd
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optionalID(v url.Values, key string) (int64, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidQuery, key)
	}
	return id, nil
}
