package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-kiosk/internal/money"
)

// WriteCSV writes a two column export, Date and the capitalized metric name.
// Revenue comes back from the API in cents and is written in dollars.
func WriteCSV(w io.Writer, metric string, series []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", capitalize(metric)}); err != nil {
		return err
	}
	for _, p := range series {
		val := strconv.FormatFloat(p.Y, 'f', -1, 64)
		if metric == MetricRevenue {
			val = money.Dollars(p.Y)
		}
		if err := cw.Write([]string{p.DS, val}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func CSVFilename(metric string, start, end time.Time) string {
	return fmt.Sprintf("timeseries_%s_%s_to_%s.csv", metric, start.Format(DateLayout), end.Format(DateLayout))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
