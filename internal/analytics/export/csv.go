// Package export renders analytics series to downloadable formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/farmstead-erp/farmstead-erp/internal/analytics"
)

// WriteSeriesCSV writes a single-measure series with a header row.
func WriteSeriesCSV(w io.Writer, buckets []analytics.Bucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "display_date", "count", "sum"}); err != nil {
		return err
	}
	for _, b := range buckets {
		record := []string{
			b.DateNumeric,
			b.DisplayDate,
			strconv.FormatInt(b.Count, 10),
			strconv.FormatFloat(b.Sum, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDualSeriesCSV writes a dual-measure series with a header row.
func WriteDualSeriesCSV(w io.Writer, buckets []analytics.Bucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "display_date", "count", "sum", "sum2"}); err != nil {
		return err
	}
	for _, b := range buckets {
		record := []string{
			b.DateNumeric,
			b.DisplayDate,
			strconv.FormatInt(b.Count, 10),
			strconv.FormatFloat(b.Sum, 'f', -1, 64),
			strconv.FormatFloat(b.Sum2, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
