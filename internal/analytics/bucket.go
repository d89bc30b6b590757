package analytics

import (
	"fmt"
	"sort"
	"time"
)

// GroupedRow is one pre-aggregated input row, keyed by the exact event
// timestamp of the underlying grouping query. Sum2 carries the second
// measure for dual-measure series and is zero otherwise.
type GroupedRow struct {
	CreatedAt time.Time
	Count     int64
	Sum       float64
	Sum2      float64
}

// SeriesFilter selects the bucket granularity: no fields set buckets by
// year, Year alone buckets by month, Year and Month bucket by day.
type SeriesFilter struct {
	Year  *int
	Month *int
}

// Bucket is one aggregated point of a time series.
type Bucket struct {
	Key         int     `json:"-"`
	DateNumeric string  `json:"date"`
	DisplayDate string  `json:"display_date"`
	Count       int64   `json:"count"`
	Sum         float64 `json:"sum"`
	Sum2        float64 `json:"sum2,omitempty"`
}

type granularity int

const (
	byYear granularity = iota
	byMonth
	byDay
)

func (f SeriesFilter) granularity() granularity {
	switch {
	case f.Year != nil && f.Month != nil:
		return byDay
	case f.Year != nil:
		return byMonth
	default:
		return byYear
	}
}

// Aggregate folds grouped rows into calendar buckets. Every input row lands
// in exactly one bucket and counts and sums are conserved. Rows with a zero
// timestamp are assigned to the current instant rather than dropped. Output
// is ordered by the numeric bucket key ascending.
func Aggregate(rows []GroupedRow, filter SeriesFilter, now func() time.Time) []Bucket {
	if now == nil {
		now = time.Now
	}
	gran := filter.granularity()

	index := make(map[int]int)
	buckets := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		at := row.CreatedAt
		if at.IsZero() {
			at = now()
		}
		at = at.UTC()

		key, numeric, display := bucketKey(at, gran)
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, Bucket{Key: key, DateNumeric: numeric, DisplayDate: display})
		}
		buckets[pos].Count += row.Count
		buckets[pos].Sum += row.Sum
		buckets[pos].Sum2 += row.Sum2
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

func bucketKey(at time.Time, gran granularity) (key int, numeric, display string) {
	switch gran {
	case byDay:
		day := at.Day()
		return day, fmt.Sprintf("%d", day), at.Format("2 Jan 2006")
	case byMonth:
		month := int(at.Month())
		return month, fmt.Sprintf("%d", month), at.Format("January 2006")
	default:
		year := at.Year()
		return year, fmt.Sprintf("%d", year), at.Format("2006")
	}
}
