package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const (
	RenaultSymbol = "RNO.PA"
	CAC40Symbol   = "^FCHI"
	StartYear     = 2020
)

var startDate = time.Date(StartYear, 1, 1, 0, 0, 0, 0, time.UTC)

type QuoteSource interface {
	Quotes(ctx context.Context, symbol string, from time.Time) ([]models.PricePoint, error)
}

// Comparison is the close of both series on one announcement date.
type Comparison struct {
	Date    time.Time `json:"date"`
	Renault float64   `json:"renault"`
	CAC40   float64   `json:"cac40"`
}

// YearPoint pairs yearly sales with the average close on that year's
// announcement dates.
type YearPoint struct {
	Year     int     `json:"year"`
	Sold     int     `json:"sold"`
	AvgPrice float64 `json:"avg_price"`
}

type Correlation struct {
	Coefficient float64     `json:"coefficient"`
	Points      []YearPoint `json:"points"`
}

func closesByDay(points []models.PricePoint) map[string]float64 {
	out := make(map[string]float64, len(points))
	for _, p := range points {
		out[p.Date.Format(time.DateOnly)] = p.Close
	}
	return out
}

// announcementDays returns the distinct parsed dates from StartYear on, sorted.
func announcementDays(dates []models.Announcement) []time.Time {
	seen := map[string]bool{}
	var out []time.Time
	for _, a := range dates {
		d, err := time.Parse(time.DateOnly, a.Date)
		if err != nil || d.Before(startDate) || seen[a.Date] {
			continue
		}
		seen[a.Date] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// CompareWithIndex fetches both series concurrently and keeps the
// announcement dates where both have a close.
func CompareWithIndex(ctx context.Context, q QuoteSource, dates []models.Announcement) ([]Comparison, error) {
	days := announcementDays(dates)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no announcement dates since %d", ErrNoData, StartYear)
	}

	var renault, cac40 []models.PricePoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		renault, err = q.Quotes(gctx, RenaultSymbol, startDate)
		return err
	})
	g.Go(func() error {
		var err error
		cac40, err = q.Quotes(gctx, CAC40Symbol, startDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to download quotes: %w", err)
	}

	rByDay, cByDay := closesByDay(renault), closesByDay(cac40)
	var out []Comparison
	for _, d := range days {
		key := d.Format(time.DateOnly)
		r, okR := rByDay[key]
		c, okC := cByDay[key]
		if okR && okC {
			out = append(out, Comparison{Date: d, Renault: r, CAC40: c})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no overlapping financial data found", ErrNoData)
	}
	return out, nil
}

// Correlate computes the Pearson correlation between yearly sales and the
// average close on that year's announcement dates.
func Correlate(ctx context.Context, q QuoteSource, dates []models.Announcement, sales []models.VehicleSales) (*Correlation, error) {
	days := announcementDays(dates)
	if len(days) == 0 || len(sales) == 0 {
		return nil, fmt.Errorf("%w: no extracted data to correlate", ErrNoData)
	}

	prices, err := q.Quotes(ctx, RenaultSymbol, startDate)
	if err != nil {
		return nil, fmt.Errorf("failed to download quotes: %w", err)
	}
	byDay := closesByDay(prices)

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, d := range days {
		if c, ok := byDay[d.Format(time.DateOnly)]; ok {
			sums[d.Year()] += c
			counts[d.Year()]++
		}
	}

	var points []YearPoint
	for _, s := range sales {
		if s.Year < StartYear || counts[s.Year] == 0 {
			continue
		}
		points = append(points, YearPoint{Year: s.Year, Sold: s.Sold, AvgPrice: sums[s.Year] / float64(counts[s.Year])})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })

	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least two years of overlapping data, got %d", ErrNoData, len(points))
	}

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = float64(p.Sold)
		y[i] = p.AvgPrice
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return nil, fmt.Errorf("%w: correlation undefined for constant series", ErrNoData)
	}
	return &Correlation{Coefficient: r, Points: points}, nil
}
