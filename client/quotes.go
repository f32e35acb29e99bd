package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	fastshot "github.com/opus-domini/fast-shot"
)

// QuoteClient reads daily close prices from the Yahoo Finance chart API.
type QuoteClient struct {
	http fastshot.ClientHttpMethods
	now  func() time.Time
}

func NewQuoteClient(baseURL string) *QuoteClient {
	c := fastshot.NewClient(baseURL).
		Config().SetTimeout(30 * time.Second).
		Header().Add("User-Agent", "Mozilla/5.0 (compatible; docqa)").
		Build()
	return &QuoteClient{http: c, now: time.Now}
}

// Quotes returns the daily closes of symbol from the given day onwards. Dates
// are exchange-local calendar days at midnight UTC.
func (q *QuoteClient) Quotes(ctx context.Context, symbol string, from time.Time) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(q.now().Unix(), 10))
	params.Set("interval", "1d")

	resp, err := q.http.
		GET("/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()).
		Context().Set(ctx).
		Header().Add("Accept", "application/json").
		Retry().SetExponentialBackoff(time.Second, 3, 2.0).
		Send()
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body().Close()

	var res models.ChartResponse
	if err := parseHTTPResponse(*resp, &res); err != nil {
		return nil, fmt.Errorf("quotes for %s: %w", symbol, err)
	}
	if res.Chart.Error != nil {
		return nil, fmt.Errorf("quotes for %s: %s", symbol, res.Chart.Error.Description)
	}
	if len(res.Chart.Result) == 0 {
		return nil, errors.New("quotes for " + symbol + ": empty result")
	}

	result := res.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		points = append(points, models.PricePoint{Date: day, Close: *closes[i]})
	}
	return points, nil
}
