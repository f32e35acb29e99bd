package models

import "time"

// Announcement is a financial results publication date found in a report.
type Announcement struct {
	Date   string // YYYY-MM-DD
	Source string
}

// VehicleSales is the number of vehicles sold in a calendar year.
type VehicleSales struct {
	Year int
	Sold int
}

// PricePoint is a daily close price.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// ChartResponse is the subset of the Yahoo Finance chart API we read.
type ChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol     string `json:"symbol"`
				Currency   string `json:"currency"`
				GMTOffset  int64  `json:"gmtoffset"`
				ExchangeTZ string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
