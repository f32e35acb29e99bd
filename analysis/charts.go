package analysis

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/andrejsstepanovs/docqa/config"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	ChartVehicles    = "vehicles"
	ChartStock       = "stock"
	ChartCorrelation = "correlation"
)

var (
	ErrUnknownChart = errors.New("unknown chart")

	chartFiles = map[string]string{
		ChartVehicles:    "vehicles_sold_per_year.png",
		ChartStock:       "renault_stock_vs_cac40.png",
		ChartCorrelation: "correlation_sales_vs_stock.png",
	}

	steelBlue = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	numbers   = message.NewPrinter(language.English)
)

// ChartFile returns the PNG file name of a chart.
func ChartFile(name string) (string, bool) {
	f, ok := chartFiles[name]
	return f, ok
}

// Charts renders the financial charts as PNG files.
type Charts struct {
	GraphDir     string
	FinancialDir string
	PDFDir       string
	Quotes       QuoteSource
	ReadPDF      func(path string) (string, error)

	// renders share the CSV and PNG files
	mu sync.Mutex
}

func (c *Charts) path(name string) string {
	return filepath.Join(c.GraphDir, chartFiles[name])
}

func (c *Charts) announcements() ([]models.Announcement, error) {
	return AnnouncementDates(c.PDFDir, filepath.Join(c.FinancialDir, config.AnnouncementDatesFile), c.ReadPDF)
}

// Render draws the named chart and returns the PNG path.
func (c *Charts) Render(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.GraphDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create graph dir: %w", err)
	}

	switch name {
	case ChartVehicles:
		return c.VehiclesSold()
	case ChartStock:
		return c.StockVsIndex(ctx)
	case ChartCorrelation:
		path, _, err := c.SalesVsStock(ctx)
		return path, err
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownChart, name)
}

// VehiclesSold draws a bar chart of the yearly sales, each bar labelled with
// its value.
func (c *Charts) VehiclesSold() (string, error) {
	sales, err := SaveVehicleSales(filepath.Join(c.FinancialDir, config.VehiclesSoldFile))
	if err != nil {
		return "", err
	}

	var values plotter.Values
	var years []string
	labels := plotter.XYLabels{}
	for _, s := range sales {
		if s.Year < StartYear {
			continue
		}
		values = append(values, float64(s.Sold))
		years = append(years, strconv.Itoa(s.Year))
		labels.XYs = append(labels.XYs, plotter.XY{X: float64(len(values) - 1), Y: float64(s.Sold)})
		labels.Labels = append(labels.Labels, numbers.Sprintf("%d", s.Sold))
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: no vehicle sales data to plot", ErrNoData)
	}

	p := plot.New()
	p.Title.Text = "Vehicles Sold Per Year (2020+)"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Vehicles Sold"
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return "", fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.Color = steelBlue
	bars.LineStyle.Color = color.Black
	p.Add(bars)
	p.NominalX(years...)

	l, err := plotter.NewLabels(labels)
	if err != nil {
		return "", fmt.Errorf("failed to build labels: %w", err)
	}
	p.Add(l)

	return c.save(p, ChartVehicles, 8*vg.Inch, 5*vg.Inch)
}

// StockVsIndex draws Renault and CAC40 closes on the announcement dates.
func (c *Charts) StockVsIndex(ctx context.Context) (string, error) {
	dates, err := c.announcements()
	if err != nil {
		return "", err
	}
	rows, err := CompareWithIndex(ctx, c.Quotes, dates)
	if err != nil {
		return "", err
	}

	renault := make(plotter.XYs, len(rows))
	cac40 := make(plotter.XYs, len(rows))
	for i, r := range rows {
		x := float64(r.Date.Unix())
		renault[i] = plotter.XY{X: x, Y: r.Renault}
		cac40[i] = plotter.XY{X: x, Y: r.CAC40}
	}

	p := plot.New()
	p.Title.Text = "Renault Stock vs CAC40 on Earnings Dates (2020+)"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Close Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, "Renault Stock", renault, "CAC40 Index", cac40); err != nil {
		return "", fmt.Errorf("failed to add lines: %w", err)
	}

	return c.save(p, ChartStock, 10*vg.Inch, 6*vg.Inch)
}

// SalesVsStock draws yearly sales against the average close on result days
// and returns the correlation coefficient.
func (c *Charts) SalesVsStock(ctx context.Context) (string, float64, error) {
	dates, err := c.announcements()
	if err != nil {
		return "", 0, err
	}
	sales, err := LoadVehicleSales(filepath.Join(c.FinancialDir, config.VehiclesSoldFile))
	if err != nil {
		return "", 0, err
	}

	corr, err := Correlate(ctx, c.Quotes, dates, sales)
	if err != nil {
		return "", 0, err
	}
	logging.Infof("Correlation between vehicle sales and Renault stock price on result days: %.3f", corr.Coefficient)

	xys := make(plotter.XYs, len(corr.Points))
	labels := make([]string, len(corr.Points))
	for i, pt := range corr.Points {
		xys[i] = plotter.XY{X: float64(pt.Sold), Y: pt.AvgPrice}
		labels[i] = strconv.Itoa(pt.Year)
	}

	p := plot.New()
	p.Title.Text = "Correlation: Vehicle Sales vs Renault Stock Price on Result Days (2020+)"
	p.X.Label.Text = "Vehicles Sold"
	p.Y.Label.Text = "Average Stock Price (on result days)"
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build scatter: %w", err)
	}
	s.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	p.Add(s)

	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return "", 0, fmt.Errorf("failed to build labels: %w", err)
	}
	p.Add(l)

	path, err := c.save(p, ChartCorrelation, 8*vg.Inch, 5*vg.Inch)
	return path, corr.Coefficient, err
}

func (c *Charts) save(p *plot.Plot, name string, w, h vg.Length) (string, error) {
	path := c.path(name)
	if err := p.Save(w, h, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	logging.Infof("Chart saved to: %s", path)
	return path, nil
}
