package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
)

var ErrNoData = errors.New("no data available")

// Renault Group worldwide sales.
var vehicleSales = []models.VehicleSales{
	{Year: 2020, Sold: 2951971},
	{Year: 2021, Sold: 2696401},
	{Year: 2022, Sold: 2051174},
	{Year: 2023, Sold: 2235000},
	{Year: 2024, Sold: 2264815},
}

func VehicleSales() []models.VehicleSales {
	out := make([]models.VehicleSales, len(vehicleSales))
	copy(out, vehicleSales)
	return out
}

// SaveVehicleSales writes the sales table to path as year,vehicles_sold.
func SaveVehicleSales(path string) ([]models.VehicleSales, error) {
	sales := VehicleSales()

	rows := [][]string{{"year", "vehicles_sold"}}
	for _, s := range sales {
		rows = append(rows, []string{strconv.Itoa(s.Year), strconv.Itoa(s.Sold)})
	}
	if err := writeCSV(path, rows); err != nil {
		return nil, err
	}

	logging.Infof("Data saved to %s", path)
	return sales, nil
}

// LoadVehicleSales reads the sales CSV, creating it when missing.
func LoadVehicleSales(path string) ([]models.VehicleSales, error) {
	rows, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SaveVehicleSales(path)
	}
	if err != nil {
		return nil, err
	}

	var sales []models.VehicleSales
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		year, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("invalid year %q in %s: %w", row[0], path, err)
		}
		sold, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("invalid count %q in %s: %w", row[1], path, err)
		}
		sales = append(sales, models.VehicleSales{Year: year, Sold: sold})
	}
	return sales, nil
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
