package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleSales_ReturnsCopy(t *testing.T) {
	sales := VehicleSales()
	require.Len(t, sales, 5)
	sales[0].Sold = 0
	assert.Equal(t, 2951971, VehicleSales()[0].Sold)
}

func TestSaveAndLoadVehicleSales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "financial", "vehicles_sold_per_year.csv")

	_, err := SaveVehicleSales(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "year,vehicles_sold\n2020,2951971\n2021,2696401\n2022,2051174\n2023,2235000\n2024,2264815\n", string(data))

	sales, err := LoadVehicleSales(path)
	require.NoError(t, err)
	assert.Equal(t, VehicleSales(), sales)
}

func TestLoadVehicleSales(t *testing.T) {
	t.Run("missing file is created", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sales.csv")
		sales, err := LoadVehicleSales(path)
		require.NoError(t, err)
		assert.Len(t, sales, 5)
		assert.FileExists(t, path)
	})

	t.Run("edited file wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sales.csv")
		require.NoError(t, os.WriteFile(path, []byte("year,vehicles_sold\n2023,10\n2024,20\n"), 0o644))
		sales, err := LoadVehicleSales(path)
		require.NoError(t, err)
		assert.Equal(t, []models.VehicleSales{{Year: 2023, Sold: 10}, {Year: 2024, Sold: 20}}, sales)
	})

	t.Run("bad number", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sales.csv")
		require.NoError(t, os.WriteFile(path, []byte("year,vehicles_sold\n2023,many\n"), 0o644))
		_, err := LoadVehicleSales(path)
		assert.ErrorContains(t, err, "invalid count")
	})
}
