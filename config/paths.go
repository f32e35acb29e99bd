package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AnnouncementDatesFile = "announcement_result_dates.csv"
	VehiclesSoldFile      = "vehicles_sold_per_year.csv"
)

func (c *Config) PDFDir() string { return filepath.Join(c.Paths.DataDir, "pdfs") }
func (c *Config) ImageDir() string { return filepath.Join(c.Paths.DataDir, "images") }
func (c *Config) TextFromImageDir() string { return filepath.Join(c.Paths.DataDir, "text_from_image") }
func (c *Config) IndexDir() string { return filepath.Join(c.Paths.DataDir, "vector_indices") }
func (c *Config) TableDir() string { return filepath.Join(c.Paths.DataDir, "tables") }
func (c *Config) YouTubeDir() string { return filepath.Join(c.Paths.DataDir, "youtube") }
func (c *Config) AudioDir() string { return filepath.Join(c.YouTubeDir(), "audios") }
func (c *Config) FinancialDir() string { return filepath.Join(c.Paths.DataDir, "financial_results") }
func (c *Config) GraphDir() string { return filepath.Join(c.Paths.DataDir, "graphs") }

// EnsureDirs creates every data directory and checks that the model cache
// directory is writable.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Paths.DataDir,
		c.PDFDir(),
		c.ImageDir(),
		c.TextFromImageDir(),
		c.IndexDir(),
		c.TableDir(),
		c.YouTubeDir(),
		c.AudioDir(),
		c.FinancialDir(),
		c.GraphDir(),
		filepath.Dir(c.Paths.IndexDB),
		c.Models.CacheDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	probe, err := os.CreateTemp(c.Models.CacheDir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("model cache directory %s is not writable: %w", c.Models.CacheDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
