package visualization

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// FormatPNG exports to PNG format
	FormatPNG ExportFormat = "png"
	// FormatSVG exports to SVG format
	FormatSVG ExportFormat = "svg"
	// FormatPDF exports to PDF format
	FormatPDF ExportFormat = "pdf"
)

// SavePlot saves a plot to a file with automatic format detection from the
// extension.
//
// Supported formats:
//   - .png (raster graphics)
//   - .svg (vector graphics)
//   - .pdf (vector graphics)
//
// Example:
//
//	err := SavePlot(p, "out/curve_bbb.png", 10, 6)
func SavePlot(p *plot.Plot, filename string, width, height float64) error {
	if p == nil {
		return fmt.Errorf("plot is nil")
	}
	if filename == "" {
		return fmt.Errorf("filename is empty")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions: width=%f, height=%f", width, height)
	}

	// Ensure directory exists
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".svg", ".pdf":
		return save(p, filename, width, height)
	default:
		return fmt.Errorf("unsupported format: %s (use .png, .svg, or .pdf)", ext)
	}
}

// SavePlotAs saves a plot in the given format, appending the extension when
// the filename lacks it.
func SavePlotAs(p *plot.Plot, filename string, format ExportFormat, width, height float64) error {
	switch format {
	case FormatPNG, FormatSVG, FormatPDF:
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if !strings.HasSuffix(strings.ToLower(filename), "."+string(format)) {
		filename += "." + string(format)
	}
	return SavePlot(p, filename, width, height)
}

func save(p *plot.Plot, filename string, width, height float64) error {
	w := vg.Length(width) * vg.Inch
	h := vg.Length(height) * vg.Inch

	if err := p.Save(w, h, filename); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
