// Package formatter renders gallery data for display and export (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stylx/internal/models"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in 1024-based units with at most two decimals, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatTimestamp renders t in loc as a local date and time. The zero time renders as "Unknown".
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Unknown"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Jan 2, 2006 3:04 PM")
}

// StyleLabel turns "style_2" into "Style 2"; other names pass through.
func StyleLabel(name string) string {
	if n, ok := strings.CutPrefix(name, "style_"); ok && n != "" {
		return "Style " + n
	}
	if name == "" {
		return "Unknown"
	}
	return name
}

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// GalleryToCSV renders images with columns: Filename, Title, Style, Size, Transformed, Path
func GalleryToCSV(images []models.ImageResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Filename", "Title", "Style", "Size", "Transformed", "Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, img := range images {
		transformed := ""
		if t := img.Time(); !t.IsZero() {
			transformed = t.UTC().Format(time.RFC3339)
		}
		record := []string{
			img.StoredName(),
			img.Title(),
			img.StyleName,
			strconv.FormatInt(img.Size, 10),
			transformed,
			img.Path,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// GalleryToMarkdown renders a gallery page as a Markdown table.
func GalleryToMarkdown(page *models.GalleryPage, loc *time.Location) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Gallery\n\n")
	fmt.Fprintf(&buf, "**Page**: %d of %d\n", page.Pagination.CurrentPage, max(page.Pagination.TotalPages, 1))
	fmt.Fprintf(&buf, "**Images**: %d\n\n", len(page.Images))

	if len(page.Images) == 0 {
		buf.WriteString("No transformed images yet.\n")
		return buf.Bytes()
	}

	buf.WriteString("| # | Title | Style | Size | Transformed |\n")
	buf.WriteString("|---|-------|-------|------|-------------|\n")
	for i, img := range page.Images {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(img.Title()),
			StyleLabel(img.StyleName),
			FormatFileSize(img.Size),
			FormatTimestamp(img.Time(), loc),
		)
	}

	return buf.Bytes()
}

// GalleryToText renders a gallery page as numbered plain-text lines.
func GalleryToText(page *models.GalleryPage, loc *time.Location) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Gallery page %d of %d (%d images)\n\n", page.Pagination.CurrentPage, max(page.Pagination.TotalPages, 1), len(page.Images))
	for i, img := range page.Images {
		fmt.Fprintf(&buf, "%d. %s  [%s, %s]  %s\n", i+1, img.Title(), StyleLabel(img.StyleName), FormatFileSize(img.Size), FormatTimestamp(img.Time(), loc))
	}

	return buf.Bytes()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// WriteManifest writes v as indented JSON to path, creating parent directories.
func WriteManifest(v any, path string) error {
	data, err := MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// WriteGalleryExport writes a gallery index in format (csv, markdown, txt or json) to dir and returns the file path.
func WriteGalleryExport(page *models.GalleryPage, format, dir string) (string, error) {
	var (
		data []byte
		name string
		err  error
	)
	switch format {
	case "csv":
		name = "gallery.csv"
		data, err = GalleryToCSV(page.Images)
	case "markdown":
		name = "README.md"
		data = GalleryToMarkdown(page, time.UTC)
	case "txt":
		name = "gallery.txt"
		data = GalleryToText(page, time.UTC)
	default:
		name = "gallery.json"
		data, err = MarshalJSON(page, true)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
