package models

import (
	"path"
	"strings"
	"time"
)

// ImageResult is one transformed image as reported by the backend. Immutable once received.
type ImageResult struct {
	Path             string `json:"path"`
	ThumbnailPath    string `json:"thumbnail_path,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Filename         string `json:"filename,omitempty"`
	StyleName        string `json:"style_name,omitempty"`
	Size             int64  `json:"size,omitempty"`
	TransformedAt    string `json:"transformed_at,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"20060102_150405",
}

// Title is the display name: original filename, then stored filename, then "Untitled".
func (i ImageResult) Title() string {
	switch {
	case i.OriginalFilename != "":
		return i.OriginalFilename
	case i.Filename != "":
		return i.Filename
	default:
		return "Untitled"
	}
}

// Thumbnail falls back to the full image path when no thumbnail exists.
func (i ImageResult) Thumbnail() string {
	if i.ThumbnailPath != "" {
		return i.ThumbnailPath
	}
	return i.Path
}

// StoredName is the filename the backend's delete endpoint expects.
func (i ImageResult) StoredName() string {
	if i.Filename != "" {
		return i.Filename
	}
	return path.Base(i.Path)
}

// Time parses transformed_at, falling back to timestamp. The zero time means neither parsed.
func (i ImageResult) Time() time.Time {
	for _, raw := range []string{i.TransformedAt, i.Timestamp} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Pagination is authoritative paging state from the backend.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	PerPage     int `json:"per_page,omitempty"`
	TotalImages int `json:"total_images,omitempty"`
}

// GalleryPage is one page of a user's gallery.
type GalleryPage struct {
	Images     []ImageResult `json:"images"`
	Pagination Pagination    `json:"pagination"`
}

// Clone copies the image slice so a caller cannot mutate shared state.
func (p *GalleryPage) Clone() *GalleryPage {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]ImageResult(nil), p.Images...)
	return &c
}
