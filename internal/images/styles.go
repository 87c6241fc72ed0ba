package images

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/desertthunder/stylx/internal/shared"
	"github.com/spf13/afero"
)

// Style is one of the backend's predefined style images.
type Style struct {
	ID          string
	Name        string
	Description string
	File        string
}

// Styles are the predefined styles shipped with the app, in display order.
var Styles = []Style{
	{ID: "style_1", Name: "Style 1", Description: "Classic artistic style", File: "style_1.jpg"},
	{ID: "style_2", Name: "Style 2", Description: "Modern artistic style", File: "style_2.png"},
	{ID: "style_3", Name: "Style 3", Description: "Contemporary artistic style", File: "style_3.jpeg"},
}

// LookupStyle finds a predefined style by ID.
func LookupStyle(id string) (Style, bool) {
	i := slices.IndexFunc(Styles, func(s Style) bool { return s.ID == id })
	if i < 0 {
		return Style{}, false
	}
	return Styles[i], true
}

// LoadStyle resolves ref as a predefined style ID under stylesDir, or as a path to a custom style image.
//
// The returned name is the style ID for predefined styles and the file's base name otherwise.
func (l *Loader) LoadStyle(stylesDir, ref string) (*Image, string, error) {
	if ref == "" {
		return nil, "", fmt.Errorf("%w: style is required", shared.ErrInvalidInput)
	}

	if style, ok := LookupStyle(ref); ok {
		img, err := l.Load(filepath.Join(stylesDir, style.File))
		if err != nil {
			return nil, "", fmt.Errorf("style %s: %w", style.ID, err)
		}
		return img, style.ID, nil
	}

	if ok, _ := afero.Exists(l.fs, ref); !ok {
		return nil, "", fmt.Errorf("%w: unknown style %q", shared.ErrInvalidInput, ref)
	}
	img, err := l.Load(ref)
	if err != nil {
		return nil, "", err
	}
	return img, img.Name, nil
}
