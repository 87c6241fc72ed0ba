package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/stylx/internal/formatter"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
)

var (
	_ list.Item = imageItem{}
	_ list.Item = styleItem{}
)

// imageItem wraps [models.ImageResult] to implement [list.Item].
type imageItem struct {
	image models.ImageResult
	loc   *time.Location
}

func (i imageItem) FilterValue() string { return i.image.Title() }
func (i imageItem) Title() string       { return i.image.Title() }
func (i imageItem) Description() string {
	return fmt.Sprintf("%s • %s • %s",
		formatter.StyleLabel(i.image.StyleName),
		formatter.FormatFileSize(i.image.Size),
		formatter.FormatTimestamp(i.image.Time(), i.loc),
	)
}

// styleItem wraps [images.Style] to implement [list.Item].
type styleItem struct {
	style images.Style
}

func (i styleItem) FilterValue() string { return i.style.Name }
func (i styleItem) Title() string       { return i.style.Name }
func (i styleItem) Description() string { return i.style.Description }

func imageItems(page *models.GalleryPage, loc *time.Location) []list.Item {
	if page == nil {
		return nil
	}
	items := make([]list.Item, len(page.Images))
	for i, img := range page.Images {
		items[i] = imageItem{image: img, loc: loc}
	}
	return items
}

func styleItems() []list.Item {
	items := make([]list.Item, len(images.Styles))
	for i, s := range images.Styles {
		items[i] = styleItem{style: s}
	}
	return items
}
