// Package images loads, validates and saves the image files the client sends and receives.
//
// Files are read through an [afero.Fs] so callers and tests can swap the
// filesystem. Every upload is content-sniffed with mimetype and decoded with
// imaging; anything that is not a decodable image is rejected with
// [shared.ErrInvalidInput] before a network call is made.
package images

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Image is a validated image ready for upload.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Size is the encoded size in bytes.
func (i *Image) Size() int64 { return int64(len(i.Data)) }

// Loader reads images from a filesystem.
type Loader struct {
	fs     afero.Fs
	maxDim int
	logger *log.Logger
}

// NewLoader creates a Loader. maxDim > 0 downsizes larger images to fit within maxDim×maxDim.
func NewLoader(fs afero.Fs, maxDim int, logger *log.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loader{fs: fs, maxDim: maxDim, logger: shared.WithLogger(logger, "component", "images")}
}

// Fs exposes the loader's filesystem.
func (l *Loader) Fs() afero.Fs { return l.fs }

// Load reads and validates the image at path.
func (l *Loader) Load(path string) (*Image, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", shared.ErrInvalidInput, path)
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return l.Decode(filepath.Base(path), data)
}

// Decode validates raw bytes as an image named name.
func (l *Loader) Decode(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", shared.ErrInvalidInput, name)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is %s, not an image", shared.ErrInvalidInput, name, mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s could not be decoded: %v", shared.ErrInvalidInput, name, err)
	}

	out := &Image{Name: name, ContentType: mtype.String(), Data: data}
	bounds := img.Bounds()
	out.Width, out.Height = bounds.Dx(), bounds.Dy()

	if l.maxDim > 0 && (out.Width > l.maxDim || out.Height > l.maxDim) {
		if err := l.shrink(out, img, mtype); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *Loader) shrink(out *Image, img image.Image, mtype *mimetype.MIME) error {
	format, err := imaging.FormatFromExtension(mtype.Extension())
	if err != nil {
		format = imaging.JPEG
		out.ContentType = "image/jpeg"
		out.Name = strings.TrimSuffix(out.Name, filepath.Ext(out.Name)) + ".jpg"
	}

	fitted := imaging.Fit(img, l.maxDim, l.maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format); err != nil {
		return fmt.Errorf("failed to encode resized image: %w", err)
	}

	l.logger.Debug("resized image", "name", out.Name, "from", fmt.Sprintf("%dx%d", out.Width, out.Height),
		"to", fmt.Sprintf("%dx%d", fitted.Bounds().Dx(), fitted.Bounds().Dy()))
	out.Data = buf.Bytes()
	out.Width, out.Height = fitted.Bounds().Dx(), fitted.Bounds().Dy()
	return nil
}

// Save writes r to dir/name, creating dir as needed, and returns the written path.
func (l *Loader) Save(dir, name string, r io.Reader) (string, int64, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", 0, fmt.Errorf("%w: empty file name", shared.ErrInvalidInput)
	}
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	dest := filepath.Join(dir, name)
	f, err := l.fs.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.fs.Remove(dest)
		return "", n, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, n, nil
}

// Create opens dir/name for writing, creating dir as needed.
func (l *Loader) Create(dir, name string) (afero.File, error) {
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return l.fs.Create(filepath.Join(dir, filepath.Base(name)))
}
