// Package encoder writes RGB24 frame buffers as still images.
package encoder

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
)

// Format identifies an output image format
type Format int

const (
	// PPM is binary portable pixmap (P6); always available
	PPM Format = iota
	// JPEG is baseline JPEG; available when the encoder was built WithJPEG
	JPEG
)

// DefaultJPEGQuality matches the quality used for thumbnails by the original tool
const DefaultJPEGQuality = 75

var formats = []Format{PPM, JPEG}

// String returns the textual token of the format
func (f Format) String() string {
	switch f {
	case PPM:
		return "ppm"
	case JPEG:
		return "jpg"
	default:
		return "unknown"
	}
}

// Suffix returns the file suffix without the leading dot
func (f Format) Suffix() string {
	switch f {
	case PPM, JPEG:
		return f.String()
	default:
		return "bin"
	}
}

// ParseFormat maps a textual token ("ppm", "jpg") to a Format
func ParseFormat(token string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "ppm":
		return PPM, nil
	case "jpg", "jpeg":
		return JPEG, nil
	default:
		return 0, fmt.Errorf("unknown image format %q", token)
	}
}

// Encoder writes an RGB24 buffer to path in the given format
type Encoder interface {
	Encode(path string, rgb []byte, width, height int, format Format) error
	Supports(format Format) bool
}

// FileEncoder encodes frames to files on disk
type FileEncoder struct {
	jpeg        bool
	jpegQuality int
}

// Option configures a FileEncoder
type Option func(*FileEncoder)

// WithJPEG enables JPEG output at the given quality (1-100)
func WithJPEG(quality int) Option {
	return func(e *FileEncoder) {
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		e.jpeg = true
		e.jpegQuality = quality
	}
}

// New creates a file encoder. PPM is always supported.
func New(opts ...Option) *FileEncoder {
	e := &FileEncoder{jpegQuality: DefaultJPEGQuality}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether format is available
func (e *FileEncoder) Supports(format Format) bool {
	switch format {
	case PPM:
		return true
	case JPEG:
		return e.jpeg
	default:
		return false
	}
}

// SupportedString returns the pipe-separated list of formats enc supports
func SupportedString(enc Encoder) string {
	var tokens []string
	for _, f := range formats {
		if enc.Supports(f) {
			tokens = append(tokens, f.String())
		}
	}
	return strings.Join(tokens, "|")
}

// Encode writes the buffer to path, replacing any existing file
func (e *FileEncoder) Encode(path string, rgb []byte, width, height int, format Format) error {
	if width <= 0 || height <= 0 || len(rgb) != width*height*3 {
		return fmt.Errorf("invalid frame buffer: %d bytes for %dx%d", len(rgb), width, height)
	}
	if !e.Supports(format) {
		return fmt.Errorf("unsupported image format %s", format)
	}

	switch format {
	case JPEG:
		return e.encodeJPEG(path, rgb, width, height)
	default:
		return encodePPM(path, rgb, width, height)
	}
}

func encodePPM(path string, rgb []byte, width, height int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "P6\n%d %d\n255\n", width, height)
	if _, err := w.Write(rgb); err != nil {
		file.Close()
		return fmt.Errorf("failed to write pixel data: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write pixel data: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close image file: %w", err)
	}
	return nil
}

func (e *FileEncoder) encodeJPEG(path string, rgb []byte, width, height int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := imaging.Encode(file, toNRGBA(rgb, width, height), imaging.JPEG, imaging.JPEGQuality(e.jpegQuality)); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close image file: %w", err)
	}
	return nil
}

// toNRGBA expands an RGB24 buffer into an opaque NRGBA image
func toNRGBA(rgb []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for src, dst := 0, 0; src < len(rgb); src, dst = src+3, dst+4 {
		img.Pix[dst] = rgb[src]
		img.Pix[dst+1] = rgb[src+1]
		img.Pix[dst+2] = rgb[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}
