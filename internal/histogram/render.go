package histogram

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

// Renderer draws a histogram chart to a file.
type Renderer interface {
	Render(h *Histogram, path string) error
}

const (
	chartWidth  = 500
	chartHeight = 400
)

// PNGRenderer renders histograms as filled black area charts on a white
// 500x400 canvas.
type PNGRenderer struct{}

// NewPNGRenderer creates a PNG histogram renderer
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{}
}

// Render draws h and saves it to path. The format is taken from the file
// extension, normally ".png".
func (r *PNGRenderer) Render(h *Histogram, path string) error {
	img := r.Draw(h)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save histogram chart: %w", err)
	}
	return nil
}

// Draw returns the chart image. A histogram without a peak yields a blank canvas.
func (r *PNGRenderer) Draw(h *Histogram) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	if h == nil || h.Max == 0 {
		return canvas
	}

	z := vector.NewRasterizer(chartWidth, chartHeight)
	z.MoveTo(0, chartHeight)
	for i, count := range h.Data {
		x := float32(i) / float32(Bins-1) * chartWidth
		y := (1 - float32(count)/float32(h.Max)) * chartHeight
		z.LineTo(x, y)
	}
	z.LineTo(chartWidth, chartHeight)
	z.ClosePath()
	z.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{})

	return canvas
}
