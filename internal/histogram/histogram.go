// Package histogram builds luma distributions of RGB frames and classifies
// them as near-black. The distributions can also be dumped as plain text for
// gnuplot-style tools or rendered to a PNG chart.
package histogram

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Bins is the number of luma buckets in a Histogram.
const Bins = 256

// darkBins is the number of lowest luma buckets counted as dark.
const darkBins = 15

// Luma weights. They deliberately differ from ITU-R BT.601 (0.114 for blue)
// and sum to 1.03; downstream consumers depend on the resulting bins.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.144
)

// ErrBufferSize is returned when an RGB buffer does not hold width*height*3 bytes.
var ErrBufferSize = errors.New("rgb buffer size does not match dimensions")

// Histogram is the luma distribution of one decoded frame.
type Histogram struct {
	// Data counts pixels per luma value.
	Data [Bins]uint32
	// TotalPixel is the number of pixels that were counted.
	TotalPixel uint32
	// Max is the largest value in Data.
	Max uint32
}

// Build creates a histogram from a row-major RGB24 buffer.
func Build(buf []byte, width, height int) (*Histogram, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrBufferSize, width, height)
	}
	// TotalPixel and the bucket counters are 32 bit
	if height > 0 && uint64(width) > math.MaxUint32/uint64(height) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrBufferSize, width, height, uint64(math.MaxUint32))
	}
	if len(buf) != width*height*3 {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}

	h := &Histogram{TotalPixel: uint32(width * height)}
	for off := 0; off < len(buf); off += 3 {
		// bright pixels clamp to bucket 255; an 8-bit cast would wrap white into the dark buckets
		y := Luma(buf[off], buf[off+1], buf[off+2])
		h.Data[y]++
		if h.Data[y] > h.Max {
			h.Max = h.Data[y]
		}
	}
	return h, nil
}

// Luma converts one RGB triplet to its 8-bit luma bucket. Results above 255
// are clamped.
func Luma(r, g, b uint8) uint8 {
	y := int(weightR*float64(r) + weightG*float64(g) + weightB*float64(b))
	if y > 255 {
		return 255
	}
	return uint8(y)
}

// IsBlack reports whether at least half of all pixels fall into the 15
// darkest luma buckets. An empty histogram is never black.
func (h *Histogram) IsBlack() bool {
	if h == nil || h.TotalPixel == 0 {
		return false
	}

	var dark uint32
	for i := 0; i < darkBins; i++ {
		dark += h.Data[i]
	}
	return dark >= h.TotalPixel/2
}

// WriteTo writes one "<bin>\t<count>" line per bucket in ascending order.
func (h *Histogram) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for i, count := range h.Data {
		n, err := fmt.Fprintf(bw, "%d\t%d\n", i, count)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// Save writes the distribution to path, replacing any existing file.
func (h *Histogram) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create histogram file: %w", err)
	}

	if _, err := h.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write histogram file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close histogram file: %w", err)
	}
	return nil
}

// Sum returns the sum of all buckets.
func (h *Histogram) Sum() uint64 {
	var sum uint64
	for _, c := range h.Data {
		sum += uint64(c)
	}
	return sum
}
