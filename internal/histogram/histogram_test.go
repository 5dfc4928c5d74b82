package histogram

import (
	"bufio"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(width, height int, r, g, b uint8) []byte {
	buf := make([]byte, width*height*3)
	for i := 0; i < len(buf); i += 3 {
		buf[i], buf[i+1], buf[i+2] = r, g, b
	}
	return buf
}

func TestBuild_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, dim := range [][2]int{{1, 1}, {2, 2}, {16, 9}, {64, 48}, {0, 0}} {
		w, h := dim[0], dim[1]
		buf := make([]byte, w*h*3)
		rng.Read(buf)

		hist, err := Build(buf, w, h)
		require.NoError(t, err)

		assert.Equal(t, uint64(w*h), hist.Sum(), "sum(data) for %dx%d", w, h)
		assert.Equal(t, uint32(w*h), hist.TotalPixel)

		var max uint32
		for _, c := range hist.Data {
			if c > max {
				max = c
			}
		}
		assert.Equal(t, max, hist.Max, "max for %dx%d", w, h)
	}
}

func TestBuild_RejectsMismatchedBuffer(t *testing.T) {
	_, err := Build(make([]byte, 11), 2, 2)
	assert.True(t, errors.Is(err, ErrBufferSize))

	_, err = Build(make([]byte, 13), 2, 2)
	assert.True(t, errors.Is(err, ErrBufferSize))

	_, err = Build(nil, -1, 3)
	assert.True(t, errors.Is(err, ErrBufferSize))
}

func TestBuild_RejectsPixelCountOverflow(t *testing.T) {
	// 65536 x 65537 pixels do not fit the 32 bit counters
	_, err := Build(nil, 1<<16, 1<<16+1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBufferSize))
	assert.Contains(t, err.Error(), "exceeds")

	_, err = Build(nil, 1<<20, 0)
	assert.NoError(t, err)
}

func TestBuild_WhiteFrameIsNotBlack(t *testing.T) {
	hist, err := Build(solid(2, 2, 255, 255, 255), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), hist.Data[255])
	assert.Equal(t, uint32(0), hist.Data[6])
	assert.False(t, hist.IsBlack())
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(0), Luma(0, 0, 0))
	// 2.99 + 11.74 + 4.32
	assert.Equal(t, uint8(19), Luma(10, 20, 30))
	assert.Equal(t, uint8(76), Luma(255, 0, 0))
	assert.Equal(t, uint8(149), Luma(0, 255, 0))
	assert.Equal(t, uint8(36), Luma(0, 0, 255))
	// weights sum to 1.03, white clamps instead of wrapping
	assert.Equal(t, uint8(255), Luma(255, 255, 255))
}

func TestIsBlack(t *testing.T) {
	t.Run("all zero 2x2", func(t *testing.T) {
		hist, err := Build(solid(2, 2, 0, 0, 0), 2, 2)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), hist.Data[0])
		assert.True(t, hist.IsBlack())
	})

	t.Run("spread 0/50/100/200", func(t *testing.T) {
		hist := &Histogram{TotalPixel: 4, Max: 1}
		hist.Data[0], hist.Data[50], hist.Data[100], hist.Data[200] = 1, 1, 1, 1
		assert.False(t, hist.IsBlack())
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		hist := &Histogram{TotalPixel: 4, Max: 2}
		hist.Data[14], hist.Data[15] = 2, 2
		assert.True(t, hist.IsBlack())
	})

	t.Run("odd total uses integer division", func(t *testing.T) {
		hist := &Histogram{TotalPixel: 5, Max: 3}
		hist.Data[3], hist.Data[200] = 2, 3
		assert.True(t, hist.IsBlack())
	})

	t.Run("empty", func(t *testing.T) {
		assert.False(t, (&Histogram{}).IsBlack())
		var nilHist *Histogram
		assert.False(t, nilHist.IsBlack())
	})

	t.Run("dark gray counts", func(t *testing.T) {
		hist, err := Build(solid(4, 4, 12, 12, 12), 4, 4)
		require.NoError(t, err)
		assert.True(t, hist.IsBlack())

		hist, err = Build(solid(4, 4, 40, 40, 40), 4, 4)
		require.NoError(t, err)
		assert.False(t, hist.IsBlack())
	})
}

func TestSave(t *testing.T) {
	hist, err := Build(solid(3, 2, 10, 20, 30), 3, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "histogram_00000.dat")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	require.NoError(t, hist.Save(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	bin := 0
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		require.Len(t, parts, 2)
		assert.Equal(t, strconv.Itoa(bin), parts[0])
		want := "0"
		if bin == 19 {
			want = "6"
		}
		assert.Equal(t, want, parts[1], "bin %d", bin)
		bin++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, Bins, bin)
}

func TestSave_UnwritablePath(t *testing.T) {
	hist := &Histogram{}
	err := hist.Save(filepath.Join(t.TempDir(), "missing", "h.dat"))
	assert.Error(t, err)
}
