package encoder

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readPPM parses a binary P6 file as written by encodePPM
func readPPM(t *testing.T, path string) (int, int, []byte) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]string, 3)
	for i := range header {
		header[i], err = r.ReadString('\n')
		require.NoError(t, err)
	}
	require.Equal(t, "P6\n", header[0])
	require.Equal(t, "255\n", header[2])

	var width, height int
	_, err = fmt.Sscanf(header[1], "%d %d", &width, &height)
	require.NoError(t, err)

	pixels, err := io.ReadAll(r)
	require.NoError(t, err)
	return width, height, pixels
}

func TestEncode_PPMRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	enc := New()

	for _, dim := range [][2]int{{1, 1}, {3, 2}, {17, 5}} {
		w, h := dim[0], dim[1]
		rgb := make([]byte, w*h*3)
		rng.Read(rgb)

		path := filepath.Join(t.TempDir(), "frame_00000.ppm")
		require.NoError(t, enc.Encode(path, rgb, w, h, PPM))

		gotW, gotH, pixels := readPPM(t, path)
		assert.Equal(t, w, gotW)
		assert.Equal(t, h, gotH)
		assert.Equal(t, rgb, pixels)
	}
}

func TestEncode_PPMHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.ppm")
	require.NoError(t, New().Encode(path, []byte{1, 2, 3, 4, 5, 6}, 2, 1, PPM))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "P6\n2 1\n255\n\x01\x02\x03\x04\x05\x06", string(data))
}

func TestEncode_JPEG(t *testing.T) {
	enc := New(WithJPEG(DefaultJPEGQuality))
	rgb := make([]byte, 16*8*3)
	for i := range rgb {
		rgb[i] = 200
	}

	path := filepath.Join(t.TempDir(), "frame_00000.jpg")
	require.NoError(t, enc.Encode(path, rgb, 16, 8, JPEG))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestEncode_JPEGWithoutCapability(t *testing.T) {
	enc := New()
	assert.False(t, enc.Supports(JPEG))

	err := enc.Encode(filepath.Join(t.TempDir(), "x.jpg"), make([]byte, 3), 1, 1, JPEG)
	assert.Error(t, err)
}

func TestEncode_InvalidBuffer(t *testing.T) {
	err := New().Encode(filepath.Join(t.TempDir(), "x.ppm"), make([]byte, 5), 1, 2, PPM)
	assert.Error(t, err)
}

func TestEncode_UnwritablePath(t *testing.T) {
	err := New().Encode(filepath.Join(t.TempDir(), "nope", "x.ppm"), make([]byte, 3), 1, 1, PPM)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		token   string
		want    Format
		wantErr bool
	}{
		{"ppm", PPM, false},
		{"jpg", JPEG, false},
		{"JPEG", JPEG, false},
		{"png", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.token)
		if tt.wantErr {
			assert.Error(t, err, tt.token)
			continue
		}
		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.want, got)
	}
}

func TestSuffixAndSupportedString(t *testing.T) {
	assert.Equal(t, "ppm", PPM.Suffix())
	assert.Equal(t, "jpg", JPEG.Suffix())
	assert.Equal(t, "bin", Format(9).Suffix())

	assert.Equal(t, "ppm", SupportedString(New()))
	assert.Equal(t, "ppm|jpg", SupportedString(New(WithJPEG(90))))
}
