package acquire

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// jpegWithThumbnail builds a JPEG whose APP1 segment carries an EXIF IFD1
// pointing at an embedded JPEG thumbnail.
func jpegWithThumbnail(t *testing.T, full, thumb image.Image) []byte {
	t.Helper()
	thumbData := encodeJPEG(t, thumb)

	le := binary.LittleEndian
	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8)) // IFD0 offset

	// IFD0: no entries, next IFD at 14.
	_ = binary.Write(&tiff, le, uint16(0))
	_ = binary.Write(&tiff, le, uint32(14))

	// IFD1: thumbnail offset and length, data right after the directory.
	const thumbOffset = 14 + 2 + 2*12 + 4
	_ = binary.Write(&tiff, le, uint16(2))
	for _, e := range [][2]uint32{{0x0201, thumbOffset}, {0x0202, uint32(len(thumbData))}} {
		_ = binary.Write(&tiff, le, uint16(e[0]))
		_ = binary.Write(&tiff, le, uint16(4)) // LONG
		_ = binary.Write(&tiff, le, uint32(1))
		_ = binary.Write(&tiff, le, e[1])
	}
	_ = binary.Write(&tiff, le, uint32(0))
	require.Equal(t, thumbOffset, tiff.Len())
	tiff.Write(thumbData)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(encodeJPEG(t, full)[2:]) // main image without its SOI
	return out.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

type countingDecoder struct {
	calls atomic.Int32
	inner Decoder
}

func (d *countingDecoder) Decode(data []byte) (image.Image, error) {
	d.calls.Add(1)
	return d.inner.Decode(data)
}

type stubThumbs struct {
	img image.Image
	err error
}

func (s stubThumbs) ReadThumbnail([]byte) (image.Image, error) { return s.img, s.err }

func TestAcquire_PrefersEmbeddedThumbnail(t *testing.T) {
	// Given: a JPEG with a 16x12 EXIF thumbnail and a 200x150 main image
	data := jpegWithThumbnail(t, fill(200, 150, color.White), fill(16, 12, color.Black))
	path := writeFile(t, "photo.jpg", data)
	dec := &countingDecoder{inner: StdDecoder{}}
	a := New(Options{Decoder: dec})

	// When: acquiring
	img, src, err := a.Acquire(context.Background(), path)

	// Then: the thumbnail is returned and full decode never runs
	require.NoError(t, err)
	assert.Equal(t, SourceThumbnail, src)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
	assert.Equal(t, int32(0), dec.calls.Load())
}

func TestAcquire_FallsBackToFullDecode(t *testing.T) {
	tests := []struct {
		name   string
		thumbs ThumbnailReader
	}{
		{"no exif in file", EXIFThumbnails{}},
		{"thumbnail reader error", stubThumbs{err: errors.New("malformed ifd")}},
		{"empty thumbnail", stubThumbs{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}},
		{"thumbnails disabled", NoThumbnails{}},
	}

	data := encodeJPEG(t, fill(40, 30, color.White))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "plain.jpg", data)
			dec := &countingDecoder{inner: StdDecoder{}}
			a := New(Options{Thumbnails: tt.thumbs, Decoder: dec})

			img, src, err := a.Acquire(context.Background(), path)

			require.NoError(t, err)
			assert.Equal(t, SourceFull, src)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, int32(1), dec.calls.Load())
		})
	}
}

func TestAcquire_DecodesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, fill(5, 7, color.Gray{Y: 10})))
	path := writeFile(t, "a.png", buf.Bytes())

	img, src, err := New(Options{}).Acquire(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, SourceFull, src)
	assert.Equal(t, 7, img.Bounds().Dy())
}

func TestAcquire_CorruptFileIsDecodeError(t *testing.T) {
	path := writeFile(t, "broken.jpg", []byte("definitely not an image"))

	img, _, err := New(Options{}).Acquire(context.Background(), path)

	assert.Nil(t, img)
	require.Error(t, err)
	assert.ErrorIs(t, err, amerrors.ErrDecode)
	assert.False(t, amerrors.IsFatal(err))
}

func TestAcquire_MissingFileIsDecodeError(t *testing.T) {
	_, _, err := New(Options{}).Acquire(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))

	assert.ErrorIs(t, err, amerrors.ErrDecode)
}

func TestAcquire_ThrottledRead(t *testing.T) {
	data := encodeJPEG(t, fill(64, 64, color.White))
	path := writeFile(t, "big.jpg", data)

	a := New(Options{IOLimitBytesPerSec: 1 << 20})
	img, _, err := a.Acquire(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestAcquire_ThrottledReadHonorsCancellation(t *testing.T) {
	path := writeFile(t, "a.jpg", encodeJPEG(t, fill(8, 8, color.White)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(Options{IOLimitBytesPerSec: 16}).Acquire(ctx, path)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "thumbnail", SourceThumbnail.String())
	assert.Equal(t, "full", SourceFull.String())
}
