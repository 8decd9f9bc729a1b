package acquire

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Registered image formats.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIFThumbnails reads the JPEG thumbnail stored in EXIF metadata.
type EXIFThumbnails struct{}

// ReadThumbnail implements ThumbnailReader.
func (EXIFThumbnails) ReadThumbnail(data []byte) (img image.Image, err error) {
	// goexif can panic on truncated IFD tables.
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("malformed exif: %v", r)
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb, err := x.JpegThumbnail()
	if err != nil {
		return nil, ErrNoThumbnail
	}
	return jpeg.Decode(bytes.NewReader(thumb))
}

// NoThumbnails disables tier one.
type NoThumbnails struct{}

// ReadThumbnail implements ThumbnailReader.
func (NoThumbnails) ReadThumbnail([]byte) (image.Image, error) {
	return nil, ErrNoThumbnail
}

// StdDecoder decodes any registered format: JPEG, PNG, GIF, BMP, TIFF, WebP.
type StdDecoder struct{}

// Decode implements Decoder.
func (StdDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
