// Package acquire loads images from disk for feature extraction.
//
// Acquisition is tiered: an embedded EXIF thumbnail is tried first because
// it is far cheaper to decode than a full-resolution image, and the full
// file is decoded only when no usable thumbnail exists.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// Source records which tier produced a raster.
type Source int

const (
	// SourceThumbnail means the embedded thumbnail was used.
	SourceThumbnail Source = iota
	// SourceFull means the whole file was decoded.
	SourceFull
)

// String returns the source name.
func (s Source) String() string {
	if s == SourceThumbnail {
		return "thumbnail"
	}
	return "full"
}

// ErrNoThumbnail is returned by a ThumbnailReader when the file carries none.
var ErrNoThumbnail = errors.New("no embedded thumbnail")

// ThumbnailReader extracts an embedded preview image from raw file bytes.
type ThumbnailReader interface {
	ReadThumbnail(data []byte) (image.Image, error)
}

// Decoder decodes raw file bytes into an image.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Options configures an Acquirer.
type Options struct {
	// Thumbnails is tier one. Nil uses EXIFThumbnails; use NoThumbnails to disable.
	Thumbnails ThumbnailReader

	// Decoder is tier two. Nil uses StdDecoder.
	Decoder Decoder

	// IOLimitBytesPerSec throttles file reads. Zero disables throttling.
	IOLimitBytesPerSec int
}

// Acquirer reads and decodes images. Safe for concurrent use.
type Acquirer struct {
	thumbs  ThumbnailReader
	decoder Decoder
	limiter *rate.Limiter
}

// New creates an Acquirer.
func New(opts Options) *Acquirer {
	a := &Acquirer{thumbs: opts.Thumbnails, decoder: opts.Decoder}
	if a.thumbs == nil {
		a.thumbs = EXIFThumbnails{}
	}
	if a.decoder == nil {
		a.decoder = StdDecoder{}
	}
	if opts.IOLimitBytesPerSec > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(opts.IOLimitBytesPerSec), opts.IOLimitBytesPerSec)
	}
	return a
}

// Acquire returns the raster for path, preferring the embedded thumbnail.
// Thumbnail failures are logged and never fail the call; a DecodeError is
// returned only when the full decode fails as well.
func (a *Acquirer) Acquire(ctx context.Context, path string) (image.Image, Source, error) {
	data, err := a.read(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, SourceFull, ctx.Err()
		}
		return nil, SourceFull, amerrors.DecodeError(path, err)
	}

	img, err := a.thumbs.ReadThumbnail(data)
	if err == nil && usable(img) {
		return img, SourceThumbnail, nil
	}
	if err != nil && !errors.Is(err, ErrNoThumbnail) {
		slog.Debug("thumbnail unavailable, decoding full image",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}

	img, err = a.decoder.Decode(data)
	if err != nil {
		return nil, SourceFull, amerrors.DecodeError(path, err)
	}
	if !usable(img) {
		return nil, SourceFull, amerrors.DecodeError(path, fmt.Errorf("decoded image has no pixels"))
	}
	return img, SourceFull, nil
}

func usable(img image.Image) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	return b.Dx() > 0 && b.Dy() > 0
}

// read loads the whole file, waiting on the limiter per chunk.
func (a *Acquirer) read(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if a.limiter == nil {
		return io.ReadAll(f)
	}

	var buf bytes.Buffer
	chunk := make([]byte, min(a.limiter.Burst(), 64*1024))
	for {
		n, rerr := f.Read(chunk)
		if n > 0 {
			if err := a.limiter.WaitN(ctx, n); err != nil {
				return nil, err
			}
			buf.Write(chunk[:n])
		}
		if rerr == io.EOF {
			return buf.Bytes(), nil
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}
