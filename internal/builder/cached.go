package builder

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanvis/internal/feature"
)

// DefaultCacheSize is the number of extracted field sets kept in memory.
const DefaultCacheSize = 512

// Cached wraps a Builder with an LRU keyed by pixel content, so re-indexing
// unchanged images (watch mode, renamed files) skips extraction.
type Cached struct {
	inner Builder
	cache *lru.Cache[string, []feature.Field]
}

// NewCached creates a cached builder. Non-positive sizes use DefaultCacheSize.
func NewCached(inner Builder, cacheSize int) *Cached {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []feature.Field](cacheSize)
	return &Cached{inner: inner, cache: cache}
}

// Build implements Builder. Cached fields are re-attached to identifier.
func (c *Cached) Build(img image.Image, identifier string) (*feature.Record, error) {
	key, ok := pixelKey(img)
	if ok {
		if fields, hit := c.cache.Get(key); hit {
			return &feature.Record{Identifier: identifier, Fields: append([]feature.Field(nil), fields...)}, nil
		}
	}

	rec, err := c.inner.Build(img, identifier)
	if err != nil {
		return nil, err
	}
	if ok {
		c.cache.Add(key, cloneFields(rec.Fields))
	}
	return rec, nil
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// cloneFields copies fields including their payloads, so no two records
// share a backing array with each other or with the cache.
func cloneFields(fields []feature.Field) []feature.Field {
	out := make([]feature.Field, len(fields))
	for i, f := range fields {
		f.Payload = bytes.Clone(f.Payload)
		out[i] = f
	}
	return out
}

// pixelKey hashes bounds and pixel data. Unknown image types are hashed
// through At, which is slower but still cheaper than extraction.
func pixelKey(img image.Image) (string, bool) {
	if img == nil {
		return "", false
	}
	h := sha256.New()
	b := img.Bounds()
	var dims [16]byte
	binary.LittleEndian.PutUint32(dims[0:], uint32(b.Min.X))
	binary.LittleEndian.PutUint32(dims[4:], uint32(b.Min.Y))
	binary.LittleEndian.PutUint32(dims[8:], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(dims[12:], uint32(b.Dy()))
	h.Write(dims[:])

	switch m := img.(type) {
	case *image.RGBA:
		h.Write([]byte("rgba"))
		h.Write(m.Pix)
	case *image.NRGBA:
		h.Write([]byte("nrgba"))
		h.Write(m.Pix)
	case *image.Gray:
		h.Write([]byte("gray"))
		h.Write(m.Pix)
	case *image.YCbCr:
		h.Write([]byte("ycbcr"))
		h.Write(m.Y)
		h.Write(m.Cb)
		h.Write(m.Cr)
	default:
		var px [8]byte
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				binary.LittleEndian.PutUint16(px[0:], uint16(r))
				binary.LittleEndian.PutUint16(px[2:], uint16(g))
				binary.LittleEndian.PutUint16(px[4:], uint16(bl))
				binary.LittleEndian.PutUint16(px[6:], uint16(a))
				h.Write(px[:])
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), true
}
