package feature

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// fieldPrefix namespaces every descriptor field.
const fieldPrefix = "descriptor."

// family is one descriptor algorithm and its fast-mode quantizer.
type family struct {
	name     string
	extract  func(r *raster) []float64
	quantize func(v []float64) []byte
}

// codec binds a family to a mode. It holds no mutable state.
type codec struct {
	fam  family
	mode Mode
}

func newCodec(f family, mode Mode) Codec {
	return &codec{fam: f, mode: mode}
}

// Name implements Codec.
func (c *codec) Name() string {
	return FieldName(c.fam.name, c.mode)
}

// Encoding implements Codec.
func (c *codec) Encoding() Encoding {
	return c.mode.Encoding()
}

// Extract implements Codec.
func (c *codec) Extract(img image.Image) (Field, error) {
	r, err := newRaster(img)
	if err != nil {
		return Field{}, amerrors.ExtractionError(c.Name(), err)
	}
	return encode(c.Name(), c.mode, c.fam.extract(r), c.fam.quantize)
}

// FieldName returns the stored field name of a descriptor family in a mode.
func FieldName(familyName string, mode Mode) string {
	if mode == ModeFast {
		return fieldPrefix + familyName + ".fast"
	}
	return fieldPrefix + familyName
}

func encode(name string, mode Mode, v []float64, quantize func([]float64) []byte) (Field, error) {
	if len(v) == 0 {
		return Field{}, amerrors.ExtractionError(name, errNoConvergence)
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Field{}, amerrors.ExtractionError(name, errNoConvergence)
		}
	}

	if mode == ModeFast {
		return Field{Name: name, Encoding: EncodingCompact, Payload: quantize(v)}, nil
	}
	return Field{Name: name, Encoding: EncodingVerbose, Text: FormatVector(v)}, nil
}

// FormatVector renders values as space separated shortest-form floats.
func FormatVector(v []float64) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	return sb.String()
}

// Values decodes a field back into numbers. Compact payloads yield the
// quantized byte values, verbose text yields the original floats.
func Values(f Field) ([]float64, error) {
	switch f.Encoding {
	case EncodingCompact:
		out := make([]float64, len(f.Payload))
		for i, b := range f.Payload {
			out[i] = float64(b)
		}
		return out, nil
	case EncodingVerbose:
		parts := strings.Fields(f.Text)
		out := make([]float64, len(parts))
		for i, p := range parts {
			x, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s[%d]: %w", f.Name, i, err)
			}
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown encoding %v", f.Encoding)
	}
}

// VectorFunc computes a descriptor vector directly from an image.
type VectorFunc func(img image.Image) ([]float64, error)

type funcCodec struct {
	name string
	mode Mode
	fn   VectorFunc
}

// Func wraps an arbitrary vector function as a codec named
// "descriptor.<name>". Fast mode quantizes values in [0,1] to bytes.
func Func(name string, mode Mode, fn VectorFunc) Codec {
	return &funcCodec{name: name, mode: mode, fn: fn}
}

func (c *funcCodec) Name() string       { return FieldName(c.name, c.mode) }
func (c *funcCodec) Encoding() Encoding { return c.mode.Encoding() }

func (c *funcCodec) Extract(img image.Image) (Field, error) {
	if _, err := newRaster(img); err != nil {
		return Field{}, amerrors.ExtractionError(c.Name(), err)
	}
	v, err := c.fn(img)
	if err != nil {
		return Field{}, amerrors.ExtractionError(c.Name(), err)
	}
	return encode(c.Name(), c.mode, v, linear(0, 1))
}

// linear maps [lo,hi] onto 0..255, clamping outside values.
func linear(lo, hi float64) func([]float64) []byte {
	return func(v []float64) []byte {
		out := make([]byte, len(v))
		for i, x := range v {
			out[i] = toByte((x - lo) / (hi - lo))
		}
		return out
	}
}

// sqrtScale spreads small normalized histogram values across the byte range.
func sqrtScale(v []float64) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = toByte(math.Sqrt(math.Max(0, x)))
	}
	return out
}

// signedSqrt maps [-1,1] onto 0..255 with sqrt companding around 128.
func signedSqrt(v []float64) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		s := math.Sqrt(math.Min(1, math.Abs(x)))
		if x < 0 {
			s = -s
		}
		out[i] = toByte((s + 1) / 2)
	}
	return out
}

// table quantizes each value to the index of its nearest table entry.
func table(levels []float64) func([]float64) []byte {
	return func(v []float64) []byte {
		out := make([]byte, len(v))
		for i, x := range v {
			best, bestDist := 0, math.Inf(1)
			for j, l := range levels {
				if d := math.Abs(x - l); d < bestDist {
					best, bestDist = j, d
				}
			}
			out[i] = byte(best)
		}
		return out
	}
}

func toByte(unit float64) byte {
	return byte(math.Round(math.Max(0, math.Min(1, unit)) * 255))
}
