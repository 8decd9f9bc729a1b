// Package feature extracts visual-content descriptors from decoded images.
//
// Each descriptor family (color layout, edge histogram, CEDD, ...) is wrapped
// in a Codec that turns an image.Image into one named Field. Codecs are pure
// and safe for concurrent use.
package feature

import (
	"fmt"
	"image"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// Encoding is the wire form of a field payload.
type Encoding int

const (
	// EncodingCompact stores a quantized byte vector in Field.Payload.
	EncodingCompact Encoding = iota
	// EncodingVerbose stores full-precision values as text in Field.Text.
	EncodingVerbose
)

// String returns the encoding name used in storage and logs.
func (e Encoding) String() string {
	switch e {
	case EncodingCompact:
		return "compact"
	case EncodingVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// Mode selects precision and encoding of a codec.
// Fields extracted in one mode must never be compared with the other.
type Mode int

const (
	// ModeDescriptive keeps full precision and encodes as text.
	ModeDescriptive Mode = iota
	// ModeFast quantizes to bytes and encodes as binary.
	ModeFast
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeFast {
		return "fast"
	}
	return "descriptive"
}

// Encoding returns the encoding a codec in this mode produces.
func (m Mode) Encoding() Encoding {
	if m == ModeFast {
		return EncodingCompact
	}
	return EncodingVerbose
}

// Field is one named descriptor value inside a Record.
// Exactly one of Payload (compact) or Text (verbose) is set.
type Field struct {
	Name     string
	Encoding Encoding
	Payload  []byte
	Text     string
}

// Size returns the stored size of the field value in bytes.
func (f Field) Size() int {
	if f.Encoding == EncodingCompact {
		return len(f.Payload)
	}
	return len(f.Text)
}

// Record is the indexed form of one image: its canonical path plus
// the ordered descriptor fields. Fields are only ever appended.
type Record struct {
	Identifier string
	Fields     []Field
}

// NewRecord creates an empty record for identifier.
func NewRecord(identifier string) *Record {
	return &Record{Identifier: identifier}
}

// Add appends a field. Names must be unique within a record.
func (r *Record) Add(f Field) error {
	for _, existing := range r.Fields {
		if existing.Name == f.Name {
			return amerrors.New(amerrors.ErrCodeDuplicateField,
				fmt.Sprintf("duplicate field %q", f.Name), nil).
				WithDetail("identifier", r.Identifier)
		}
	}
	r.Fields = append(r.Fields, f)
	return nil
}

// Field returns the field with the given name.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns field names in order.
func (r *Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Codec wraps one descriptor algorithm.
type Codec interface {
	// Name returns the namespaced field name this codec produces.
	Name() string

	// Encoding returns the fixed encoding of produced fields.
	Encoding() Encoding

	// Extract computes the descriptor for img.
	Extract(img image.Image) (Field, error)
}
