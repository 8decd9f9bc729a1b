// Package builder turns decoded images into feature records.
//
// A Builder holds an immutable, ordered set of feature codecs chosen at
// construction. Build calls share no mutable state, so one builder can be
// used from several goroutines during a run.
package builder

import (
	"image"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

// Builder produces one Record from an image and its identifier.
type Builder interface {
	Build(img image.Image, identifier string) (*feature.Record, error)
}

// Generic runs its codecs in order against the same image.
// Any codec failure fails the whole call; no partial record is returned.
type Generic struct {
	codecs []feature.Codec
}

// NewGeneric creates a builder over the given codecs.
func NewGeneric(codecs ...feature.Codec) *Generic {
	return &Generic{codecs: append([]feature.Codec(nil), codecs...)}
}

// Fields returns the field names this builder produces, in order.
func (g *Generic) Fields() []string {
	names := make([]string, len(g.codecs))
	for i, c := range g.codecs {
		names[i] = c.Name()
	}
	return names
}

// Build implements Builder.
func (g *Generic) Build(img image.Image, identifier string) (*feature.Record, error) {
	rec := feature.NewRecord(identifier)
	for _, c := range g.codecs {
		f, err := c.Extract(img)
		if err != nil {
			return nil, amerrors.BuildError(identifier, err)
		}
		if err := rec.Add(f); err != nil {
			return nil, amerrors.BuildError(identifier, err)
		}
	}
	return rec, nil
}

// SimpleOptions switches the three MPEG-7 style descriptors of a simple builder.
type SimpleOptions struct {
	ScalableColor bool
	ColorLayout   bool
	EdgeHistogram bool
	Mode          feature.Mode
}

// NewSimple creates a builder over the enabled MPEG-7 style descriptors,
// always in the order scalable color, color layout, edge histogram.
func NewSimple(opts SimpleOptions) *Generic {
	var codecs []feature.Codec
	if opts.ScalableColor {
		codecs = append(codecs, feature.ScalableColor(opts.Mode))
	}
	if opts.ColorLayout {
		codecs = append(codecs, feature.ColorLayout(opts.Mode))
	}
	if opts.EdgeHistogram {
		codecs = append(codecs, feature.EdgeHistogram(opts.Mode))
	}
	return NewGeneric(codecs...)
}
