package builder

import (
	"fmt"
	"sort"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

// Catalog names accepted by ByName and the index.builder config key.
const (
	NameDefault              = "default"
	NameExtensive            = "extensive"
	NameColorOnly            = "color-only"
	NameFast                 = "fast"
	NameColorLayout          = "color-layout"
	NameScalableColor        = "scalable-color"
	NameEdgeHistogram        = "edge-histogram"
	NameAutoColorCorrelogram = "auto-color-correlogram"
	NameFastCorrelogram      = "fast-auto-color-correlogram"
	NameJpegCoefficients     = "jpeg-coefficient-histogram"
	NameCEDD                 = "cedd"
	NameFCTH                 = "fcth"
	NameJCD                  = "jcd"
	NameColorHistogram       = "color-histogram"
	NameTamura               = "tamura"
	NameGabor                = "gabor"
	NameFull                 = "full"
)

// Default indexes color layout and edge histogram in descriptive mode.
func Default() Builder {
	return NewSimple(SimpleOptions{ColorLayout: true, EdgeHistogram: true})
}

// Extensive indexes all three MPEG-7 style descriptors in descriptive mode.
func Extensive() Builder {
	return NewSimple(SimpleOptions{ScalableColor: true, ColorLayout: true, EdgeHistogram: true})
}

// ColorOnly indexes scalable color and color layout.
func ColorOnly() Builder {
	return NewSimple(SimpleOptions{ScalableColor: true, ColorLayout: true})
}

// Fast indexes color layout only.
func Fast() Builder {
	return NewSimple(SimpleOptions{ColorLayout: true})
}

// ColorLayout indexes the compact color layout descriptor.
func ColorLayout() Builder { return NewGeneric(feature.ColorLayout(feature.ModeFast)) }

// ScalableColor indexes the compact scalable color descriptor.
func ScalableColor() Builder { return NewGeneric(feature.ScalableColor(feature.ModeFast)) }

// EdgeHistogram indexes the compact edge histogram descriptor.
func EdgeHistogram() Builder { return NewGeneric(feature.EdgeHistogram(feature.ModeFast)) }

// AutoColorCorrelogram indexes the compact correlogram. Extraction is
// the slowest of the color descriptors.
func AutoColorCorrelogram() Builder {
	return NewGeneric(feature.AutoColorCorrelogram(feature.ModeFast))
}

// FastAutoColorCorrelogram trades correlogram accuracy for speed.
func FastAutoColorCorrelogram() Builder {
	return NewGeneric(feature.FastAutoColorCorrelogram(feature.ModeFast))
}

// JpegCoefficientHistogram indexes the compact block-DCT coefficient histogram.
func JpegCoefficientHistogram() Builder {
	return NewGeneric(feature.JpegCoefficientHistogram(feature.ModeFast))
}

// CEDD indexes the compact CEDD descriptor.
func CEDD() Builder { return NewGeneric(feature.CEDD(feature.ModeFast)) }

// FCTH indexes the compact FCTH descriptor.
func FCTH() Builder { return NewGeneric(feature.FCTH(feature.ModeFast)) }

// JCD indexes the compact joint composite descriptor.
func JCD() Builder { return NewGeneric(feature.JCD(feature.ModeFast)) }

// ColorHistogram indexes the compact RGB histogram.
func ColorHistogram() Builder { return NewGeneric(feature.ColorHistogram(feature.ModeFast)) }

// Tamura indexes the compact Tamura texture descriptor.
func Tamura() Builder { return NewGeneric(feature.Tamura(feature.ModeFast)) }

// Gabor indexes the compact Gabor texture descriptor.
func Gabor() Builder { return NewGeneric(feature.Gabor(feature.ModeFast)) }

// Full chains every available descriptor into one record.
func Full() Builder {
	return NewComposite(
		Extensive(),
		AutoColorCorrelogram(),
		CEDD(),
		FCTH(),
		ColorHistogram(),
		JpegCoefficientHistogram(),
		Tamura(),
		Gabor(),
	)
}

// Entry describes one catalog builder.
type Entry struct {
	Name        string
	Description string
	New         func() Builder
}

var catalog = map[string]Entry{
	NameDefault:              {NameDefault, "color layout + edge histogram (descriptive)", Default},
	NameExtensive:            {NameExtensive, "scalable color + color layout + edge histogram (descriptive)", Extensive},
	NameColorOnly:            {NameColorOnly, "scalable color + color layout (descriptive)", ColorOnly},
	NameFast:                 {NameFast, "color layout only (descriptive)", Fast},
	NameColorLayout:          {NameColorLayout, "color layout (compact)", ColorLayout},
	NameScalableColor:        {NameScalableColor, "scalable color (compact)", ScalableColor},
	NameEdgeHistogram:        {NameEdgeHistogram, "edge histogram (compact)", EdgeHistogram},
	NameAutoColorCorrelogram: {NameAutoColorCorrelogram, "auto color correlogram (compact, slow)", AutoColorCorrelogram},
	NameFastCorrelogram:      {NameFastCorrelogram, "reduced auto color correlogram (compact)", FastAutoColorCorrelogram},
	NameJpegCoefficients:     {NameJpegCoefficients, "JPEG DCT coefficient histogram (compact)", JpegCoefficientHistogram},
	NameCEDD:                 {NameCEDD, "color and edge directivity (compact)", CEDD},
	NameFCTH:                 {NameFCTH, "fuzzy color and texture histogram (compact)", FCTH},
	NameJCD:                  {NameJCD, "joint composite descriptor (compact)", JCD},
	NameColorHistogram:       {NameColorHistogram, "RGB color histogram (compact)", ColorHistogram},
	NameTamura:               {NameTamura, "Tamura texture (compact)", Tamura},
	NameGabor:                {NameGabor, "Gabor texture (compact)", Gabor},
	NameFull:                 {NameFull, "every descriptor chained", Full},
}

// ByName returns a fresh builder for a catalog name.
func ByName(name string) (Builder, error) {
	e, ok := catalog[name]
	if !ok {
		return nil, amerrors.New(amerrors.ErrCodeUnknownBuilder,
			fmt.Sprintf("unknown builder %q", name), nil).
			WithSuggestion("run 'amanvis builders' to list available builders")
	}
	return e.New(), nil
}

// Names returns all catalog names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns all catalog entries sorted by name.
func Entries() []Entry {
	names := Names()
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = catalog[n]
	}
	return out
}
