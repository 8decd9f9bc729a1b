package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

func TestCatalog_SimpleBuilderFields(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{NameDefault, []string{"descriptor.color_layout", "descriptor.edge_histogram"}},
		{NameExtensive, []string{"descriptor.scalable_color", "descriptor.color_layout", "descriptor.edge_histogram"}},
		{NameColorOnly, []string{"descriptor.scalable_color", "descriptor.color_layout"}},
		{NameFast, []string{"descriptor.color_layout"}},
		{NameScalableColor, []string{"descriptor.scalable_color.fast"}},
		{NameJCD, []string{"descriptor.jcd.fast"}},
		{NameFastCorrelogram, []string{"descriptor.fast_auto_color_correlogram.fast"}},
		{NameJpegCoefficients, []string{"descriptor.jpeg_coefficient_histogram.fast"}},
	}

	img := testImage(24, 16)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ByName(tt.name)
			require.NoError(t, err)

			rec, err := b.Build(img, "/corpus/x.png")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Names())
		})
	}
}

func TestCatalog_FullChainsEveryDescriptor(t *testing.T) {
	rec, err := Full().Build(testImage(40, 30), "/corpus/full.jpg")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"descriptor.scalable_color",
		"descriptor.color_layout",
		"descriptor.edge_histogram",
		"descriptor.auto_color_correlogram.fast",
		"descriptor.cedd.fast",
		"descriptor.fcth.fast",
		"descriptor.color_histogram.fast",
		"descriptor.jpeg_coefficient_histogram.fast",
		"descriptor.tamura.fast",
		"descriptor.gabor.fast",
	}, rec.Names())
}

func TestCatalog_EveryEntryBuilds(t *testing.T) {
	img := testImage(16, 16)
	for _, e := range Entries() {
		if e.Name == NameFull {
			continue // covered above
		}
		t.Run(e.Name, func(t *testing.T) {
			rec, err := e.New().Build(img, "id")
			require.NoError(t, err)
			assert.NotEmpty(t, rec.Fields)
			assert.NotEmpty(t, e.Description)
		})
	}
}

func TestCatalog_ReturnsFreshInstances(t *testing.T) {
	a, err := ByName(NameFull)
	require.NoError(t, err)
	b, err := ByName(NameFull)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
}

func TestByName_UnknownBuilder(t *testing.T) {
	_, err := ByName("sift")

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeUnknownBuilder, amerrors.GetCode(err))
}

func TestNames_AreSorted(t *testing.T) {
	names := Names()
	assert.Len(t, names, 17)
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, NameDefault)
}
