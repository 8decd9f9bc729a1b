package feature

import "math"

// JpegCoefficientHistogram returns a 192-bin histogram of non-zero quantized
// DCT coefficients. The raster is split into 8x8 blocks as a baseline JPEG
// encoder would; each bin is the share of blocks whose coefficient at that
// position survives quantization, for Y, Cb and Cr in turn.
func JpegCoefficientHistogram(mode Mode) Codec {
	return newCodec(family{
		name:     "jpeg_coefficient_histogram",
		extract:  jpegCoefficientHistogram,
		quantize: sqrtScale,
	}, mode)
}

// Standard JPEG quantization tables (quality 50), row-major.
var (
	lumaQuant = [64]float64{
		16, 11, 10, 16, 24, 40, 51, 61,
		12, 12, 14, 19, 26, 58, 60, 55,
		14, 13, 16, 24, 40, 57, 69, 56,
		14, 17, 22, 29, 51, 87, 80, 62,
		18, 22, 37, 56, 68, 109, 103, 77,
		24, 35, 55, 64, 81, 104, 113, 92,
		49, 64, 78, 87, 103, 121, 120, 101,
		72, 92, 95, 98, 112, 100, 103, 99,
	}
	chromaQuant = [64]float64{
		17, 18, 24, 47, 99, 99, 99, 99,
		18, 21, 26, 66, 99, 99, 99, 99,
		24, 26, 56, 99, 99, 99, 99, 99,
		47, 66, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	}
)

func jpegCoefficientHistogram(r *raster) []float64 {
	hist := make([]float64, 192)
	bw, bh := (r.w+7)/8, (r.h+7)/8

	var y, cb, cr [64]float64
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			for j := 0; j < 8; j++ {
				// Partial edge blocks repeat the last row and column.
				py := min(by*8+j, r.h-1)
				for i := 0; i < 8; i++ {
					px := min(bx*8+i, r.w-1)
					p := py*r.w + px
					red, green, blue := r.r[p], r.g[p], r.b[p]
					y[j*8+i] = 0.299*red + 0.587*green + 0.114*blue - 128
					cb[j*8+i] = -0.168736*red - 0.331264*green + 0.5*blue
					cr[j*8+i] = 0.5*red - 0.418688*green - 0.081312*blue
				}
			}
			countNonZero(hist[0:64], dct8(y), &lumaQuant)
			countNonZero(hist[64:128], dct8(cb), &chromaQuant)
			countNonZero(hist[128:192], dct8(cr), &chromaQuant)
		}
	}

	blocks := float64(bw * bh)
	for i := range hist {
		hist[i] /= blocks
	}
	return hist
}

func countNonZero(bins []float64, coeffs [64]float64, quant *[64]float64) {
	for i, c := range coeffs {
		if math.Round(c/quant[i]) != 0 {
			bins[i]++
		}
	}
}
