package feature

import "math"

// ColorLayout returns the MPEG-7 style color layout codec: an 8x8 grid of
// mean YCbCr colors, DCT transformed, keeping 6 Y and 3+3 chroma coefficients.
func ColorLayout(mode Mode) Codec {
	return newCodec(family{
		name:     "color_layout",
		extract:  colorLayout,
		quantize: linear(-4, 8),
	}, mode)
}

// ScalableColor returns a 256-bin HSV histogram passed through one Haar level.
func ScalableColor(mode Mode) Codec {
	return newCodec(family{
		name:     "scalable_color",
		extract:  scalableColor,
		quantize: signedSqrt,
	}, mode)
}

// ColorHistogram returns a 512-bin RGB histogram codec.
func ColorHistogram(mode Mode) Codec {
	return newCodec(family{
		name:     "color_histogram",
		extract:  colorHistogram,
		quantize: sqrtScale,
	}, mode)
}

// AutoColorCorrelogram returns the 64-color auto correlogram codec
// over distances 1, 3, 5 and 7.
func AutoColorCorrelogram(mode Mode) Codec {
	return newCodec(family{
		name:     "auto_color_correlogram",
		extract:  autoColorCorrelogram,
		quantize: sqrtScale,
	}, mode)
}

// FastAutoColorCorrelogram returns a reduced correlogram: 32 colors over
// distances 1 and 2 on a half-resolution raster.
func FastAutoColorCorrelogram(mode Mode) Codec {
	return newCodec(family{
		name:     "fast_auto_color_correlogram",
		extract:  fastAutoColorCorrelogram,
		quantize: sqrtScale,
	}, mode)
}

// zigzag holds the first row-major indices of an 8x8 zigzag scan.
var zigzag = [6]int{0, 1, 8, 16, 9, 2}

func colorLayout(r *raster) []float64 {
	var y, cb, cr [64]float64
	for gy := 0; gy < 8; gy++ {
		y0, y1 := span(gy, 8, r.h)
		for gx := 0; gx < 8; gx++ {
			x0, x1 := span(gx, 8, r.w)
			c := r.meanColor(x0, x1, y0, y1)
			i := gy*8 + gx
			y[i] = (0.299*c[0] + 0.587*c[1] + 0.114*c[2]) / 255
			cb[i] = (-0.168736*c[0] - 0.331264*c[1] + 0.5*c[2]) / 255
			cr[i] = (0.5*c[0] - 0.418688*c[1] - 0.081312*c[2]) / 255
		}
	}

	dy, dcb, dcr := dct8(y), dct8(cb), dct8(cr)
	out := make([]float64, 0, 12)
	for _, z := range zigzag {
		out = append(out, dy[z])
	}
	for _, z := range zigzag[:3] {
		out = append(out, dcb[z])
	}
	for _, z := range zigzag[:3] {
		out = append(out, dcr[z])
	}
	return out
}

// dct8 is the orthonormal 2D DCT-II of an 8x8 block.
func dct8(in [64]float64) [64]float64 {
	var out [64]float64
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			var sum float64
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					sum += in[y*8+x] *
						math.Cos(float64(2*x+1)*float64(u)*math.Pi/16) *
						math.Cos(float64(2*y+1)*float64(v)*math.Pi/16)
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = math.Sqrt2 / 2
			}
			if v == 0 {
				cv = math.Sqrt2 / 2
			}
			out[v*8+u] = sum * cu * cv / 4
		}
	}
	return out
}

func scalableColor(r *raster) []float64 {
	hist := make([]float64, 256)
	for i := range r.r {
		h, s, v := hsv(r.r[i], r.g[i], r.b[i])
		hb := min(15, int(h/360*16))
		sb := min(3, int(s*4))
		vb := min(3, int(v*4))
		hist[hb*16+sb*4+vb]++
	}
	normalizeSum(hist)

	out := make([]float64, 256)
	for i := 0; i < 128; i++ {
		out[i] = hist[2*i] + hist[2*i+1]
		out[128+i] = hist[2*i] - hist[2*i+1]
	}
	return out
}

func colorHistogram(r *raster) []float64 {
	hist := make([]float64, 512)
	for i := range r.r {
		rb := int(r.r[i]) >> 5
		gb := int(r.g[i]) >> 5
		bb := int(r.b[i]) >> 5
		hist[rb<<6|gb<<3|bb]++
	}
	return normalizeSum(hist)
}

var (
	correlogramDistances     = []int{1, 3, 5, 7}
	fastCorrelogramDistances = []int{1, 2}
)

func quantize64(r *raster, i int) int {
	return int(r.r[i])>>6<<4 | int(r.g[i])>>6<<2 | int(r.b[i])>>6
}

// quantize32 keeps 2 bits of red and green and 1 bit of blue.
func quantize32(r *raster, i int) int {
	return int(r.r[i])>>6<<3 | int(r.g[i])>>6<<1 | int(r.b[i])>>7
}

func autoColorCorrelogram(r *raster) []float64 {
	colors := make([]int, r.w*r.h)
	for i := range colors {
		colors[i] = quantize64(r, i)
	}
	return correlogram(colors, r.w, r.h, 64, correlogramDistances)
}

func fastAutoColorCorrelogram(r *raster) []float64 {
	w, h := (r.w+1)/2, (r.h+1)/2
	colors := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			colors[y*w+x] = quantize32(r, 2*y*r.w+2*x)
		}
	}
	return correlogram(colors, w, h, 32, fastCorrelogramDistances)
}

// correlogram returns, per color and distance, the probability that a pixel
// on the chessboard ring at that distance has the same color.
func correlogram(colors []int, w, h, nColors int, distances []int) []float64 {
	nd := len(distances)
	hits := make([]float64, nColors*nd)
	totals := make([]float64, nColors*nd)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := colors[y*w+x]
			for k, d := range distances {
				i := c*nd + k
				for dx := -d; dx <= d; dx++ {
					for _, dy := range [2]int{-d, d} {
						hits[i], totals[i] = ringVisit(colors, w, h, x+dx, y+dy, c, hits[i], totals[i])
					}
				}
				for dy := -d + 1; dy <= d-1; dy++ {
					for _, dx := range [2]int{-d, d} {
						hits[i], totals[i] = ringVisit(colors, w, h, x+dx, y+dy, c, hits[i], totals[i])
					}
				}
			}
		}
	}

	out := make([]float64, len(hits))
	for i := range hits {
		if totals[i] > 0 {
			out[i] = hits[i] / totals[i]
		}
	}
	return out
}

func ringVisit(colors []int, w, h, x, y, c int, hits, total float64) (float64, float64) {
	if x < 0 || y < 0 || x >= w || y >= h {
		return hits, total
	}
	if colors[y*w+x] == c {
		hits++
	}
	return hits, total + 1
}
