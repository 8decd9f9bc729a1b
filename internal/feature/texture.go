package feature

import "math"

// EdgeHistogram returns the MPEG-7 style edge histogram codec: 16 sub-images
// times 5 edge types (vertical, horizontal, 45, 135, non-directional).
func EdgeHistogram(mode Mode) Codec {
	return newCodec(family{
		name:     "edge_histogram",
		extract:  edgeHistogram,
		quantize: linear(0, 1),
	}, mode)
}

// Tamura returns the Tamura texture codec: coarseness, contrast and a
// 16-bin directionality histogram.
func Tamura(mode Mode) Codec {
	return newCodec(family{
		name:     "tamura",
		extract:  tamura,
		quantize: quantizeTamura,
	}, mode)
}

// Gabor returns the Gabor texture codec: mean and deviation of filter
// response magnitude for 4 scales and 6 orientations.
func Gabor(mode Mode) Codec {
	return newCodec(family{
		name:     "gabor",
		extract:  gabor,
		quantize: sqrtScale,
	}, mode)
}

const (
	edgeGrid      = 32
	edgeThreshold = 11.0
)

// edgeStrengths applies the five 2x2 edge filters to block quadrant means.
// Order: vertical, horizontal, 45, 135, non-directional.
func edgeStrengths(q [4]float64) [5]float64 {
	return [5]float64{
		math.Abs(q[0] - q[1] + q[2] - q[3]),
		math.Abs(q[0] + q[1] - q[2] - q[3]),
		math.Abs(math.Sqrt2*q[0] - math.Sqrt2*q[3]),
		math.Abs(math.Sqrt2*q[1] - math.Sqrt2*q[2]),
		math.Abs(2*q[0] - 2*q[1] - 2*q[2] + 2*q[3]),
	}
}

func edgeHistogram(r *raster) []float64 {
	var counts [16][5]float64
	var blocks [16]float64

	r.blocks(edgeGrid, func(b block) {
		sub := (b.by*4/edgeGrid)*4 + b.bx*4/edgeGrid
		blocks[sub]++

		strengths := edgeStrengths(b.q)
		best, bestVal := -1, edgeThreshold
		for t, s := range strengths {
			if s >= bestVal {
				best, bestVal = t, s
			}
		}
		if best >= 0 {
			counts[sub][best]++
		}
	})

	out := make([]float64, 0, 80)
	for sub := 0; sub < 16; sub++ {
		for t := 0; t < 5; t++ {
			out = append(out, counts[sub][t]/blocks[sub])
		}
	}
	return out
}

func tamura(r *raster) []float64 {
	g := r.grayPlane()
	out := []float64{coarseness(g, r.w, r.h), contrast(g)}
	return append(out, directionality(g, r.w, r.h)...)
}

func quantizeTamura(v []float64) []byte {
	out := make([]byte, len(v))
	out[0] = toByte(v[0] / 32)
	out[1] = toByte(v[1] / 128)
	for i := 2; i < len(v); i++ {
		out[i] = toByte(v[i])
	}
	return out
}

// integral is a summed-area table with a zero border row and column.
type integral struct {
	w, h int
	sum  []float64
}

func newIntegral(g []float64, w, h int) *integral {
	in := &integral{w: w, h: h, sum: make([]float64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += g[y*w+x]
			in.sum[(y+1)*(w+1)+x+1] = in.sum[y*(w+1)+x+1] + row
		}
	}
	return in
}

// mean returns the average over the window centered at (cx,cy), clipped.
func (in *integral) mean(cx, cy, half int) float64 {
	x0, y0 := max(0, cx-half), max(0, cy-half)
	x1, y1 := min(in.w, cx+half), min(in.h, cy+half)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	s := in.sum[y1*(in.w+1)+x1] - in.sum[y0*(in.w+1)+x1] -
		in.sum[y1*(in.w+1)+x0] + in.sum[y0*(in.w+1)+x0]
	return s / float64((x1-x0)*(y1-y0))
}

func coarseness(g []float64, w, h int) float64 {
	in := newIntegral(g, w, h)
	var total float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bestSize, bestE := 2.0, -1.0
			for k := 1; k <= 5; k++ {
				half := 1 << (k - 1)
				eh := math.Abs(in.mean(x+half, y, half) - in.mean(x-half, y, half))
				ev := math.Abs(in.mean(x, y+half, half) - in.mean(x, y-half, half))
				if e := math.Max(eh, ev); e > bestE {
					bestE, bestSize = e, float64(int(1)<<k)
				}
			}
			total += bestSize
		}
	}
	return total / float64(w*h)
}

func contrast(g []float64) float64 {
	n := float64(len(g))
	var mean float64
	for _, v := range g {
		mean += v
	}
	mean /= n

	var m2, m4 float64
	for _, v := range g {
		d := (v - mean) * (v - mean)
		m2 += d
		m4 += d * d
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	kurtosis := m4 / (m2 * m2)
	return math.Sqrt(m2) / math.Pow(kurtosis, 0.25)
}

const directionThreshold = 12.0

func directionality(g []float64, w, h int) []float64 {
	hist := make([]float64, 16)
	at := func(x, y int) float64 {
		return g[min(h-1, max(0, y))*w+min(w-1, max(0, x))]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dh := (at(x+1, y-1) + at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - at(x-1, y) - at(x-1, y+1)) / 3
			dv := (at(x-1, y+1) + at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - at(x, y-1) - at(x+1, y-1)) / 3
			if (math.Abs(dh)+math.Abs(dv))/2 < directionThreshold {
				continue
			}
			theta := math.Atan2(dv, dh)
			if theta < 0 {
				theta += math.Pi
			}
			hist[min(15, int(theta/math.Pi*16))]++
		}
	}
	return normalizeSum(hist)
}

const gaborSide = 64

var (
	gaborWavelengths = [4]float64{4, 6, 9, 13}
	gaborOrientation = 6
)

type kernel struct {
	half      int
	real, img []float64
}

func gaborKernel(lambda, theta float64) kernel {
	sigma := 0.56 * lambda
	half := int(math.Ceil(2 * sigma))
	side := 2*half + 1
	k := kernel{half: half, real: make([]float64, side*side), img: make([]float64, side*side)}

	var envelope, realMean float64
	for y := -half; y <= half; y++ {
		for x := -half; x <= half; x++ {
			xr := float64(x)*math.Cos(theta) + float64(y)*math.Sin(theta)
			yr := -float64(x)*math.Sin(theta) + float64(y)*math.Cos(theta)
			e := math.Exp(-(xr*xr + 0.25*yr*yr) / (2 * sigma * sigma))
			i := (y+half)*side + x + half
			k.real[i] = e * math.Cos(2*math.Pi*xr/lambda)
			k.img[i] = e * math.Sin(2*math.Pi*xr/lambda)
			envelope += e
			realMean += k.real[i]
		}
	}
	realMean /= float64(side * side)
	for i := range k.real {
		k.real[i] = (k.real[i] - realMean) / envelope
		k.img[i] /= envelope
	}
	return k
}

func gabor(r *raster) []float64 {
	// Resample luminance to a fixed square so every scale sees the same grid.
	g := make([]float64, gaborSide*gaborSide)
	for gy := 0; gy < gaborSide; gy++ {
		y0, y1 := span(gy, gaborSide, r.h)
		for gx := 0; gx < gaborSide; gx++ {
			x0, x1 := span(gx, gaborSide, r.w)
			g[gy*gaborSide+gx] = r.meanGray(x0, x1, y0, y1) / 255
		}
	}
	at := func(x, y int) float64 {
		return g[min(gaborSide-1, max(0, y))*gaborSide+min(gaborSide-1, max(0, x))]
	}

	out := make([]float64, 0, 2*len(gaborWavelengths)*gaborOrientation)
	for _, lambda := range gaborWavelengths {
		for o := 0; o < gaborOrientation; o++ {
			k := gaborKernel(lambda, float64(o)*math.Pi/float64(gaborOrientation))
			side := 2*k.half + 1

			var sum, sumSq float64
			for y := 0; y < gaborSide; y++ {
				for x := 0; x < gaborSide; x++ {
					var re, im float64
					for ky := -k.half; ky <= k.half; ky++ {
						for kx := -k.half; kx <= k.half; kx++ {
							p := at(x+kx, y+ky)
							i := (ky+k.half)*side + kx + k.half
							re += p * k.real[i]
							im += p * k.img[i]
						}
					}
					m := math.Hypot(re, im)
					sum += m
					sumSq += m * m
				}
			}
			n := float64(gaborSide * gaborSide)
			mean := sum / n
			out = append(out, mean, math.Sqrt(math.Max(0, sumSq/n-mean*mean)))
		}
	}
	return out
}
