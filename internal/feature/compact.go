package feature

import "math"

// CEDD returns the color and edge directivity codec: 6 texture areas
// times 24 colors, 3-bit quantized in fast mode.
func CEDD(mode Mode) Codec {
	return newCodec(family{
		name:     "cedd",
		extract:  cedd,
		quantize: table(compactLevels),
	}, mode)
}

// FCTH returns the fuzzy color and texture histogram codec: 8 wavelet
// texture classes times 24 colors.
func FCTH(mode Mode) Codec {
	return newCodec(family{
		name:     "fcth",
		extract:  fcth,
		quantize: table(compactLevels),
	}, mode)
}

// JCD returns the joint composite codec: 7 texture areas times 24 colors
// merged from CEDD and FCTH.
func JCD(mode Mode) Codec {
	return newCodec(family{
		name:     "jcd",
		extract:  jcd,
		quantize: table(compactLevels),
	}, mode)
}

const (
	compactColors = 24
	compactGrid   = 40
)

// compactLevels are the 3-bit reconstruction values shared by CEDD, FCTH and JCD.
var compactLevels = []float64{0, 0.0059, 0.0237, 0.0614, 0.1139, 0.1791, 0.2609, 0.3417}

// hue boundaries in degrees: red, orange, yellow, green, cyan, blue, magenta.
var hueBounds = [7]float64{20, 45, 70, 160, 200, 280, 330}

// color24 maps an RGB color onto black, gray, white, or one of seven hues
// in three tones.
func color24(c [3]float64) int {
	h, s, v := hsv(c[0], c[1], c[2])
	switch {
	case s < 0.2 && v < 0.25, v < 0.15:
		return 0
	case s < 0.2 && v > 0.8:
		return 2
	case s < 0.2:
		return 1
	}

	hue := 0 // red, also above the last bound
	for i, b := range hueBounds {
		if h < b {
			hue = i
			break
		}
	}

	tone := 2
	switch {
	case v < 0.4:
		tone = 0
	case v < 0.75:
		tone = 1
	}
	return 3 + hue*3 + tone
}

const (
	ceddEdgeThreshold  = 14.0
	ceddAreaThreshold  = 0.98
	ceddNonDirectional = 0.68
)

// ceddAreas returns the texture areas a block votes for: 0 non-edge,
// 1 non-directional, 2 horizontal, 3 vertical, 4 diagonal 45, 5 diagonal 135.
func ceddAreas(q [4]float64) []int {
	s := edgeStrengths(q)
	peak := 0.0
	for _, x := range s {
		peak = math.Max(peak, x)
	}
	if peak < ceddEdgeThreshold {
		return []int{0}
	}

	var areas []int
	if s[4]/peak > ceddNonDirectional {
		areas = append(areas, 1)
	}
	if s[1]/peak > ceddAreaThreshold {
		areas = append(areas, 2)
	}
	if s[0]/peak > ceddAreaThreshold {
		areas = append(areas, 3)
	}
	if s[2]/peak > ceddAreaThreshold {
		areas = append(areas, 4)
	}
	if s[3]/peak > ceddAreaThreshold {
		areas = append(areas, 5)
	}
	return areas
}

func cedd(r *raster) []float64 {
	hist := make([]float64, 6*compactColors)
	r.blocks(compactGrid, func(b block) {
		c := color24(b.mean)
		for _, a := range ceddAreas(b.q) {
			hist[a*compactColors+c]++
		}
	})
	return normalizeSum(hist)
}

// Haar detail thresholds on 0..255 luminance.
const (
	fcthHL = 4.0
	fcthLH = 4.0
	fcthHH = 3.0
)

// fcthTexture encodes which one-level Haar detail bands carry energy:
// bit 0 HL (vertical), bit 1 LH (horizontal), bit 2 HH (diagonal).
func fcthTexture(q [4]float64) int {
	hl := math.Abs(q[0]-q[1]+q[2]-q[3]) / 4
	lh := math.Abs(q[0]+q[1]-q[2]-q[3]) / 4
	hh := math.Abs(q[0]-q[1]-q[2]+q[3]) / 4

	t := 0
	if hl > fcthHL {
		t |= 1
	}
	if lh > fcthLH {
		t |= 2
	}
	if hh > fcthHH {
		t |= 4
	}
	return t
}

func fcth(r *raster) []float64 {
	hist := make([]float64, 8*compactColors)
	r.blocks(compactGrid, func(b block) {
		hist[fcthTexture(b.q)*compactColors+color24(b.mean)]++
	})
	return normalizeSum(hist)
}

func jcd(r *raster) []float64 {
	ce, fc := cedd(r), fcth(r)
	at := func(v []float64, area, c int) float64 { return v[area*compactColors+c] }

	out := make([]float64, 7*compactColors)
	for c := 0; c < compactColors; c++ {
		out[0*compactColors+c] = (at(ce, 0, c) + at(fc, 0, c)) / 2
		out[1*compactColors+c] = (at(ce, 1, c) + at(fc, 7, c)) / 2
		out[2*compactColors+c] = (at(ce, 2, c) + at(fc, 2, c)) / 2
		out[3*compactColors+c] = (at(ce, 3, c) + at(fc, 1, c)) / 2
		out[4*compactColors+c] = at(ce, 4, c)
		out[5*compactColors+c] = at(ce, 5, c)
		out[6*compactColors+c] = at(fc, 3, c) + at(fc, 4, c) + at(fc, 5, c) + at(fc, 6, c)
	}
	return normalizeSum(out)
}
