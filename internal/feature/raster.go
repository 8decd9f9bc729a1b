package feature

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// maxSide bounds the working resolution of every descriptor.
const maxSide = 128

var (
	errNilImage      = errors.New("nil image")
	errEmptyImage    = errors.New("zero-dimension image")
	errNoConvergence = errors.New("descriptor produced a non-finite value")
)

// raster is the normalized working copy of an image: RGB in [0,255],
// downscaled so the longest side is at most maxSide.
type raster struct {
	w, h    int
	r, g, b []float64
}

func newRaster(img image.Image) (*raster, error) {
	if img == nil {
		return nil, errNilImage
	}
	src := img.Bounds()
	if src.Dx() <= 0 || src.Dy() <= 0 {
		return nil, errEmptyImage
	}

	w, h := src.Dx(), src.Dy()
	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	n := w * h
	r := &raster{
		w: w, h: h,
		r: make([]float64, n),
		g: make([]float64, n),
		b: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		r.r[i] = float64(dst.Pix[i*4])
		r.g[i] = float64(dst.Pix[i*4+1])
		r.b[i] = float64(dst.Pix[i*4+2])
	}
	return r, nil
}

func (r *raster) gray(i int) float64 {
	return 0.299*r.r[i] + 0.587*r.g[i] + 0.114*r.b[i]
}

func (r *raster) grayPlane() []float64 {
	out := make([]float64, r.w*r.h)
	for i := range out {
		out[i] = r.gray(i)
	}
	return out
}

// hsv returns hue in [0,360), saturation and value in [0,1].
func hsv(red, green, blue float64) (h, s, v float64) {
	red, green, blue = red/255, green/255, blue/255
	hi := math.Max(red, math.Max(green, blue))
	lo := math.Min(red, math.Min(green, blue))
	v = hi
	d := hi - lo
	if hi > 0 {
		s = d / hi
	}
	if d == 0 {
		return 0, s, v
	}
	switch hi {
	case red:
		h = 60 * math.Mod((green-blue)/d, 6)
	case green:
		h = 60 * ((blue-red)/d + 2)
	default:
		h = 60 * ((red-green)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// span returns the half-open pixel range of cell i out of n over length size.
// The range is never empty, so tiny images still map every cell to a pixel.
func span(i, n, size int) (int, int) {
	lo := i * size / n
	hi := (i + 1) * size / n
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// halves splits [lo,hi) into two non-empty ranges that overlap when hi-lo is 1.
func halves(lo, hi int) (int, int, int, int) {
	mid := lo + (hi-lo)/2
	return lo, max(mid, lo+1), min(mid, hi-1), hi
}

// block holds the luminance quadrant means and mean color of one grid cell.
type block struct {
	bx, by int
	// q is top-left, top-right, bottom-left, bottom-right.
	q    [4]float64
	mean [3]float64
}

// blocks partitions the raster into an n x n grid.
func (r *raster) blocks(n int, fn func(b block)) {
	for by := 0; by < n; by++ {
		y0, y1 := span(by, n, r.h)
		ty0, ty1, by0, by1 := halves(y0, y1)
		for bx := 0; bx < n; bx++ {
			x0, x1 := span(bx, n, r.w)
			lx0, lx1, rx0, rx1 := halves(x0, x1)

			b := block{bx: bx, by: by}
			b.q[0] = r.meanGray(lx0, lx1, ty0, ty1)
			b.q[1] = r.meanGray(rx0, rx1, ty0, ty1)
			b.q[2] = r.meanGray(lx0, lx1, by0, by1)
			b.q[3] = r.meanGray(rx0, rx1, by0, by1)
			b.mean = r.meanColor(x0, x1, y0, y1)
			fn(b)
		}
	}
}

func (r *raster) meanGray(x0, x1, y0, y1 int) float64 {
	var sum float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += r.gray(y*r.w + x)
		}
	}
	return sum / float64((x1-x0)*(y1-y0))
}

func (r *raster) meanColor(x0, x1, y0, y1 int) [3]float64 {
	var c [3]float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := y*r.w + x
			c[0] += r.r[i]
			c[1] += r.g[i]
			c[2] += r.b[i]
		}
	}
	n := float64((x1 - x0) * (y1 - y0))
	return [3]float64{c[0] / n, c[1] / n, c[2] / n}
}

// normalizeSum scales v so its elements sum to 1. Zero vectors are left alone.
func normalizeSum(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return v
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}
