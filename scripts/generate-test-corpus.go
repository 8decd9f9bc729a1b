//go:build ignore

// Package main generates a synthetic image corpus for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -images 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numImages  = flag.Int("images", 1000, "Number of images to generate")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	width      = flag.Int("width", 640, "Image width")
	height     = flag.Int("height", 480, "Image height")
	thumbEvery = flag.Int("thumbs", 10, "Write a tn_ thumbnail for every Nth image (0 disables)")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// pattern draws one of a few textures so descriptors differ across images.
func pattern(rng *rand.Rand, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	base := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
	kind := rng.Intn(3)
	cell := 8 + rng.Intn(32)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			switch kind {
			case 0: // checkerboard
				if (x/cell+y/cell)%2 == 0 {
					v = 255
				}
			case 1: // diagonal stripes
				v = uint8((x + y) % (cell * 2) * 255 / (cell * 2))
			default: // horizontal gradient with noise
				v = uint8(x*255/w) ^ uint8(rng.Intn(16))
			}
			img.Set(x, y, color.RGBA{
				R: base.R/2 + v/2,
				G: base.G/2 + v/3,
				B: base.B/2 + v/4,
				A: 255,
			})
		}
	}
	return img
}

func write(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if filepath.Ext(path) == ".png" {
		return png.Encode(f, img)
	}
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numImages; i++ {
		dir := filepath.Join(*outputDir, fmt.Sprintf("album%02d", i%20))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
			os.Exit(1)
		}

		ext := ".jpg"
		if i%4 == 0 {
			ext = ".png"
		}
		name := fmt.Sprintf("img%05d%s", i, ext)
		img := pattern(rng, *width, *height)
		if err := write(filepath.Join(dir, name), img); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
			os.Exit(1)
		}

		if *thumbEvery > 0 && i%*thumbEvery == 0 {
			thumb := img.SubImage(image.Rect(0, 0, *width/4, *height/4))
			if err := write(filepath.Join(dir, "tn_"+name), thumb); err != nil {
				fmt.Fprintf(os.Stderr, "write thumbnail: %v\n", err)
				os.Exit(1)
			}
		}
	}

	fmt.Printf("Generated %d images in %s\n", *numImages, *outputDir)
}
