// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package raster decodes images into an RGBA drawing surface and encodes the
// surface into the raster formats the converter can write.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedEncoding is returned by Encode for formats with no encoder.
var ErrUnsupportedEncoding = errors.New("raster: no encoder for format")

// maxIconSize is the largest edge an ICO entry can describe.
const maxIconSize = 256

// ErrTooLarge is returned by Decode for images whose declared size
// exceeds MaxPixels.
var ErrTooLarge = errors.New("raster: image dimensions too large")

// MaxPixels bounds the width*height Decode will allocate for.
var MaxPixels = 64 << 20

// Decode decodes any registered raster format. The header is checked
// against MaxPixels before any pixel data is read.
func Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("raster: %s has empty dimensions", format)
	}
	if cfg.Width > MaxPixels/cfg.Height {
		return nil, format, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return image.Decode(bytes.NewReader(data))
}

// Surface is an RGBA canvas with the dimensions of the decoded source.
type Surface struct {
	img *image.RGBA
}

// NewSurface allocates a transparent surface.
func NewSurface(w, h int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Fill paints the whole surface with c.
func (s *Surface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Draw composites src onto the surface at the origin.
func (s *Surface) Draw(src image.Image) {
	draw.Draw(s.img, s.img.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Image returns the underlying canvas.
func (s *Surface) Image() image.Image { return s.img }

// Bounds returns the surface size.
func (s *Surface) Bounds() image.Rectangle { return s.img.Bounds() }

// Encode writes the surface in the given format. quality in (0,1] applies to
// lossy encoders only.
func (s *Surface) Encode(w io.Writer, format string, quality float64) error {
	switch format {
	case "png":
		return png.Encode(w, s.img)
	case "jpg", "jpeg":
		q := int(math.Round(quality * 100))
		if q < 1 || q > 100 {
			q = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, s.img, &jpeg.Options{Quality: q})
	case "gif":
		return gif.Encode(w, s.img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case "bmp":
		return bmp.Encode(w, s.img)
	case "tiff", "tif":
		return tiff.Encode(w, s.img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "ico":
		return encodeICO(w, s.img)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format)
}

// SupportsAlpha reports whether format keeps transparency. Formats that
// don't are flattened onto white first.
func SupportsAlpha(format string) bool {
	switch format {
	case "jpg", "jpeg", "bmp":
		return false
	}
	return true
}

// fitIcon scales img down so neither edge exceeds maxIconSize.
func fitIcon(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxIconSize && h <= maxIconSize {
		return img
	}
	scale := math.Min(float64(maxIconSize)/float64(w), float64(maxIconSize)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
