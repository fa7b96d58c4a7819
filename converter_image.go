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

package fileconv

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"

	"github.com/signintech/gopdf"

	"github.com/nicholasgasior/fileconv-go/internal/raster"
)

const defaultImageQuality = 0.95

// ImageConverter re-encodes raster images or wraps them in a one-page PDF.
type ImageConverter struct {
	quality float64
}

// NewImageConverter creates a new ImageConverter. quality applies to lossy
// targets and must be in (0,1].
func NewImageConverter(quality float64) *ImageConverter {
	if quality <= 0 || quality > 1 {
		quality = defaultImageQuality
	}
	return &ImageConverter{quality: quality}
}

func (c *ImageConverter) Convert(ctx context.Context, in Input) (*ConverterResult, error) {
	img, _, err := raster.Decode(in.Data)
	if err != nil {
		return nil, stageError(ErrDecode, in.Ext, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.report(30)

	b := img.Bounds()
	surface := raster.NewSurface(b.Dx(), b.Dy())

	if in.Target == "pdf" {
		payload := in.Data
		if !sniffIs(in.Data, "image/jpeg") && !sniffIs(in.Data, "image/png") {
			surface.Draw(img)
			var buf bytes.Buffer
			if err := surface.Encode(&buf, "png", c.quality); err != nil {
				return nil, stageError(ErrEncode, "png", err)
			}
			payload = buf.Bytes()
		}
		out, err := imagePDF(payload, b.Dx(), b.Dy())
		if err != nil {
			return nil, stageError(ErrEncode, "pdf", err)
		}
		in.report(100)
		return &ConverterResult{Data: out, MIMEType: "application/pdf"}, nil
	}

	format := in.Target
	if format == "svg" {
		format = "png"
	}
	if !raster.SupportsAlpha(format) {
		surface.Fill(color.White)
	}
	surface.Draw(img)

	var buf bytes.Buffer
	if err := surface.Encode(&buf, format, c.quality); err != nil {
		return nil, stageError(ErrEncode, in.Target, err)
	}
	in.report(90)

	if in.Target == "svg" {
		return &ConverterResult{
			Data:     svgWrap(buf.Bytes(), b.Dx(), b.Dy()),
			MIMEType: "image/svg+xml",
		}, nil
	}
	return &ConverterResult{Data: buf.Bytes(), MIMEType: imageMIME(in.Target)}, nil
}

// imagePDF builds a single page sized to the image with the image filling it.
func imagePDF(payload []byte, w, h int) ([]byte, error) {
	page := gopdf.Rect{W: float64(w), H: float64(h)}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: page})
	pdf.AddPage()

	holder, err := gopdf.ImageHolderByBytes(payload)
	if err != nil {
		return nil, err
	}
	if err := pdf.ImageByHolder(holder, 0, 0, &page); err != nil {
		return nil, err
	}
	return pdf.GetBytesPdfReturnErr()
}

// svgWrap embeds a PNG in an SVG document. The result is not a vector trace.
func svgWrap(png []byte, w, h int) []byte {
	return fmt.Appendf(nil,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><image href="data:image/png;base64,%s" width="%d" height="%d"/></svg>`,
		w, h, base64.StdEncoding.EncodeToString(png), w, h)
}

func imageMIME(target string) string {
	switch target {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "ico":
		return "image/x-icon"
	case "svg":
		return "image/svg+xml"
	}
	return "image/" + target
}
