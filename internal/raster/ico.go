package raster

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"io"
)

type iconDir struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

type iconDirEntry struct {
	Width       uint8
	Height      uint8
	ColorCount  uint8
	Reserved    uint8
	Planes      uint16
	BitCount    uint16
	BytesInRes  uint32
	ImageOffset uint32
}

// encodeICO writes a single-image icon with a PNG payload.
func encodeICO(w io.Writer, img image.Image) error {
	img = fitIcon(img)

	var payload bytes.Buffer
	if err := png.Encode(&payload, img); err != nil {
		return err
	}

	b := img.Bounds()
	entry := iconDirEntry{
		Width:       iconDimension(b.Dx()),
		Height:      iconDimension(b.Dy()),
		Planes:      1,
		BitCount:    32,
		BytesInRes:  uint32(payload.Len()),
		ImageOffset: 6 + 16,
	}
	if err := binary.Write(w, binary.LittleEndian, iconDir{Type: 1, Count: 1}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, entry); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// iconDimension encodes 256 as 0, as the format requires.
func iconDimension(n int) uint8 {
	if n >= maxIconSize {
		return 0
	}
	return uint8(n)
}
