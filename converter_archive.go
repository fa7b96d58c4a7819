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
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// archiveEntry is one file collected from, or packed into, a container.
type archiveEntry struct {
	Name string
	Data []byte
}

// maxArchiveExpansion bounds the total bytes unpacked from one input.
var maxArchiveExpansion int64 = 1 << 30

var errArchiveTooLarge = errors.New("archive expands beyond the size limit")

// expansion tracks how much of the unpack budget is left.
type expansion struct {
	left int64
}

func newExpansion() *expansion {
	return &expansion{left: maxArchiveExpansion}
}

// read reads r to the end, failing once the budget runs out.
func (e *expansion) read(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, e.left+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > e.left {
		return nil, errArchiveTooLarge
	}
	e.left -= int64(len(body))
	return body, nil
}

// ArchiveConverter repacks archive contents into another container format.
type ArchiveConverter struct{}

// NewArchiveConverter creates a new ArchiveConverter.
func NewArchiveConverter() *ArchiveConverter {
	return &ArchiveConverter{}
}

func (c *ArchiveConverter) Convert(ctx context.Context, in Input) (*ConverterResult, error) {
	entries, err := collectEntries(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in.report(50)

	var buf bytes.Buffer
	switch in.Target {
	case "zip":
		if err := writeZip(&buf, entries, flate.DefaultCompression); err != nil {
			return nil, fmt.Errorf("write zip: %w", err)
		}
		return &ConverterResult{Data: buf.Bytes(), MIMEType: "application/zip"}, nil

	case "tar":
		if err := writeTar(&buf, entries); err != nil {
			return nil, fmt.Errorf("write tar: %w", err)
		}
		return &ConverterResult{Data: buf.Bytes(), MIMEType: "application/x-tar"}, nil

	case "gz", "tar.gz":
		// gzip holds a single member; several entries go out as a zip.
		if len(entries) != 1 {
			if err := writeZip(&buf, entries, flate.DefaultCompression); err != nil {
				return nil, fmt.Errorf("write zip: %w", err)
			}
			return &ConverterResult{Data: buf.Bytes(), MIMEType: "application/zip"}, nil
		}
		if err := writeGzip(&buf, entries[0]); err != nil {
			return nil, fmt.Errorf("write gzip: %w", err)
		}
		return &ConverterResult{Data: buf.Bytes(), MIMEType: "application/gzip"}, nil
	}

	return nil, &UnsupportedFormatError{
		Category:  CategoryArchive,
		Direction: DirectionOutput,
		Extension: in.Target,
	}
}

// collectEntries lists the files held by the input. Anything that is not a
// readable container is treated as a single file.
func collectEntries(in Input) ([]archiveEntry, error) {
	name := path.Base(strings.ReplaceAll(in.Filename, `\`, "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	lower := strings.ToLower(name)

	switch {
	case in.Ext == "zip":
		entries, err := readZip(in.Data, newExpansion())
		if err != nil {
			return nil, stageError(ErrContainerParse, "zip", err)
		}
		return entries, nil

	case in.Ext == "tar":
		entries, err := readTar(bytes.NewReader(in.Data), newExpansion())
		if err != nil {
			return nil, stageError(ErrContainerParse, "tar", err)
		}
		return entries, nil

	case in.Ext == "gz" || in.Ext == "tgz":
		budget := newExpansion()
		raw, err := gunzip(in.Data, budget)
		if err != nil {
			return nil, stageError(ErrContainerParse, in.Ext, err)
		}
		if in.Ext == "tgz" || strings.HasSuffix(lower, ".tar.gz") || sniffIs(raw, "application/x-tar") {
			entries, err := readTar(bytes.NewReader(raw), newExpansion())
			if err != nil {
				return nil, stageError(ErrContainerParse, "tar.gz", err)
			}
			return entries, nil
		}
		inner := name[:len(name)-len(".gz")]
		if inner == "" {
			inner = "file"
		}
		return []archiveEntry{{Name: inner, Data: raw}}, nil
	}

	return []archiveEntry{{Name: name, Data: in.Data}}, nil
}

func readZip(data []byte, budget *expansion) ([]archiveEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var entries []archiveEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.UncompressedSize64 > uint64(budget.left) {
			return nil, fmt.Errorf("%s: %w", f.Name, errArchiveTooLarge)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		body, err := budget.read(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, archiveEntry{Name: f.Name, Data: body})
	}
	return entries, nil
}

func readTar(r io.Reader, budget *expansion) ([]archiveEntry, error) {
	tr := tar.NewReader(r)
	var entries []archiveEntry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size > budget.left {
			return nil, fmt.Errorf("%s: %w", hdr.Name, errArchiveTooLarge)
		}
		body, err := budget.read(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		entries = append(entries, archiveEntry{Name: hdr.Name, Data: body})
	}
}

func gunzip(data []byte, budget *expansion) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return budget.read(zr)
}

// writeZip deflates every entry at the given flate level.
func writeZip(w io.Writer, entries []archiveEntry, level int) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	now := time.Now()
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return err
		}
		if _, err := fw.Write(e.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeTar(w io.Writer, entries []archiveEntry) error {
	tw := tar.NewWriter(w)
	now := time.Now()
	for _, e := range entries {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     e.Name,
			Mode:     0o644,
			Size:     int64(len(e.Data)),
			ModTime:  now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(e.Data); err != nil {
			return err
		}
	}
	return tw.Close()
}

func writeGzip(w io.Writer, e archiveEntry) error {
	zw := gzip.NewWriter(w)
	zw.Name = path.Base(e.Name)
	zw.ModTime = time.Now()
	if _, err := zw.Write(e.Data); err != nil {
		return err
	}
	return zw.Close()
}
