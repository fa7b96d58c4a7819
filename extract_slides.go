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
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

// pptxText returns the text of every slide in presentation order, each
// followed by its speaker notes.
func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PPTX ZIP: %w", err)
	}
	slides, err := slideOrder(zr)
	if err != nil {
		return "", fmt.Errorf("get slide order: %w", err)
	}

	var out strings.Builder
	for i, slidePath := range slides {
		slideData, err := ooxml.ReadFileFromZip(zr, slidePath)
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "Slide %d\n", i+1)
		out.WriteString(bodiesText(slideData))
		out.WriteString("\n")

		if notesPath := notesFor(zr, slidePath); notesPath != "" {
			if notesData, err := ooxml.ReadFileFromZip(zr, notesPath); err == nil {
				if notes := bodiesText(notesData); notes != "" {
					out.WriteString("Notes:\n")
					out.WriteString(notes)
					out.WriteString("\n")
				}
			}
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}

// slideOrder resolves the sldIdLst of presentation.xml through its rels.
// Without it, slide parts are taken in name order.
func slideOrder(zr *zip.Reader) ([]string, error) {
	const presPath = "ppt/presentation.xml"
	presData, err := ooxml.ReadFileFromZip(zr, presPath)
	if err != nil {
		return nil, err
	}
	rels, _ := ooxml.ParseRelationshipsFromReader(zr, ooxml.RelsPathFor(presPath))

	var paths []string
	dec := xml.NewDecoder(bytes.NewReader(presData))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local != "id" || attr.Name.Space != ooxml.NSRelDoc {
				continue
			}
			if rel, ok := rels[attr.Value]; ok {
				paths = append(paths, ooxml.ResolveTarget(presPath, rel.Target))
			}
		}
	}

	if len(paths) == 0 {
		for _, f := range zr.File {
			if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
				paths = append(paths, f.Name)
			}
		}
		sort.Strings(paths)
	}
	return paths, nil
}

func notesFor(zr *zip.Reader, slidePath string) string {
	rels, err := ooxml.ParseRelationshipsFromReader(zr, ooxml.RelsPathFor(slidePath))
	if err != nil {
		return ""
	}
	for _, rel := range rels {
		if strings.HasSuffix(rel.Type, "/notesSlide") {
			return ooxml.ResolveTarget(slidePath, rel.Target)
		}
	}
	return ""
}

// bodiesText joins the a:t runs of every txBody, one line per a:p.
func bodiesText(data []byte) string {
	var lines []string
	var line strings.Builder
	inText := false

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "t" && t.Name.Space == ooxml.NSDrawingML:
				inText = true
			case t.Name.Local == "br" && t.Name.Space == ooxml.NSDrawingML:
				line.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "t":
				inText = false
			case t.Name.Local == "p" && t.Name.Space == ooxml.NSDrawingML:
				if s := strings.TrimSpace(line.String()); s != "" {
					lines = append(lines, s)
				}
				line.Reset()
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Record types in the PowerPoint Document stream that hold slide text.
const (
	pptTextCharsAtom = 0x0FA0 // UTF-16LE
	pptTextBytesAtom = 0x0FA8 // low bytes of UTF-16, i.e. Latin-1
)

var errNoPPTStream = errors.New("no PowerPoint Document stream")

// pptText reads text atoms from a legacy binary presentation.
func pptText(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open PPT: %w", err)
	}

	var stream []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name == "PowerPoint Document" {
			if stream, err = io.ReadAll(entry); err != nil {
				return "", fmt.Errorf("read PowerPoint Document: %w", err)
			}
			break
		}
	}
	if len(stream) == 0 {
		return "", errNoPPTStream
	}
	return strings.Join(pptAtoms(stream), "\n"), nil
}

// pptAtoms walks the record tree. Containers (recVer 0xF) are entered;
// other records are skipped by length.
func pptAtoms(stream []byte) []string {
	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	latin1 := charmap.ISO8859_1.NewDecoder()

	var texts []string
	for i := 0; i+8 <= len(stream); {
		verInstance := binary.LittleEndian.Uint16(stream[i:])
		recType := binary.LittleEndian.Uint16(stream[i+2:])
		recLen := int(binary.LittleEndian.Uint32(stream[i+4:]))
		body := i + 8

		if verInstance&0x000F == 0x000F {
			i = body
			continue
		}
		if recLen < 0 || body+recLen > len(stream) {
			break
		}

		var (
			text []byte
			err  error
		)
		switch recType {
		case pptTextCharsAtom:
			text, err = utf16le.Bytes(stream[body : body+recLen])
		case pptTextBytesAtom:
			text, err = latin1.Bytes(stream[body : body+recLen])
		}
		if err == nil && len(text) > 0 {
			// Paragraphs inside an atom are separated by vertical tab or CR.
			s := strings.NewReplacer("\r", "\n", "\v", "\n").Replace(string(text))
			if s = strings.TrimSpace(s); s != "" {
				texts = append(texts, s)
			}
		}
		i = body + recLen
	}
	return texts
}
