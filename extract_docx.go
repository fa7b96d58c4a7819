package fileconv

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

// docxText walks word/document.xml and returns paragraph text, one line per
// paragraph. Table cells are tab-separated and rows end a line.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open DOCX ZIP: %w", err)
	}
	doc, err := ooxml.ReadFileFromZip(zr, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("read document.xml: %w", err)
	}

	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
		inRun  bool
		cells  []string
		depth  int // table nesting
	)
	flush := func() {
		text := strings.TrimRight(para.String(), " ")
		para.Reset()
		if depth > 0 {
			if len(cells) == 0 {
				cells = append(cells, "")
			}
			last := &cells[len(cells)-1]
			if *last != "" && text != "" {
				*last += " "
			}
			*last += text
			return
		}
		out.WriteString(text)
		out.WriteString("\n")
	}

	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					cells = cells[:0]
				}
			case "tc":
				if depth == 1 {
					cells = append(cells, "")
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				flush()
			case "tr":
				if depth == 1 {
					out.WriteString(strings.Join(cells, "\t"))
					out.WriteString("\n")
				}
			case "tbl":
				depth--
			}
		}
	}
	return out.String(), nil
}
