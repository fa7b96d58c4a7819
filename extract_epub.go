package fileconv

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

type epubMetadata struct {
	title     string
	authors   []string
	language  string
	publisher string
	date      string
}

type manifestItem struct {
	href      string
	mediaType string
}

type epubPackage struct {
	meta     epubMetadata
	manifest map[string]manifestItem
	spine    []string
}

// epubText renders the metadata header followed by every spine document in
// reading order.
func epubText(data []byte, keepDataURIs bool) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open EPUB ZIP: %w", err)
	}
	opfPath, err := findOPFPath(zr)
	if err != nil {
		return "", fmt.Errorf("find OPF: %w", err)
	}
	opfData, err := ooxml.ReadFileFromZip(zr, opfPath)
	if err != nil {
		return "", fmt.Errorf("read OPF: %w", err)
	}
	pkg := parseOPF(opfData)

	var out strings.Builder
	if pkg.meta.title != "" {
		fmt.Fprintf(&out, "# %s\n\n", pkg.meta.title)
	}
	for _, kv := range [][2]string{
		{"Authors", strings.Join(pkg.meta.authors, ", ")},
		{"Language", pkg.meta.language},
		{"Publisher", pkg.meta.publisher},
		{"Date", pkg.meta.date},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&out, "%s: %s\n", kv[0], kv[1])
		}
	}
	out.WriteString("\n")

	for _, ref := range pkg.spine {
		item, ok := pkg.manifest[ref]
		if !ok || !isHTMLItem(item) {
			continue
		}
		doc, err := ooxml.ReadFileFromZip(zr, ooxml.ResolveTarget(opfPath, item.href))
		if err != nil {
			continue
		}
		text, err := htmlText(doc, keepDataURIs)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		out.WriteString(text)
		out.WriteString("\n\n")
	}
	return out.String(), nil
}

func isHTMLItem(item manifestItem) bool {
	switch strings.ToLower(path.Ext(item.href)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.Contains(item.mediaType, "html")
}

// findOPFPath reads the package document path from META-INF/container.xml.
func findOPFPath(zr *zip.Reader) (string, error) {
	data, err := ooxml.ReadFileFromZip(zr, "META-INF/container.xml")
	if err != nil {
		return "", err
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "rootfile" {
			for _, attr := range se.Attr {
				if attr.Name.Local == "full-path" {
					return attr.Value, nil
				}
			}
		}
	}
	return "", errors.New("rootfile not found in container.xml")
}

func parseOPF(data []byte) epubPackage {
	pkg := epubPackage{manifest: make(map[string]manifestItem)}

	var inMetadata bool
	var current string

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch local := t.Name.Local; local {
			case "metadata":
				inMetadata = true
			case "title", "creator", "language", "publisher", "date":
				if inMetadata {
					current = local
				}
			case "item":
				var id string
				var item manifestItem
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "id":
						id = attr.Value
					case "href":
						item.href = attr.Value
					case "media-type":
						item.mediaType = attr.Value
					}
				}
				if id != "" {
					pkg.manifest[id] = item
				}
			case "itemref":
				for _, attr := range t.Attr {
					if attr.Name.Local == "idref" {
						pkg.spine = append(pkg.spine, attr.Value)
					}
				}
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if !inMetadata || text == "" {
				continue
			}
			switch current {
			case "title":
				if pkg.meta.title == "" {
					pkg.meta.title = text
				}
			case "creator":
				pkg.meta.authors = append(pkg.meta.authors, text)
			case "language":
				pkg.meta.language = text
			case "publisher":
				pkg.meta.publisher = text
			case "date":
				pkg.meta.date = text
			}

		case xml.EndElement:
			if t.Name.Local == "metadata" {
				inMetadata = false
			}
			current = ""
		}
	}
	return pkg
}
