// Package ooxml reads parts and relationships out of zip-packaged office
// and ebook documents.
package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// Namespaces matched by the extractors.
const (
	NSDrawingML = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSRelDoc    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// ParseRelationshipsFromReader parses relsPath keyed by relationship ID. A
// missing part yields an empty map.
func ParseRelationshipsFromReader(zr *zip.Reader, relsPath string) (map[string]Relationship, error) {
	f := findFile(zr, relsPath)
	if f == nil {
		return make(map[string]Relationship), nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rels relationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	result := make(map[string]Relationship, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		result[rel.ID] = rel
	}
	return result, nil
}

// ReadFileFromZip reads a part by its exact name.
func ReadFileFromZip(zr *zip.Reader, name string) ([]byte, error) {
	f := findFile(zr, name)
	if f == nil {
		return nil, fmt.Errorf("file %q not found in ZIP", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RelsPathFor returns the .rels part that describes filePath.
func RelsPathFor(filePath string) string {
	dir, base := path.Dir(filePath), path.Base(filePath)
	if dir == "." {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target against the part that
// references it. Absolute targets are package-rooted.
func ResolveTarget(basePath, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(basePath), target)
}
