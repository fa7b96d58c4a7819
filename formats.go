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
	"slices"
	"strings"
)

// Category groups formats that share a conversion strategy.
type Category string

const (
	CategoryDocument  Category = "document"
	CategoryImage     Category = "image"
	CategoryVideo     Category = "video"
	CategoryAudio     Category = "audio"
	CategoryArchive   Category = "archive"
	CategoryEbook     Category = "ebook"
	CategoryFont      Category = "font"
	CategoryCAD3D     Category = "cad3d"
	CategoryDeveloper Category = "developer"
	CategorySubtitle  Category = "subtitle"
)

// Formats is one row of the format registry.
type Formats struct {
	Category Category
	Name     string
	In       []string
	Out      []string
}

// registry is declared in detection order: the first category whose input
// list holds an extension wins.
var registry = []Formats{
	{
		Category: CategoryDocument,
		Name:     "Documents",
		In:       []string{"pdf", "doc", "docx", "rtf", "txt", "odt", "ods", "odp", "ppt", "pptx", "xls", "xlsx", "csv", "html", "xml", "md"},
		Out:      []string{"pdf", "docx", "txt", "rtf", "odt", "html", "pptx", "xlsx", "csv"},
	},
	{
		Category: CategoryImage,
		Name:     "Images",
		In:       []string{"jpg", "jpeg", "png", "webp", "gif", "bmp", "tiff", "heic", "heif", "svg", "ico", "psd", "raw", "cr2", "nef", "arw"},
		Out:      []string{"jpg", "png", "webp", "gif", "bmp", "tiff", "svg", "pdf", "ico"},
	},
	{
		Category: CategoryVideo,
		Name:     "Video",
		In:       []string{"mp4", "mov", "mkv", "avi", "webm", "m4v", "flv", "wmv", "3gp", "mpeg"},
		Out:      []string{"mp4", "webm", "mov", "avi", "mkv", "gif", "mp3"},
	},
	{
		Category: CategoryAudio,
		Name:     "Audio",
		In:       []string{"mp3", "wav", "aac", "m4a", "flac", "ogg", "opus", "wma", "aiff", "amr"},
		Out:      []string{"mp3", "wav", "m4a", "flac", "ogg", "opus", "aac"},
	},
	{
		Category: CategoryArchive,
		Name:     "Archives",
		In:       []string{"zip", "rar", "7z", "tar", "tar.gz", "gz", "bz2", "iso"},
		Out:      []string{"zip", "7z", "tar", "tar.gz", "gz"},
	},
	{
		Category: CategoryEbook,
		Name:     "eBooks",
		In:       []string{"epub", "mobi", "azw", "azw3", "fb2", "pdf"},
		Out:      []string{"epub", "mobi", "pdf", "txt"},
	},
	{
		Category: CategoryFont,
		Name:     "Fonts",
		In:       []string{"ttf", "otf", "woff", "woff2", "eot"},
		Out:      []string{"ttf", "otf", "woff", "woff2"},
	},
	{
		Category: CategoryCAD3D,
		Name:     "CAD & 3D",
		In:       []string{"dwg", "dxf", "stl", "obj", "fbx", "step", "iges"},
		Out:      []string{"stl", "obj", "fbx", "pdf"},
	},
	{
		Category: CategoryDeveloper,
		Name:     "Developer",
		In:       []string{"json", "xml", "yaml", "csv", "sql", "md", "base64"},
		Out:      []string{"json", "xml", "yaml", "csv", "txt", "sql"},
	},
	{
		Category: CategorySubtitle,
		Name:     "Subtitles",
		In:       []string{"srt", "vtt", "ass", "sub"},
		Out:      []string{"srt", "vtt", "txt"},
	},
}

// Registry returns a copy of the format table in detection order.
func Registry() []Formats {
	out := make([]Formats, len(registry))
	for i, f := range registry {
		out[i] = Formats{
			Category: f.Category,
			Name:     f.Name,
			In:       slices.Clone(f.In),
			Out:      slices.Clone(f.Out),
		}
	}
	return out
}

// Categories lists every category in detection order.
func Categories() []Category {
	out := make([]Category, len(registry))
	for i, f := range registry {
		out[i] = f.Category
	}
	return out
}

// Lookup returns the registry row for cat.
func Lookup(cat Category) (Formats, bool) {
	for _, f := range registry {
		if f.Category == cat {
			return Formats{Category: f.Category, Name: f.Name, In: slices.Clone(f.In), Out: slices.Clone(f.Out)}, true
		}
	}
	return Formats{}, false
}

// Accepts reports whether cat lists ext as an input format.
func Accepts(cat Category, ext string) bool {
	f, ok := Lookup(cat)
	return ok && slices.Contains(f.In, normalizeExt(ext))
}

// Offers reports whether cat lists ext as an output format.
func Offers(cat Category, ext string) bool {
	f, ok := Lookup(cat)
	return ok && slices.Contains(f.Out, normalizeExt(ext))
}

// Valid reports whether cat is a known category.
func (c Category) Valid() bool {
	_, ok := Lookup(c)
	return ok
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
