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

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

// Extension returns the lower-cased text after the last dot of filename, or
// "" when there is none.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// DetectCategory maps a filename to the first registry category that accepts
// its extension.
func DetectCategory(filename string) (Category, bool) {
	ext := Extension(filename)
	for _, f := range registry {
		if slices.Contains(f.In, ext) {
			return f.Category, true
		}
	}
	return "", false
}

// detectMIMEType sniffs content first and falls back to the extension table.
func detectMIMEType(data []byte, ext string) string {
	mtype := mimetype.Detect(data)
	if mtype.String() != octetStream {
		return mtype.String()
	}
	return mimeFromExtension(ext)
}

// sniffIs reports whether data sniffs as the given MIME type (or a subtype of it).
func sniffIs(data []byte, mime string) bool {
	return mimetype.Detect(data).Is(mime)
}

// mimeFromExtension returns a MIME type for an extension without the dot.
func mimeFromExtension(ext string) string {
	extMap := map[string]string{
		"pdf":      "application/pdf",
		"doc":      "application/msword",
		"docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"rtf":      "application/rtf",
		"odt":      "application/vnd.oasis.opendocument.text",
		"ods":      "application/vnd.oasis.opendocument.spreadsheet",
		"odp":      "application/vnd.oasis.opendocument.presentation",
		"ppt":      "application/vnd.ms-powerpoint",
		"pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"xls":      "application/vnd.ms-excel",
		"html":     "text/html",
		"htm":      "text/html",
		"csv":      "text/csv",
		"txt":      "text/plain",
		"md":       "text/markdown",
		"json":     "application/json",
		"xml":      "application/xml",
		"yaml":     "application/yaml",
		"yml":      "application/yaml",
		"sql":      "application/sql",
		"epub":     "application/epub+zip",
		"zip":      "application/zip",
		"gz":       "application/gzip",
		"tar":      "application/x-tar",
		"srt":      "application/x-subrip",
		"vtt":      "text/vtt",
		"jpg":      "image/jpeg",
		"jpeg":     "image/jpeg",
		"png":      "image/png",
		"gif":      "image/gif",
		"webp":     "image/webp",
		"bmp":      "image/bmp",
		"tiff":     "image/tiff",
		"svg":      "image/svg+xml",
		"ico":      "image/x-icon",
		"mp4":      "video/mp4",
		"webm":     "video/webm",
		"mov":      "video/quicktime",
		"avi":      "video/x-msvideo",
		"mkv":      "video/x-matroska",
		"mp3":      "audio/mpeg",
		"wav":      "audio/wav",
		"m4a":      "audio/mp4",
		"flac":     "audio/flac",
		"ogg":      "audio/ogg",
		"opus":     "audio/opus",
		"aac":      "audio/aac",
		"markdown": "text/markdown",
	}
	if m, ok := extMap[ext]; ok {
		return m
	}
	return octetStream
}
