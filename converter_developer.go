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
	"context"
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/nicholasgasior/fileconv-go/internal/structured"
)

// sqlTable is the table name used for SQL output.
const sqlTable = "data_table"

// DeveloperConverter converts between structured text formats through a
// common value tree.
type DeveloperConverter struct{}

// NewDeveloperConverter creates a new DeveloperConverter.
func NewDeveloperConverter() *DeveloperConverter {
	return &DeveloperConverter{}
}

func (c *DeveloperConverter) Convert(_ context.Context, in Input) (*ConverterResult, error) {
	text := decodeText(in.Data)

	switch in.Ext {
	case "txt", "md", "sql":
		if in.Target == "txt" {
			return &ConverterResult{Data: []byte(text), MIMEType: developerMIME("txt")}, nil
		}
	}

	v, err := c.parse(text, in.Ext)
	if err != nil {
		return nil, err
	}
	out, err := c.serialize(v, in.Target)
	if err != nil {
		return nil, err
	}
	return &ConverterResult{Data: out, MIMEType: developerMIME(in.Target)}, nil
}

func (c *DeveloperConverter) parse(text, ext string) (structured.Value, error) {
	var (
		v   structured.Value
		err error
	)
	switch ext {
	case "json":
		v, err = structured.ParseJSON([]byte(text))
	case "yaml", "yml":
		v, err = structured.ParseYAML([]byte(text))
	case "csv":
		v, err = structured.ParseCSV([]byte(text))
	case "xml":
		v, err = structured.ParseXML([]byte(text))
	case "base64":
		var decoded []byte
		decoded, err = decodeBase64(text)
		v = structured.MappingOf(structured.Field{Key: "data", Value: structured.StringValue(decodeText(decoded))})
	case "txt", "md", "sql":
		v = structured.MappingOf(structured.Field{Key: "text", Value: structured.StringValue(text)})
	default:
		return structured.Value{}, &UnsupportedFormatError{
			Category:  CategoryDeveloper,
			Direction: DirectionInput,
			Extension: ext,
		}
	}
	if err != nil {
		return structured.Value{}, stageError(ErrParse, ext, err)
	}
	return v, nil
}

func (c *DeveloperConverter) serialize(v structured.Value, target string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch target {
	case "json":
		out, err = structured.MarshalJSON(v, true)
	case "yaml", "yml":
		out, err = structured.MarshalYAML(v)
	case "csv":
		out, err = structured.MarshalCSV(v)
	case "xml":
		out, err = structured.MarshalXML(v)
	case "txt":
		if v.Kind == structured.String {
			return []byte(v.Text), nil
		}
		out, err = structured.MarshalJSON(v, true)
	case "sql":
		out, err = structured.MarshalSQL(v, sqlTable)
	default:
		return nil, &UnsupportedFormatError{
			Category:  CategoryDeveloper,
			Direction: DirectionOutput,
			Extension: target,
		}
	}
	if err != nil {
		return nil, stageError(ErrSerialize, target, err)
	}
	return out, nil
}

// decodeBase64 accepts padded or unpadded, standard or URL-safe input and
// ignores whitespace.
func decodeBase64(text string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		var out []byte
		if out, err = enc.DecodeString(clean); err == nil {
			return out, nil
		}
	}
	return nil, err
}

func developerMIME(target string) string {
	switch target {
	case "json":
		return "application/json"
	case "yaml", "yml":
		return "application/yaml"
	case "csv":
		return "text/csv"
	case "xml":
		return "application/xml"
	case "sql":
		return "application/sql"
	}
	return "text/plain"
}
