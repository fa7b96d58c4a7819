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
)

// DocumentConverter extracts plain text from office documents and moves
// tables between csv and xlsx. Other targets pass the input through.
type DocumentConverter struct {
	keepDataURIs bool
}

// NewDocumentConverter creates a new DocumentConverter.
func NewDocumentConverter(keepDataURIs bool) *DocumentConverter {
	return &DocumentConverter{keepDataURIs: keepDataURIs}
}

func (c *DocumentConverter) Convert(_ context.Context, in Input) (*ConverterResult, error) {
	switch in.Target {
	case "txt":
		switch in.Ext {
		case "txt", "md", "csv":
			return &ConverterResult{Data: []byte(decodeText(in.Data)), MIMEType: "text/plain"}, nil
		}
		text, ok, err := c.text(in)
		if err != nil {
			return nil, stageError(ErrParse, in.Ext, err)
		}
		if ok {
			return &ConverterResult{Data: []byte(normalizeOutput(text)), MIMEType: "text/plain"}, nil
		}

	case "csv":
		switch in.Ext {
		case "csv":
			return &ConverterResult{Data: in.Data, MIMEType: "text/csv"}, nil
		case "xlsx", "xls":
			sheets, err := readSheets(in.Data, in.Ext)
			if err != nil {
				return nil, stageError(ErrParse, in.Ext, err)
			}
			out, err := sheetCSV(sheets)
			if err != nil {
				return nil, stageError(ErrSerialize, "csv", err)
			}
			return &ConverterResult{Data: out, MIMEType: "text/csv"}, nil
		}

	case "xlsx":
		if in.Ext == "csv" {
			out, err := csvWorkbook(in.Data)
			if err != nil {
				return nil, stageError(ErrSerialize, "xlsx", err)
			}
			return &ConverterResult{Data: out, MIMEType: mimeFromExtension("xlsx")}, nil
		}
	}

	return &ConverterResult{Data: in.Data, MIMEType: passthroughMIME(CategoryDocument, in.Target)}, nil
}

// text extracts readable text. ok is false for sources with no extractor.
func (c *DocumentConverter) text(in Input) (text string, ok bool, err error) {
	switch in.Ext {
	case "xml":
		return decodeText(in.Data), true, nil
	case "html", "htm":
		text, err = htmlText(in.Data, c.keepDataURIs)
	case "docx":
		text, err = docxText(in.Data)
	case "pptx":
		text, err = pptxText(in.Data)
	case "ppt":
		text, err = pptText(in.Data)
	case "pdf":
		text, err = pdfText(in.Data)
	case "xlsx", "xls":
		var sheets []sheet
		if sheets, err = readSheets(in.Data, in.Ext); err == nil {
			text = sheetsText(sheets)
		}
	default:
		return "", false, nil
	}
	return text, true, err
}

// EbookConverter extracts text from epub and pdf books. Other targets pass
// the input through.
type EbookConverter struct {
	keepDataURIs bool
}

// NewEbookConverter creates a new EbookConverter.
func NewEbookConverter(keepDataURIs bool) *EbookConverter {
	return &EbookConverter{keepDataURIs: keepDataURIs}
}

func (c *EbookConverter) Convert(_ context.Context, in Input) (*ConverterResult, error) {
	if in.Target == "txt" {
		var (
			text string
			err  error
		)
		switch in.Ext {
		case "epub":
			text, err = epubText(in.Data, c.keepDataURIs)
		case "pdf":
			text, err = pdfText(in.Data)
		default:
			return &ConverterResult{Data: in.Data, MIMEType: passthroughMIME(CategoryEbook, in.Target)}, nil
		}
		if err != nil {
			return nil, stageError(ErrParse, in.Ext, err)
		}
		return &ConverterResult{Data: []byte(normalizeOutput(text)), MIMEType: "text/plain"}, nil
	}
	return &ConverterResult{Data: in.Data, MIMEType: passthroughMIME(CategoryEbook, in.Target)}, nil
}
