package structured

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ExtraFieldsKey holds cells beyond the header width of a CSV row.
const ExtraFieldsKey = "__parsed_extra"

// ErrNotCSV is returned when a value has no tabular shape.
var ErrNotCSV = errors.New("data is not convertible to CSV")

// ParseCSV reads a CSV document whose first row is the header into a
// sequence of string mappings. Short rows keep only the cells present; blank
// lines are skipped.
func ParseCSV(data []byte) (Value, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows := SequenceOf()
	var header []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Value{}, err
		}
		if header == nil {
			header = uniqueHeader(record)
			continue
		}

		row := Value{Kind: Mapping}
		for i, cell := range record {
			if i < len(header) {
				row.Set(header[i], StringValue(cell))
				continue
			}
			extra, _ := row.Get(ExtraFieldsKey)
			if extra.Kind != Sequence {
				extra = SequenceOf()
			}
			extra.Items = append(extra.Items, StringValue(cell))
			row.Set(ExtraFieldsKey, extra)
		}
		rows.Items = append(rows.Items, row)
	}
	return rows, nil
}

// uniqueHeader renames repeated column names to name_1, name_2, ...
func uniqueHeader(record []string) []string {
	out := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for i, name := range record {
		n := seen[name]
		seen[name] = n + 1
		if n > 0 {
			name = name + "_" + strconv.Itoa(n)
		}
		out[i] = name
	}
	return out
}

// MarshalCSV renders a sequence of mappings with a header made of every key
// in first-seen order. A single mapping is treated as a one-row table and
// sequences of sequences are written as raw rows.
func MarshalCSV(v Value) ([]byte, error) {
	switch v.Kind {
	case Mapping:
		v = SequenceOf(v)
	case Sequence:
	default:
		return nil, ErrNotCSV
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if header := columns(v.Items); len(header) > 0 {
		if err := w.Write(header); err != nil {
			return nil, err
		}
		for _, item := range v.Items {
			record := make([]string, len(header))
			for i, col := range header {
				if cell, ok := item.Get(col); ok {
					record[i] = csvCell(cell)
				}
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	} else {
		for _, item := range v.Items {
			var record []string
			if item.Kind == Sequence {
				for _, cell := range item.Items {
					record = append(record, csvCell(cell))
				}
			} else {
				record = []string{csvCell(item)}
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// columns returns the union of mapping keys across rows, or nil when no row
// is a mapping.
func columns(rows []Value) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.Kind != Mapping {
			continue
		}
		for _, f := range row.Fields {
			if !seen[f.Key] {
				seen[f.Key] = true
				cols = append(cols, f.Key)
			}
		}
	}
	return cols
}

func csvCell(v Value) string {
	if v.Kind == Null {
		return ""
	}
	return strings.TrimRight(v.Scalar(), "\n")
}
