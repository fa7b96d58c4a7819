package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var (
	jsonCompact = jsoniter.Config{EscapeHTML: false}.Froze()
	jsonPretty  = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()
)

// ParseJSON decodes a JSON document keeping object key order.
func ParseJSON(data []byte) (Value, error) {
	// jsoniter stops at the end of the first value; reject trailing input
	// up front so that "1 2" is not read as 1.
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}

	iter := jsoniter.ParseBytes(jsonCompact, data)
	v := readJSON(iter)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return Value{}, iter.Error
	}
	return v, nil
}

func readJSON(iter *jsoniter.Iterator) Value {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		m := Value{Kind: Mapping}
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			m.Set(key, readJSON(it))
			return it.Error == nil
		})
		return m
	case jsoniter.ArrayValue:
		s := SequenceOf()
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			s.Items = append(s.Items, readJSON(it))
			return it.Error == nil
		})
		return s
	case jsoniter.StringValue:
		return StringValue(iter.ReadString())
	case jsoniter.NumberValue:
		return NumberValue(string(iter.ReadNumber()))
	case jsoniter.BoolValue:
		return BoolValue(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		return NullValue()
	}
	iter.ReportError("readJSON", "unexpected token")
	return NullValue()
}

// MarshalJSON encodes v; pretty selects a two-space indent.
func MarshalJSON(v Value, pretty bool) ([]byte, error) {
	api := jsonCompact
	if pretty {
		api = jsonPretty
	}
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeJSON(stream, v)
	if stream.Error != nil {
		return nil, fmt.Errorf("encode JSON: %w", stream.Error)
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func writeJSON(stream *jsoniter.Stream, v Value) {
	switch v.Kind {
	case Null:
		stream.WriteNil()
	case Bool:
		stream.WriteBool(v.Bool)
	case Number:
		stream.WriteRaw(v.Text)
	case String:
		stream.WriteString(v.Text)
	case Sequence:
		if len(v.Items) == 0 {
			stream.WriteEmptyArray()
			return
		}
		stream.WriteArrayStart()
		for i, item := range v.Items {
			if i > 0 {
				stream.WriteMore()
			}
			writeJSON(stream, item)
		}
		stream.WriteArrayEnd()
	case Mapping:
		if len(v.Fields) == 0 {
			stream.WriteEmptyObject()
			return
		}
		stream.WriteObjectStart()
		for i, f := range v.Fields {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(f.Key)
			writeJSON(stream, f.Value)
		}
		stream.WriteObjectEnd()
	}
}
