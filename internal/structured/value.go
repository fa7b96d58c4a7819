// Package structured holds the value tree shared by the developer-format
// parsers and serializers, plus one parse/serialize pair per format.
package structured

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a closed recursive variant. Numbers keep their source literal so
// that re-serialization does not change precision.
type Value struct {
	Kind   Kind
	Bool   bool
	Text   string
	Items  []Value
	Fields []Field
}

// Field is one entry of a Mapping. Field order is insertion order.
type Field struct {
	Key   string
	Value Value
}

func NullValue() Value { return Value{Kind: Null} }

func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }

// NumberValue wraps a JSON-compatible numeric literal.
func NumberValue(lit string) Value { return Value{Kind: Number, Text: lit} }

func StringValue(s string) Value { return Value{Kind: String, Text: s} }

func SequenceOf(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: Sequence, Items: items}
}

// MappingOf builds a mapping; later duplicate keys overwrite earlier ones.
func MappingOf(fields ...Field) Value {
	m := Value{Kind: Mapping}
	for _, f := range fields {
		m.Set(f.Key, f.Value)
	}
	return m
}

// Get returns the value stored under key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set stores val under key, keeping the position of an existing key.
func (v *Value) Set(key string, val Value) {
	for i := range v.Fields {
		if v.Fields[i].Key == key {
			v.Fields[i].Value = val
			return
		}
	}
	v.Fields = append(v.Fields, Field{Key: key, Value: val})
}

// Keys lists mapping keys in order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		keys[i] = f.Key
	}
	return keys
}

// IsScalar reports whether v is neither a sequence nor a mapping.
func (v Value) IsScalar() bool {
	return v.Kind != Sequence && v.Kind != Mapping
}

// Scalar renders a scalar the way a string coercion would: null as "null",
// booleans as true/false, numbers as their literal. Containers render as
// compact JSON.
func (v Value) Scalar() string {
	switch v.Kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Number, String:
		return v.Text
	}
	out, err := MarshalJSON(v, false)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Equal reports deep equality, comparing numbers by literal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Null:
		return true
	case Bool:
		return a.Bool == b.Bool
	case Number, String:
		return a.Text == b.Text
	case Sequence:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case Mapping:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Key != b.Fields[i].Key || !Equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
