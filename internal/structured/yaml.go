package structured

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const yamlMergeTag = "!!merge"

// ParseYAML decodes the first document of a YAML stream. An empty stream
// yields Null.
func ParseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NullValue(), nil
		}
		return Value{}, err
	}
	d := &yamlDecoder{}
	return d.value(&doc, 0)
}

const maxYAMLDepth = 512

// ErrYAMLAliasing reports a document whose aliases expand far beyond its
// own size.
var ErrYAMLAliasing = errors.New("yaml: document contains excessive aliasing")

// Alias expansion is bounded by the share of values decoded through an
// alias, tightening from 99% to 10% as the document grows.
const (
	aliasRatioLow  = 400000
	aliasRatioHigh = 4000000
)

func allowedAliasRatio(decoded int) float64 {
	switch {
	case decoded <= aliasRatioLow:
		return 0.99
	case decoded >= aliasRatioHigh:
		return 0.10
	}
	span := float64(aliasRatioHigh - aliasRatioLow)
	return 0.99 - 0.89*(float64(decoded-aliasRatioLow)/span)
}

type yamlDecoder struct {
	decoded    int
	aliased    int
	aliasDepth int
}

func (d *yamlDecoder) value(n *yaml.Node, depth int) (Value, error) {
	if depth > maxYAMLDepth {
		return Value{}, errors.New("yaml: document nested too deeply")
	}
	d.decoded++
	if d.aliasDepth > 0 {
		d.aliased++
		if d.aliased > 100 && d.decoded > 1000 &&
			float64(d.aliased)/float64(d.decoded) > allowedAliasRatio(d.decoded) {
			return Value{}, ErrYAMLAliasing
		}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NullValue(), nil
		}
		return d.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return NullValue(), nil
		}
		d.aliasDepth++
		v, err := d.value(n.Alias, depth+1)
		d.aliasDepth--
		return v, err
	case yaml.SequenceNode:
		s := SequenceOf()
		for _, c := range n.Content {
			v, err := d.value(c, depth+1)
			if err != nil {
				return Value{}, err
			}
			s.Items = append(s.Items, v)
		}
		return s, nil
	case yaml.MappingNode:
		return d.mapping(n, depth)
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return Value{}, fmt.Errorf("yaml: unexpected node kind %d", n.Kind)
}

func (d *yamlDecoder) mapping(n *yaml.Node, depth int) (Value, error) {
	m := Value{Kind: Mapping}
	var merged []Value
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, val := n.Content[i], n.Content[i+1]
		v, err := d.value(val, depth+1)
		if err != nil {
			return Value{}, err
		}
		if k.ShortTag() == yamlMergeTag {
			if v.Kind == Sequence {
				merged = append(merged, v.Items...)
			} else {
				merged = append(merged, v)
			}
			continue
		}
		key, err := d.value(k, depth+1)
		if err != nil {
			return Value{}, err
		}
		m.Set(key.Scalar(), v)
	}
	// Explicit keys win over merged ones.
	for _, src := range merged {
		for _, f := range src.Fields {
			if _, ok := m.Get(f.Key); !ok {
				m.Fields = append(m.Fields, f)
			}
		}
	}
	return m, nil
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return NumberValue(strconv.FormatInt(i, 10)), nil
		}
		var u uint64
		if err := n.Decode(&u); err == nil {
			return NumberValue(strconv.FormatUint(u, 10)), nil
		}
		return floatScalar(n)
	case "!!float":
		return floatScalar(n)
	}
	return StringValue(n.Value), nil
}

func floatScalar(n *yaml.Node) (Value, error) {
	var f float64
	if err := n.Decode(&f); err != nil {
		return Value{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue(), nil
	}
	return NumberValue(formatFloat(f)), nil
}

// formatFloat renders f the way JavaScript number-to-string does for the
// common ranges.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalYAML encodes v with a two-space indent.
func MarshalYAML(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(v)); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func toYAML(v Value) *yaml.Node {
	switch v.Kind {
	case Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.Bool)}
	case Number:
		tag := "!!int"
		if strings.ContainsAny(v.Text, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Text}
	case String:
		n := &yaml.Node{}
		n.SetString(v.Text)
		return n
	case Sequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items {
			n.Content = append(n.Content, toYAML(item))
		}
		return n
	case Mapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range v.Fields {
			k := &yaml.Node{}
			k.SetString(f.Key)
			n.Content = append(n.Content, k, toYAML(f.Value))
		}
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}
