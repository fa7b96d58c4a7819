package structured

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"unicode"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// Reserved mapping keys used by the XML walk.
const (
	AttributesKey = "@attributes"
	TextKey       = "#text"
)

type xmlFrame struct {
	name  string
	value Value
}

// ParseXML walks an XML document into nested mappings. The root element's
// own name is dropped; attributes go under AttributesKey; repeated child tags
// collapse into a sequence; an element holding only text becomes a string.
func ParseXML(data []byte) (Value, error) {
	p := xpp.NewXMLPullParser(bytes.NewReader(data), true, charset.NewReaderLabel)

	var stack []*xmlFrame
	var root *Value
	for {
		event, err := p.Next()
		if err != nil {
			return Value{}, err
		}

		switch event {
		case xpp.StartTag:
			if root != nil {
				return Value{}, errors.New("xml: content after root element")
			}
			f := &xmlFrame{name: p.Name, value: Value{Kind: Mapping}}
			if len(p.Attrs) > 0 {
				attrs := Value{Kind: Mapping}
				for _, a := range p.Attrs {
					attrs.Set(attrName(a.Name), StringValue(a.Value))
				}
				f.value.Set(AttributesKey, attrs)
			}
			stack = append(stack, f)

		case xpp.Text:
			text := strings.TrimSpace(p.Text)
			if text == "" || len(stack) == 0 {
				continue
			}
			addChild(&stack[len(stack)-1].value, TextKey, StringValue(text))

		case xpp.EndTag:
			if len(stack) == 0 {
				return Value{}, fmt.Errorf("xml: unexpected end tag </%s>", p.Name)
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v := collapseText(f.value)
			if len(stack) == 0 {
				root = &v
				continue
			}
			addChild(&stack[len(stack)-1].value, f.name, v)

		case xpp.EndDocument:
			if len(stack) > 0 {
				return Value{}, fmt.Errorf("xml: unclosed element <%s>", stack[len(stack)-1].name)
			}
			if root == nil {
				return Value{}, errors.New("xml: no root element")
			}
			return *root, nil
		}
	}
}

func attrName(n xml.Name) string {
	if n.Space == "xmlns" {
		return "xmlns:" + n.Local
	}
	return n.Local
}

func addChild(parent *Value, name string, v Value) {
	existing, ok := parent.Get(name)
	if !ok {
		parent.Set(name, v)
		return
	}
	if existing.Kind == Sequence {
		existing.Items = append(existing.Items, v)
		parent.Set(name, existing)
		return
	}
	parent.Set(name, SequenceOf(existing, v))
}

func collapseText(v Value) Value {
	if len(v.Fields) == 1 && v.Fields[0].Key == TextKey && v.Fields[0].Value.Kind == String {
		return v.Fields[0].Value
	}
	return v
}

// MarshalXML emits v inside a <root> element, one tag per mapping key.
// Sequences repeat their tag; a top-level sequence uses <item>. Mapping
// entries under AttributesKey and TextKey become attributes and text.
func MarshalXML(v Value) ([]byte, error) {
	var b strings.Builder
	writeElement(&b, "root", v, 0)
	return []byte(strings.TrimRight(b.String(), "\n")), nil
}

func writeElement(b *strings.Builder, tag string, v Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v.Kind {
	case Sequence:
		if depth == 0 {
			b.WriteString("<root>\n")
			for _, item := range v.Items {
				writeElement(b, "item", item, depth+1)
			}
			b.WriteString("</root>\n")
			return
		}
		for _, item := range v.Items {
			if item.Kind == Sequence {
				fmt.Fprintf(b, "%s<%s>\n", indent, tag)
				for _, inner := range item.Items {
					writeElement(b, "item", inner, depth+1)
				}
				fmt.Fprintf(b, "%s</%s>\n", indent, tag)
				continue
			}
			writeElement(b, tag, item, depth)
		}
	case Mapping:
		fmt.Fprintf(b, "%s<%s", indent, tag)
		var children []Field
		var text []string
		for _, f := range v.Fields {
			switch {
			case f.Key == AttributesKey && f.Value.Kind == Mapping:
				for _, a := range f.Value.Fields {
					fmt.Fprintf(b, ` %s="%s"`, xmlName(a.Key), attrEscaper.Replace(a.Value.Scalar()))
				}
			case f.Key == TextKey && f.Value.IsScalar():
				text = append(text, f.Value.Scalar())
			case f.Key == TextKey && f.Value.Kind == Sequence:
				for _, t := range f.Value.Items {
					text = append(text, t.Scalar())
				}
			default:
				children = append(children, f)
			}
		}
		if len(children) == 0 && len(text) == 0 {
			b.WriteString("/>\n")
			return
		}
		if len(children) == 0 {
			fmt.Fprintf(b, ">%s</%s>\n", textEscaper.Replace(strings.Join(text, " ")), tag)
			return
		}
		b.WriteString(">\n")
		for _, t := range text {
			fmt.Fprintf(b, "%s  %s\n", indent, textEscaper.Replace(t))
		}
		for _, f := range children {
			writeElement(b, xmlName(f.Key), f.Value, depth+1)
		}
		fmt.Fprintf(b, "%s</%s>\n", indent, tag)
	case Null:
		fmt.Fprintf(b, "%s<%s/>\n", indent, tag)
	default:
		fmt.Fprintf(b, "%s<%s>%s</%s>\n", indent, tag, textEscaper.Replace(v.Scalar()), tag)
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// xmlName turns an arbitrary key into a valid element or attribute name.
func xmlName(key string) string {
	if key == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range key {
		valid := r == '_' || r == ':' || unicode.IsLetter(r)
		if i > 0 {
			valid = valid || r == '-' || r == '.' || unicode.IsDigit(r)
		}
		if valid {
			b.WriteRune(r)
			continue
		}
		if i == 0 && (r == '-' || r == '.' || unicode.IsDigit(r)) {
			b.WriteRune('_')
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
