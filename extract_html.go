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
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
)

var htmlMarkdown = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(commonmark.WithHeadingStyle("atx")),
		table.NewTablePlugin(),
	),
)

// htmlText renders an HTML page as readable text. The page title leads the
// output when the body does not already start with it.
func htmlText(data []byte, keepDataURIs bool) (string, error) {
	doc, err := html.Parse(strings.NewReader(decodeText(data)))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	p := pageCleaner{keepDataURIs: keepDataURIs}
	p.walk(doc)

	out, err := htmlMarkdown.ConvertNode(doc)
	if err != nil {
		return "", fmt.Errorf("convert HTML: %w", err)
	}
	md := string(bytes.TrimSpace(out))
	if p.title != "" && !strings.Contains(firstLine(md), p.title) {
		md = "# " + p.title + "\n\n" + md
	}
	return md, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// pageCleaner takes the title out of a parsed page and drops the nodes
// that carry no readable text.
type pageCleaner struct {
	keepDataURIs bool
	title        string
}

func (p *pageCleaner) walk(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch c.Data {
			case "script", "style", "noscript", "template":
				n.RemoveChild(c)
				c = next
				continue
			case "title":
				if p.title == "" && c.FirstChild != nil {
					p.title = strings.TrimSpace(c.FirstChild.Data)
				}
				n.RemoveChild(c)
				c = next
				continue
			}
			if !p.keepDataURIs {
				shortenDataURIs(c)
			}
		}
		p.walk(c)
		c = next
	}
}

// Payloads shorter than this stay inline.
const maxInlineDataURI = 64

// shortenDataURIs rewrites long base64 attribute payloads to
// "data:mime;base64,...".
func shortenDataURIs(n *html.Node) {
	for i, a := range n.Attr {
		if !strings.HasPrefix(a.Val, "data:") {
			continue
		}
		head, payload, ok := strings.Cut(a.Val, ";base64,")
		if ok && len(payload) >= maxInlineDataURI {
			n.Attr[i].Val = head + ";base64,..."
		}
	}
}
