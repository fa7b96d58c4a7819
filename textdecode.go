package fileconv

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns data as UTF-8. A BOM wins; valid UTF-8 is returned as
// is; anything else goes through charset detection.
func decodeText(data []byte) string {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):])
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		if out, _, err := transform.Bytes(dec, data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return decodeWithDetection(data)
}

// decodeWithDetection tries every charset chardet proposes and keeps the
// decoding that looks most like text.
func decodeWithDetection(data []byte) string {
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil || len(results) == 0 {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}

	best, bestScore := "", -1<<31
	for _, r := range results {
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(decoded)
		if score := scoreDecodedText(text, r.Confidence); score > bestScore {
			best, bestScore = text, score
		}
	}
	if best == "" {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return best
}

// scoreDecodedText favours decodings without replacement or control
// characters. Kana and fullwidth forms only show up in correctly decoded
// Japanese, so they count extra.
func scoreDecodedText(text string, confidence int) int {
	score := confidence
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			score -= 10
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			score -= 5
		case r >= 0x3040 && r <= 0x30FF, r >= 0xFF00 && r <= 0xFFEF:
			score += 5
		case r >= 0x4E00 && r <= 0x9FFF:
			score++
		case r >= 'A' && r <= 'z':
			score++
		}
	}
	return score
}

// chardetAliases maps chardet names that are not WHATWG labels.
var chardetAliases = map[string]string{
	"gb-18030":     "gb18030",
	"iso-8859-8-i": "iso-8859-8",
	"ibm420_rtl":   "",
	"ibm420_ltr":   "",
	"ibm424_rtl":   "",
	"ibm424_ltr":   "",
}

// lookupEncoding maps a charset name to an encoding via the WHATWG label
// table.
func lookupEncoding(name string) encoding.Encoding {
	label := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := chardetAliases[label]; ok {
		label = alias
	}
	if label == "" {
		return nil
	}
	enc, _ := charset.Lookup(label)
	return enc
}
