package fileconv

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText returns the text of every page, one blank line between pages.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := strings.TrimSpace(pageText(page)); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// pageText prefers GetTextByRow and falls back to grouping positioned
// glyphs into lines.
func pageText(page pdf.Page) string {
	if rows, err := page.GetTextByRow(); err == nil {
		var lines []string
		for _, row := range rows {
			var line strings.Builder
			gap := false
			for _, word := range row.Content {
				if word.S == "" {
					gap = true
					continue
				}
				if gap && line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
					line.WriteByte(' ')
				}
				line.WriteString(word.S)
				gap = false
			}
			if s := strings.TrimSpace(line.String()); s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	return positionedText(page.Content().Text)
}

type glyphLine struct {
	y      float64
	glyphs []pdf.Text
}

func positionedText(glyphs []pdf.Text) string {
	var lines []glyphLine
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		tolerance := max(g.FontSize*0.3, 1)
		placed := false
		for i := range lines {
			if math.Abs(lines[i].y-g.Y) < tolerance {
				lines[i].glyphs = append(lines[i].glyphs, g)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, glyphLine{y: g.Y, glyphs: []pdf.Text{g}})
		}
	}

	// PDF y grows upwards.
	sort.Slice(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var out []string
	for _, ln := range lines {
		sort.Slice(ln.glyphs, func(i, j int) bool { return ln.glyphs[i].X < ln.glyphs[j].X })

		var b strings.Builder
		end := math.Inf(-1)
		for _, g := range ln.glyphs {
			if g.X-end > max(g.FontSize*0.2, 1) && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(g.S)
			end = g.X + float64(len([]rune(g.S)))*g.FontSize*0.55
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
