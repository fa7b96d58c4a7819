package fileconv

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

// ooxmlPackage zips parts in the given order.
func ooxmlPackage(t *testing.T, parts [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(p[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Quarterly report</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Revenue </w:t></w:r><w:r><w:t>grew</w:t><w:tab/><w:t>fast</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Total</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>42</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Done</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestDocxText(t *testing.T) {
	data := ooxmlPackage(t, [][2]string{{"word/document.xml", docxBody}})
	text, err := docxText(data)
	if err != nil {
		t.Fatal(err)
	}
	want := "Quarterly report\nRevenue grew\tfast\nRegion\tTotal\nNorth\t42\nDone\n"
	if text != want {
		t.Errorf("docxText() = %q, want %q", text, want)
	}

	if _, err := docxText([]byte("not a zip")); err == nil {
		t.Error("docxText accepted garbage")
	}
}

func testPPTX(t *testing.T) []byte {
	t.Helper()
	const (
		ns    = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
		relNS = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
	)
	slide := func(lines ...string) string {
		var b strings.Builder
		b.WriteString(`<p:sld ` + ns + `><p:cSld><p:spTree><p:sp><p:txBody>`)
		for _, l := range lines {
			b.WriteString(`<a:p><a:r><a:t>` + l + `</a:t></a:r></a:p>`)
		}
		b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
		return b.String()
	}

	// Presentation order is slide2 then slide1.
	return ooxmlPackage(t, [][2]string{
		{"ppt/presentation.xml", `<p:presentation ` + ns + `><p:sldIdLst><p:sldId id="256" r:id="rId7"/><p:sldId id="257" r:id="rId3"/></p:sldIdLst></p:presentation>`},
		{"ppt/_rels/presentation.xml.rels", `<Relationships ` + relNS + `>` +
			`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>` +
			`<Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide2.xml"/>` +
			`</Relationships>`},
		{"ppt/slides/slide1.xml", slide("Second title", "Closing")},
		{"ppt/slides/slide2.xml", slide("Opening", "Agenda")},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships ` + relNS + `>` +
			`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide1.xml"/>` +
			`</Relationships>`},
		{"ppt/notesSlides/notesSlide1.xml", slide("Speak slowly")},
	})
}

func TestPPTXText(t *testing.T) {
	text, err := pptxText(testPPTX(t))
	if err != nil {
		t.Fatal(err)
	}
	want := "Slide 1\nOpening\nAgenda\nNotes:\nSpeak slowly\n\nSlide 2\nSecond title\nClosing\n\n"
	if text != want {
		t.Errorf("pptxText() = %q, want %q", text, want)
	}
}

func pptRecord(ver uint16, recType uint16, body []byte) []byte {
	rec := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint16(rec[0:], ver)
	binary.LittleEndian.PutUint16(rec[2:], recType)
	binary.LittleEndian.PutUint32(rec[4:], uint32(len(body)))
	return append(rec, body...)
}

func TestPPTAtoms(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte("Grüße\rzwei"))
	if err != nil {
		t.Fatal(err)
	}
	inner := slices.Concat(
		pptRecord(0, pptTextCharsAtom, utf16),
		pptRecord(0, 0x0FA1, []byte{1, 2, 3, 4}), // style atom, ignored
		pptRecord(0, pptTextBytesAtom, []byte("caf\xe9")),
	)
	stream := slices.Concat(
		pptRecord(0x000F, 0x03E8, inner), // document container
		pptRecord(0, pptTextBytesAtom, []byte("tail")),
		[]byte{0xFF, 0xFF}, // truncated header
	)

	got := pptAtoms(stream)
	want := []string{"Grüße\nzwei", "café", "tail"}
	if !slices.Equal(got, want) {
		t.Errorf("pptAtoms() = %q, want %q", got, want)
	}

	if _, err := pptText([]byte("not a compound file")); err == nil {
		t.Error("pptText accepted garbage")
	}
}

func testXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{{"name", "qty"}, {"apple", 3}, {"pear", 5}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSpreadsheets(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	ctx := context.Background()
	xlsx := testXLSX(t)

	res := fc.ConvertBytes(ctx, "stock.xlsx", xlsx, CategoryDocument, "txt", nil)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if want := "Sheet1\nname\tqty\napple\t3\npear\t5"; string(res.Data) != want {
		t.Errorf("xlsx text = %q, want %q", res.Data, want)
	}

	res = fc.ConvertBytes(ctx, "stock.xlsx", xlsx, CategoryDocument, "csv", nil)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if want := "name,qty\napple,3\npear,5\n"; string(res.Data) != want || res.MIMEType != "text/csv" {
		t.Errorf("xlsx csv = (%q, %q)", res.Data, res.MIMEType)
	}

	res = fc.ConvertBytes(ctx, "stock.csv", []byte("name,qty\nplum,7\n"), CategoryDocument, "xlsx", nil)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	sheets, err := readSheets(res.Data, "xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 1 || !slices.Equal(sheets[0].rows[1], []string{"plum", "7"}) {
		t.Errorf("csv workbook = %+v", sheets)
	}

	if _, err := sheetCSV(nil); err != errEmptyWorkbook {
		t.Errorf("sheetCSV(nil) = %v", err)
	}
}

func TestHTMLText(t *testing.T) {
	page := `<html><head><title>Release notes</title><style>p{color:red}</style></head>
<body><h2>Changes</h2><p>Faster <b>exports</b>.</p>
<img src="data:image/png;base64,` + strings.Repeat("A", 80) + `">
<script>track()</script></body></html>`

	text, err := htmlText([]byte(page), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"# Release notes", "## Changes", "Faster **exports**.", "data:image/png;base64,..."} {
		if !strings.Contains(text, s) {
			t.Errorf("htmlText() missing %q:\n%s", s, text)
		}
	}
	for _, s := range []string{"track()", "color:red", strings.Repeat("A", 80)} {
		if strings.Contains(text, s) {
			t.Errorf("htmlText() kept %q", s)
		}
	}

	kept, err := htmlText([]byte(page), true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(kept, strings.Repeat("A", 80)) {
		t.Error("keepDataURIs dropped the payload")
	}

	// A body that already opens with the title does not repeat it.
	same, err := htmlText([]byte(`<title>Guide</title><noscript>enable js</noscript><h1>Guide</h1><p>Body</p>`), false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(same, "Guide") != 1 || strings.Contains(same, "enable js") {
		t.Errorf("htmlText() = %q", same)
	}
}

func testEPUB(t *testing.T) []byte {
	t.Helper()
	return ooxmlPackage(t, [][2]string{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"OEBPS/content.opf", `<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/"><metadata>` +
			`<dc:title>Field Guide</dc:title><dc:creator>A. Walker</dc:creator><dc:creator>B. Hill</dc:creator><dc:language>en</dc:language>` +
			`</metadata><manifest>` +
			`<item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>` +
			`<item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>` +
			`<item id="css" href="style.css" media-type="text/css"/>` +
			`</manifest><spine><itemref idref="c1"/><itemref idref="css"/><itemref idref="c2"/></spine></package>`},
		{"OEBPS/text/ch1.xhtml", `<html><body><h1>Chapter One</h1><p>Birds.</p></body></html>`},
		{"OEBPS/text/ch2.xhtml", `<html><body><h1>Chapter Two</h1><p>Trees.</p></body></html>`},
		{"OEBPS/style.css", `body{}`},
	})
}

func TestEbookText(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	res := fc.ConvertBytes(context.Background(), "guide.epub", testEPUB(t), CategoryEbook, "txt", nil)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	text := string(res.Data)
	for _, s := range []string{"# Field Guide", "Authors: A. Walker, B. Hill", "Language: en", "# Chapter One", "Birds."} {
		if !strings.Contains(text, s) {
			t.Errorf("epub text missing %q:\n%s", s, text)
		}
	}
	if one, two := strings.Index(text, "Chapter One"), strings.Index(text, "Chapter Two"); one < 0 || two < one {
		t.Errorf("spine order not kept:\n%s", text)
	}
	if strings.Contains(text, "body{}") {
		t.Error("stylesheet leaked into text")
	}
}

func TestDocumentText(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	tests := []struct {
		filename string
		data     []byte
		want     string
	}{
		{"memo.docx", ooxmlPackage(t, [][2]string{{"word/document.xml", docxBody}}), "Revenue grew\tfast"},
		{"deck.pptx", testPPTX(t), "Speak slowly"},
		{"page.html", []byte("<p>Hello <i>there</i></p>"), "Hello *there*"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			res := fc.ConvertBytes(context.Background(), tt.filename, tt.data, CategoryDocument, "txt", nil)
			if res.Err != nil {
				t.Fatal(res.Err)
			}
			if res.MIMEType != "text/plain" || !strings.Contains(string(res.Data), tt.want) {
				t.Errorf("got (%q, %q), want text containing %q", res.Data, res.MIMEType, tt.want)
			}
		})
	}

	// Plain text sources come back as decoded, untouched.
	for _, raw := range []struct{ filename, in string }{
		{"notes.md", "# Title  \r\n\r\n\r\n\r\nBody\x01"},
		{"table.csv", "a,b\r\n1,2\r\n"},
		{"bom.txt", "\xEF\xBB\xBF  spaced  \n\n\n"},
	} {
		res := fc.ConvertBytes(context.Background(), raw.filename, []byte(raw.in), CategoryDocument, "txt", nil)
		want := strings.TrimPrefix(raw.in, "\xEF\xBB\xBF")
		if res.Err != nil || string(res.Data) != want || res.MIMEType != "text/plain" {
			t.Errorf("%s: got (%q, %q, %v), want %q", raw.filename, res.Data, res.MIMEType, res.Err, want)
		}
	}

	res := fc.ConvertBytes(context.Background(), "broken.docx", []byte("PK"), CategoryDocument, "txt", nil)
	if res.Err == nil {
		t.Error("broken docx converted")
	}
}

// testVector checks text extracted from a fixture under testdata/.
type testVector struct {
	filename       string
	category       Category
	mustInclude    []string
	mustNotInclude []string
}

var fixtureVectors = []testVector{
	{filename: "test.pdf", category: CategoryDocument, mustInclude: []string{"AutoGen"}},
	{filename: "test.xls", category: CategoryDocument, mustInclude: []string{"Sheet1"}},
	{filename: "test.ppt", category: CategoryDocument, mustInclude: []string{"AutoGen"}},
	{filename: "test.epub", category: CategoryEbook, mustInclude: []string{"Authors:"}},
}

func TestFixtureVectors(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	for _, tv := range fixtureVectors {
		t.Run(tv.filename, func(t *testing.T) {
			path := filepath.Join("testdata", tv.filename)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Skipf("test fixture %s not found", path)
			}

			res := fc.ConvertBytes(context.Background(), tv.filename, data, tv.category, "txt", nil)
			if res.Err != nil {
				t.Fatalf("convert %s: %v", tv.filename, res.Err)
			}
			text := string(res.Data)
			for _, s := range tv.mustInclude {
				if !strings.Contains(text, s) {
					t.Errorf("output missing %q", s)
				}
			}
			for _, s := range tv.mustNotInclude {
				if strings.Contains(text, s) {
					t.Errorf("output should not contain %q", s)
				}
			}
		})
	}
}
