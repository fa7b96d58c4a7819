package fileconv

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// memDelivery keeps the delivered artifact in memory.
type memDelivery struct {
	name string
	mime string
	data []byte
	n    int
}

func (d *memDelivery) Deliver(_ context.Context, name, mimeType string, data []byte) error {
	d.name, d.mime, d.data = name, mimeType, data
	d.n++
	return nil
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		src    string
		target string
		want   string
	}{
		{"photo.PNG", "jpg", "photo.jpg"},
		{"report", "pdf", "converted.pdf"},
		{".env", "txt", "converted.txt"},
		{"archive.tar.gz", "zip", "archive.tar.zip"},
		{`C:\docs\notes.md`, "txt", "notes.txt"},
		{"dir/sub/data.json", "yaml", "data.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := outputName(tt.src, tt.target); got != tt.want {
				t.Errorf("outputName(%q, %q) = %q, want %q", tt.src, tt.target, got, tt.want)
			}
		})
	}
}

func TestBatchValidate(t *testing.T) {
	file := FileFromBytes("a.json", []byte("{}"))
	tests := []struct {
		name string
		req  BatchRequest
		want error
	}{
		{"no files", BatchRequest{Target: "yaml"}, ErrNoFiles},
		{"no target", BatchRequest{Files: []PendingFile{file}, Target: "  "}, ErrNoTarget},
		{"ok", BatchRequest{Files: []PendingFile{file}, Target: "yaml", Category: CategoryDeveloper}, nil},
		{"auto", BatchRequest{Files: []PendingFile{file}, Target: "yaml", Category: CategoryAuto}, nil},
		{"empty category", BatchRequest{Files: []PendingFile{file}, Target: "yaml"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	bad := BatchRequest{Files: []PendingFile{file}, Target: "yaml", Category: "spreadsheets"}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted an unknown category")
	}
}

func TestBatchJobs(t *testing.T) {
	req := BatchRequest{
		Files: []PendingFile{
			FileFromBytes("clip.MP4", nil),
			FileFromBytes("subs.vtt", nil),
			FileFromBytes("mystery.xyz", nil),
		},
		Category: CategoryAuto,
		Target:   " .MP3",
	}
	var got []Category
	for _, job := range req.Jobs() {
		if job.Target != "mp3" {
			t.Errorf("job target = %q", job.Target)
		}
		got = append(got, job.Category)
	}
	want := []Category{CategoryVideo, CategorySubtitle, CategoryDocument}
	if !slices.Equal(got, want) {
		t.Errorf("categories = %v, want %v", got, want)
	}

	req.Category = CategoryImage
	for _, job := range req.Jobs() {
		if job.Category != CategoryImage {
			t.Errorf("fixed category overridden: %v", job.Category)
		}
	}
}

func TestBatchSingleFile(t *testing.T) {
	fc := newTestConv()
	out := &memDelivery{}
	var progress []float64

	req := BatchRequest{
		Files:    []PendingFile{FileFromBytes("config.json", []byte(`{"a":1}`))},
		Category: CategoryDeveloper,
		Target:   ".YAML",
	}
	res, err := fc.ConvertBatch(context.Background(), req, out, func(p float64) { progress = append(progress, p) })
	if err != nil {
		t.Fatal(err)
	}
	if res.Bundled || res.Name != "config.yaml" || res.MIMEType != "application/yaml" {
		t.Errorf("result = %+v", res)
	}
	if res.ID == "" {
		t.Error("batch has no ID")
	}
	if out.n != 1 || out.name != "config.yaml" || string(out.data) != "a: 1\n" {
		t.Errorf("delivered (%q, %q) %d time(s)", out.name, out.data, out.n)
	}
	checkProgress(t, progress)
}

func TestBatchBundle(t *testing.T) {
	fc := newTestConv()
	out := &memDelivery{}
	var progress []float64

	req := BatchRequest{
		Files: []PendingFile{
			FileFromBytes("a.json", []byte(`{"x":1}`)),
			FileFromBytes("b.csv", []byte("x\n2\n")),
			FileFromBytes("sub/a.json", []byte(`{"x":3}`)),
			FileFromBytes("broken.json", []byte(`{`)),
		},
		Category: CategoryAuto,
		Target:   "yaml",
	}
	res, err := fc.ConvertBatch(context.Background(), req, out, func(p float64) { progress = append(progress, p) })
	if err != nil {
		t.Fatal(err)
	}
	if !res.Bundled || res.Name != "converted_files.zip" || res.MIMEType != "application/zip" {
		t.Errorf("result = %+v", res)
	}
	if out.n != 1 || out.name != "converted_files.zip" {
		t.Errorf("delivered %q %d time(s)", out.name, out.n)
	}

	want := []string{"a.yaml", "b.yaml", "a (1).yaml", "broken.yaml"}
	if got := zipNames(t, out.data); !slices.Equal(got, want) {
		t.Errorf("bundle entries = %v, want %v", got, want)
	}
	for i, f := range res.Files {
		if f.Output != want[i] {
			t.Errorf("Files[%d].Output = %q, want %q", i, f.Output, want[i])
		}
	}

	// Auto mode: json and csv both resolve by extension.
	if res.Files[0].Category != CategoryDeveloper || res.Files[1].Category != CategoryDocument {
		t.Errorf("categories = %s, %s", res.Files[0].Category, res.Files[1].Category)
	}
	if !res.Files[3].Fallback || res.Files[3].Err == nil {
		t.Errorf("broken file outcome = %+v", res.Files[3])
	}
	checkProgress(t, progress)
}

func TestBatchStrictStops(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	out := &memDelivery{}
	req := BatchRequest{
		Files: []PendingFile{
			FileFromBytes("ok.json", []byte(`{}`)),
			FileFromBytes("bad.json", []byte(`{`)),
			FileFromBytes("never.json", []byte(`{}`)),
		},
		Category: CategoryDeveloper,
		Target:   "yaml",
	}

	_, err := fc.ConvertBatch(context.Background(), req, out, nil)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BatchError", err)
	}
	if be.Completed != 1 || be.Failed.File != "bad.json" || !errors.Is(err, ErrParse) {
		t.Errorf("BatchError = %+v", be)
	}
	if out.n != 0 {
		t.Error("strict failure still delivered an artifact")
	}
}

func TestBatchCanceled(t *testing.T) {
	fc := newTestConv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := BatchRequest{Files: []PendingFile{FileFromBytes("a.json", []byte(`{}`))}, Target: "yaml"}
	if _, err := fc.ConvertBatch(ctx, req, &memDelivery{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDirDelivery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	src := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(src, []byte("# Notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	file, err := FileFromPath(src)
	if err != nil {
		t.Fatal(err)
	}
	if file.Name != "notes.md" || file.Size != 7 {
		t.Errorf("FileFromPath = %+v", file)
	}

	fc := newTestConv()
	req := BatchRequest{Files: []PendingFile{file}, Category: CategoryDocument, Target: "txt"}
	if _, err := fc.ConvertBatch(context.Background(), req, DirDelivery{Dir: dir}, nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "# Notes" {
		t.Errorf("delivered %q", got)
	}

	if _, err := FileFromPath(dir); err == nil {
		t.Error("FileFromPath accepted a directory")
	}
}

func TestQueue(t *testing.T) {
	var q Queue
	q.Add(FileFromBytes("a.json", []byte(`{}`)), FileFromBytes("b.json", []byte(`[]`)), FileFromBytes("c.json", []byte(`1`)))
	if !q.Remove(1) || q.Remove(5) || q.Remove(-1) {
		t.Error("Remove() misreported")
	}
	if names := queueNames(q.Files()); !slices.Equal(names, []string{"a.json", "c.json"}) {
		t.Errorf("queue = %v", names)
	}

	fc := newTestConv()
	out := &memDelivery{}
	res, err := q.ConvertAll(context.Background(), fc, CategoryDeveloper, "yaml", out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Bundled || q.Len() != 0 {
		t.Errorf("bundled = %v, queue length = %d", res.Bundled, q.Len())
	}

	if _, err := q.ConvertAll(context.Background(), fc, CategoryDeveloper, "yaml", out, nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("empty queue err = %v", err)
	}
}

func TestPendingFileOpen(t *testing.T) {
	var empty PendingFile
	if _, err := empty.ReadAll(); err == nil {
		t.Error("zero PendingFile read succeeded")
	}
	f := NewPendingFile("x", -1, func() (io.ReadCloser, error) { return nil, errors.New("denied") })
	if _, err := f.ReadAll(); err == nil {
		t.Error("opener error not returned")
	}
}

func queueNames(files []PendingFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func checkProgress(t *testing.T, progress []float64) {
	t.Helper()
	if len(progress) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress went backwards: %v", progress)
		}
	}
	for _, p := range progress {
		if p < 0 || p > 100 {
			t.Fatalf("progress out of range: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("final progress = %v, want 100", progress[len(progress)-1])
	}
}
