package fileconv

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nicholasgasior/fileconv-go/internal/raster"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageConversions(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	src := testPNG(t, 16, 12)

	tests := []struct {
		target string
		mime   string
		check  func(t *testing.T, out []byte)
	}{
		{"jpg", "image/jpeg", func(t *testing.T, out []byte) {
			if _, format, err := image.Decode(bytes.NewReader(out)); err != nil || format != "jpeg" {
				t.Errorf("decode = (%q, %v)", format, err)
			}
		}},
		{"gif", "image/gif", nil},
		{"bmp", "image/bmp", nil},
		{"tiff", "image/tiff", nil},
		{"ico", "image/x-icon", func(t *testing.T, out []byte) {
			if !bytes.HasPrefix(out, []byte{0, 0, 1, 0, 1, 0}) {
				t.Errorf("ico header = % x", out[:6])
			}
		}},
		{"pdf", "application/pdf", func(t *testing.T, out []byte) {
			if !bytes.HasPrefix(out, []byte("%PDF")) {
				t.Errorf("pdf prefix = %q", out[:8])
			}
		}},
		{"svg", "image/svg+xml", func(t *testing.T, out []byte) {
			s := string(out)
			if !strings.HasPrefix(s, "<svg") || !strings.Contains(s, "data:image/png;base64,") || !strings.Contains(s, `width="16"`) {
				t.Errorf("svg = %.120s", s)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			res := fc.ConvertBytes(context.Background(), "photo.png", src, CategoryImage, tt.target, nil)
			if res.Err != nil {
				t.Fatal(res.Err)
			}
			if res.MIMEType != tt.mime {
				t.Errorf("MIME = %q, want %q", res.MIMEType, tt.mime)
			}
			if len(res.Data) == 0 {
				t.Fatal("empty output")
			}
			if tt.check != nil {
				tt.check(t, res.Data)
			}
		})
	}
}

func TestImageDecodeFailure(t *testing.T) {
	fc := newTestConv()
	junk := []byte("definitely not an image")

	res := fc.ConvertBytes(context.Background(), "photo.png", junk, CategoryImage, "jpg", nil)
	if !res.Fallback || !bytes.Equal(res.Data, junk) {
		t.Fatalf("expected passthrough, got %+v", res)
	}
	if !errors.Is(res.Err, ErrDecode) {
		t.Errorf("Err = %v, want ErrDecode", res.Err)
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, files[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestArchiveConversions(t *testing.T) {
	fc := newTestConv(WithStrict(true))
	ctx := context.Background()

	t.Run("file to zip", func(t *testing.T) {
		res := fc.ConvertBytes(ctx, "notes.txt", []byte("hello"), CategoryArchive, "zip", nil)
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if res.MIMEType != "application/zip" {
			t.Errorf("MIME = %q", res.MIMEType)
		}
		if names := zipNames(t, res.Data); !slices.Equal(names, []string{"notes.txt"}) {
			t.Errorf("entries = %v", names)
		}
	})

	t.Run("file to gz", func(t *testing.T) {
		res := fc.ConvertBytes(ctx, "notes.txt", []byte("hello"), CategoryArchive, "gz", nil)
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if res.MIMEType != "application/gzip" {
			t.Errorf("MIME = %q", res.MIMEType)
		}
		zr, err := gzip.NewReader(bytes.NewReader(res.Data))
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(zr)
		if string(body) != "hello" || zr.Name != "notes.txt" {
			t.Errorf("gzip member = (%q, %q)", zr.Name, body)
		}
	})

	t.Run("multi-entry gz becomes zip", func(t *testing.T) {
		src := zipOf(t, map[string]string{"a.txt": "a", "b.txt": "b"})
		res := fc.ConvertBytes(ctx, "pair.zip", src, CategoryArchive, "gz", nil)
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if res.MIMEType != "application/zip" {
			t.Errorf("MIME = %q", res.MIMEType)
		}
		if names := zipNames(t, res.Data); !slices.Equal(names, []string{"a.txt", "b.txt"}) {
			t.Errorf("entries = %v", names)
		}
	})

	t.Run("zip to tar and back", func(t *testing.T) {
		src := zipOf(t, map[string]string{"dir/a.txt": "alpha", "b.txt": "beta"})
		tarRes := fc.ConvertBytes(ctx, "pair.zip", src, CategoryArchive, "tar", nil)
		if tarRes.Err != nil {
			t.Fatal(tarRes.Err)
		}
		if tarRes.MIMEType != "application/x-tar" {
			t.Errorf("MIME = %q", tarRes.MIMEType)
		}
		zipRes := fc.ConvertBytes(ctx, "pair.tar", tarRes.Data, CategoryArchive, "zip", nil)
		if zipRes.Err != nil {
			t.Fatal(zipRes.Err)
		}
		if names := zipNames(t, zipRes.Data); !slices.Equal(names, []string{"b.txt", "dir/a.txt"}) {
			t.Errorf("entries = %v", names)
		}
	})

	t.Run("gz input is unpacked", func(t *testing.T) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write([]byte("payload"))
		gw.Close()

		res := fc.ConvertBytes(ctx, "data.json.gz", buf.Bytes(), CategoryArchive, "zip", nil)
		if res.Err != nil {
			t.Fatal(res.Err)
		}
		if names := zipNames(t, res.Data); !slices.Equal(names, []string{"data.json"}) {
			t.Errorf("entries = %v", names)
		}
	})

	t.Run("broken zip", func(t *testing.T) {
		res := fc.ConvertBytes(ctx, "bad.zip", []byte("PK nope"), CategoryArchive, "tar", nil)
		if !errors.Is(res.Err, ErrContainerParse) {
			t.Errorf("Err = %v, want ErrContainerParse", res.Err)
		}
	})

	t.Run("unsupported target", func(t *testing.T) {
		res := fc.ConvertBytes(ctx, "a.txt", []byte("x"), CategoryArchive, "rar", nil)
		if !IsUnsupportedFormat(res.Err) {
			t.Errorf("Err = %v, want unsupported format", res.Err)
		}
	})
}

func TestUnpackSizeLimits(t *testing.T) {
	limit := maxArchiveExpansion
	maxArchiveExpansion = 1024
	t.Cleanup(func() { maxArchiveExpansion = limit })

	big := strings.Repeat("0", 4096)
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(big))
	zw.Close()

	fc := newTestConv()
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"zip entry", "bomb.zip", zipOf(t, map[string]string{"a.txt": big})},
		{"zip entries together", "many.zip", zipOf(t, map[string]string{"a": big[:600], "b": big[:600]})},
		{"gzip member", "bomb.txt.gz", gz.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := fc.ConvertBytes(context.Background(), tt.file, tt.data, CategoryArchive, "tar", nil)
			if !res.Fallback || !bytes.Equal(res.Data, tt.data) {
				t.Fatalf("expected passthrough, got fallback=%v err=%v", res.Fallback, res.Err)
			}
			if !errors.Is(res.Err, ErrContainerParse) || !errors.Is(res.Err, errArchiveTooLarge) {
				t.Errorf("Err = %v, want archive size failure", res.Err)
			}
		})
	}

	res := fc.ConvertBytes(context.Background(), "small.zip", zipOf(t, map[string]string{"a": big[:500]}), CategoryArchive, "tar", nil)
	if res.Err != nil {
		t.Errorf("archive under the limit failed: %v", res.Err)
	}
}

func TestImagePixelLimit(t *testing.T) {
	limit := raster.MaxPixels
	raster.MaxPixels = 10
	t.Cleanup(func() { raster.MaxPixels = limit })

	src := testPNG(t, 4, 3)
	res := newTestConv().ConvertBytes(context.Background(), "big.png", src, CategoryImage, "jpg", nil)
	if !res.Fallback || !bytes.Equal(res.Data, src) {
		t.Fatalf("expected passthrough, got %+v", res.Err)
	}
	if !errors.Is(res.Err, ErrDecode) || !errors.Is(res.Err, raster.ErrTooLarge) {
		t.Errorf("Err = %v, want ErrDecode wrapping ErrTooLarge", res.Err)
	}
}

func TestUniqueNames(t *testing.T) {
	entries := []archiveEntry{{Name: "a.txt"}, {Name: "a.txt"}, {Name: "b"}, {Name: "a.txt"}, {Name: "b"}}
	uniqueNames(entries)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name)
	}
	want := []string{"a.txt", "a (1).txt", "b", "a (2).txt", "b (1)"}
	if !slices.Equal(got, want) {
		t.Errorf("uniqueNames = %v, want %v", got, want)
	}
}

// fakeEngine records calls and writes a fixed output for every Exec.
type fakeEngine struct {
	mu      sync.Mutex
	files   map[string][]byte
	args    [][]string
	deleted []string
	execErr error
	closed  bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{files: map[string][]byte{}}
}

func (e *fakeEngine) WriteFile(name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *fakeEngine) ReadFile(name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (e *fakeEngine) DeleteFile(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, name)
	delete(e.files, name)
	return nil
}

func (e *fakeEngine) Exec(_ context.Context, args []string, progress func(float64)) error {
	e.mu.Lock()
	e.args = append(e.args, args)
	err := e.execErr
	e.mu.Unlock()
	if err != nil {
		return err
	}
	progress(0.5)
	progress(1)
	return e.WriteFile(args[len(args)-1], []byte("transcoded"))
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

func TestMediaRuntimeLoadsOnce(t *testing.T) {
	engine := newFakeEngine()
	loads := 0
	rt := NewMediaRuntime(func(context.Context) (MediaEngine, error) {
		loads++
		return engine, nil
	})
	if rt.State() != EngineUninitialized {
		t.Fatalf("State() = %v", rt.State())
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rt.Engine(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if loads != 1 {
		t.Errorf("loader called %d times, want 1", loads)
	}
	if rt.State() != EngineReady {
		t.Errorf("State() = %v, want ready", rt.State())
	}
	if err := rt.Close(); err != nil || !engine.closed {
		t.Errorf("Close() = %v, closed = %v", err, engine.closed)
	}
}

func TestMediaRuntimeCachesFailure(t *testing.T) {
	loads := 0
	cause := errors.New("ffmpeg missing")
	rt := NewMediaRuntime(func(context.Context) (MediaEngine, error) {
		loads++
		return nil, cause
	})

	for range 2 {
		_, err := rt.Engine(context.Background())
		if !errors.Is(err, ErrEngineInit) || !errors.Is(err, cause) {
			t.Errorf("Engine() error = %v", err)
		}
	}
	if loads != 1 || rt.State() != EngineFailed {
		t.Errorf("loads = %d, state = %v", loads, rt.State())
	}

	rt.Reset()
	if rt.State() != EngineUninitialized {
		t.Errorf("State() after Reset = %v", rt.State())
	}
	rt.Engine(context.Background())
	if loads != 2 {
		t.Errorf("loads after Reset = %d, want 2", loads)
	}
}

func TestMediaConversion(t *testing.T) {
	engine := newFakeEngine()
	rt := NewMediaRuntime(func(context.Context) (MediaEngine, error) { return engine, nil })
	fc := newTestConv(WithStrict(true), WithMediaRuntime(rt))

	var progress []float64
	res := fc.ConvertBytes(context.Background(), "clip.mp4", []byte("video"), CategoryVideo, "gif", func(p float64) {
		progress = append(progress, p)
	})
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if string(res.Data) != "transcoded" || res.MIMEType != "image/gif" {
		t.Errorf("result = (%q, %q)", res.Data, res.MIMEType)
	}

	args := engine.args[0]
	if args[0] != "-i" || args[1] != "input.mp4" || args[len(args)-1] != "output.gif" {
		t.Errorf("args = %v", args)
	}
	if !slices.Contains(args, "fps=10,scale=320:-1:flags=lanczos") {
		t.Errorf("gif filter missing from %v", args)
	}
	if !slices.Contains(engine.deleted, "input.mp4") || !slices.Contains(engine.deleted, "output.gif") {
		t.Errorf("deleted = %v", engine.deleted)
	}
	if len(engine.files) != 0 {
		t.Errorf("files left behind: %v", engine.files)
	}
	if !slices.Equal(progress, []float64{50, 100, 100}) {
		t.Errorf("progress = %v", progress)
	}
}

func TestMediaConversionFailures(t *testing.T) {
	t.Run("exec error", func(t *testing.T) {
		engine := newFakeEngine()
		engine.execErr = errors.New("codec not found")
		rt := NewMediaRuntime(func(context.Context) (MediaEngine, error) { return engine, nil })
		fc := newTestConv(WithMediaRuntime(rt))

		res := fc.ConvertBytes(context.Background(), "song.wav", []byte("audio"), CategoryAudio, "mp3", nil)
		if !res.Fallback || string(res.Data) != "audio" || !errors.Is(res.Err, ErrEngineExec) {
			t.Errorf("result = %+v", res)
		}
		if !slices.Contains(engine.args[0], "-vn") {
			t.Errorf("mp3 args = %v", engine.args[0])
		}
	})

	t.Run("engine unavailable", func(t *testing.T) {
		fc := newTestConv(WithStrict(true))
		res := fc.ConvertBytes(context.Background(), "clip.mov", []byte("video"), CategoryVideo, "mp4", nil)
		if !errors.Is(res.Err, ErrEngineInit) {
			t.Errorf("Err = %v, want ErrEngineInit", res.Err)
		}
		if fc.MediaRuntime().State() != EngineFailed {
			t.Errorf("State() = %v", fc.MediaRuntime().State())
		}
	})
}

func TestMediaMIME(t *testing.T) {
	tests := map[string]string{"mp4": "video/mp4", "mp3": "audio/mpeg", "mov": "video/quicktime", "3gp": "video/3gp"}
	for in, want := range tests {
		if got := mediaMIME(in); got != want {
			t.Errorf("mediaMIME(%q) = %q, want %q", in, got, want)
		}
	}
}
