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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	fileconv "github.com/nicholasgasior/fileconv-go"
	"github.com/nicholasgasior/fileconv-go/internal/config"
)

var version = "dev"

func main() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		target      string
		category    string
		outputDir   string
		strict      bool
		listFormats bool
		showVersion bool
		verbose     bool
		jsonSummary bool
	)

	flag.StringVar(&target, "t", "", "Target format extension (required)")
	flag.StringVar(&target, "to", "", "Target format extension (required)")
	flag.StringVar(&category, "c", string(fileconv.CategoryAuto), "Category, or auto to detect per file")
	flag.StringVar(&category, "category", string(fileconv.CategoryAuto), "Category, or auto to detect per file")
	flag.StringVar(&outputDir, "o", cfg.OutputDir, "Output directory")
	flag.StringVar(&outputDir, "output", cfg.OutputDir, "Output directory")
	flag.BoolVar(&strict, "strict", cfg.Strict, "Fail on conversion errors instead of keeping the original bytes")
	flag.BoolVar(&listFormats, "list", false, "List supported formats and exit")
	flag.BoolVar(&showVersion, "v", false, "Show version")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&jsonSummary, "json", false, "Print the batch summary as JSON")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fileconv -to <ext> [flags] file...\n\n")
		fmt.Fprintf(os.Stderr, "Convert files between formats. Several inputs are bundled into %s.\n\n", "converted_files.zip")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("fileconv %s\n", version)
		os.Exit(0)
	}
	if listFormats {
		printFormats(os.Stdout)
		os.Exit(0)
	}

	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(cfg.LogFormat, level)
	slog.SetDefault(logger)

	files := make([]fileconv.PendingFile, 0, flag.NArg())
	for _, path := range flag.Args() {
		f, err := fileconv.FileFromPath(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		files = append(files, f)
	}

	rt := fileconv.NewMediaRuntime(fileconv.FFmpegLoader(cfg.FFmpegPath, logger))
	defer rt.Close()

	fc := fileconv.New(
		fileconv.WithLogger(logger),
		fileconv.WithStrict(strict),
		fileconv.WithImageQuality(cfg.ImageQuality),
		fileconv.WithMediaRuntime(rt),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	req := fileconv.BatchRequest{
		Files:    files,
		Category: fileconv.Category(strings.ToLower(category)),
		Target:   target,
	}
	res, err := fc.ConvertBatch(ctx, req, fileconv.DirDelivery{Dir: outputDir}, progressPrinter(os.Stderr))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, fileconv.ErrNoFiles) || errors.Is(err, fileconv.ErrNoTarget) {
			flag.Usage()
		}
		rt.Close()
		os.Exit(1)
	}

	if jsonSummary {
		if err := writeSummary(os.Stdout, res); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
			os.Exit(1)
		}
		return
	}
	for _, f := range res.Files {
		note := ""
		if f.Fallback {
			note = " (kept original)"
		}
		fmt.Printf("%s -> %s%s\n", f.Source, f.Output, note)
	}
	fmt.Printf("wrote %s (%d bytes)\n", res.Name, res.Size)
}

func newLogger(format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// progressPrinter redraws a single progress line.
func progressPrinter(w io.Writer) fileconv.ProgressFunc {
	return func(percent float64) {
		fmt.Fprintf(w, "\r%3.0f%%", percent)
	}
}

func printFormats(w io.Writer) {
	for _, f := range fileconv.Registry() {
		fmt.Fprintf(w, "%s (%s)\n", f.Name, f.Category)
		fmt.Fprintf(w, "  in:  %s\n", strings.Join(f.In, " "))
		fmt.Fprintf(w, "  out: %s\n", strings.Join(f.Out, " "))
	}
}

type fileSummary struct {
	Source   string `json:"source"`
	Output   string `json:"output"`
	Category string `json:"category"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

type batchSummary struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	MIMEType string        `json:"mime_type"`
	Size     int           `json:"size"`
	Bundled  bool          `json:"bundled"`
	Files    []fileSummary `json:"files"`
}

func writeSummary(w io.Writer, res *fileconv.BatchResult) error {
	s := batchSummary{
		ID:       res.ID,
		Name:     res.Name,
		MIMEType: res.MIMEType,
		Size:     res.Size,
		Bundled:  res.Bundled,
		Files:    make([]fileSummary, 0, len(res.Files)),
	}
	for _, f := range res.Files {
		fs := fileSummary{
			Source:   f.Source,
			Output:   f.Output,
			Category: string(f.Category),
			MIMEType: f.MIMEType,
			Size:     f.Size,
			Fallback: f.Fallback,
		}
		if f.Err != nil {
			fs.Error = f.Err.Error()
		}
		s.Files = append(s.Files, fs)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
