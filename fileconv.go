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
	"context"
	"fmt"
	"log/slog"
)

// FallbackPolicy decides what the dispatcher does with a converter error.
type FallbackPolicy int

const (
	// PolicyPassthrough logs the error and returns the input bytes unchanged,
	// tagged application/octet-stream.
	PolicyPassthrough FallbackPolicy = iota
	// PolicyPropagate reports the error in Result.Err and returns no data.
	PolicyPropagate
)

func (p FallbackPolicy) String() string {
	switch p {
	case PolicyPassthrough:
		return "passthrough"
	case PolicyPropagate:
		return "propagate"
	}
	return fmt.Sprintf("FallbackPolicy(%d)", int(p))
}

// Result is the outcome of converting one file.
type Result struct {
	Data     []byte
	MIMEType string
	// Fallback is set when a converter failed and Data holds the original
	// bytes.
	Fallback bool
	// Err is the converter error, kept for diagnostics even when masked.
	Err error
}

// FileConv routes files to per-category converters.
type FileConv struct {
	converters   map[Category]FormatConverter
	logger       *slog.Logger
	policy       FallbackPolicy
	media        *MediaRuntime
	imageQuality float64
	keepDataURIs bool
}

// New creates a new FileConv instance with the given options.
func New(opts ...Option) *FileConv {
	fc := &FileConv{
		converters:   make(map[Category]FormatConverter),
		logger:       slog.Default(),
		imageQuality: defaultImageQuality,
	}
	for _, opt := range opts {
		opt(fc)
	}
	if fc.media == nil {
		fc.media = NewMediaRuntime(FFmpegLoader("", fc.logger))
	}
	fc.enableBuiltins()
	return fc
}

// RegisterConverter replaces the strategy used for a category.
func (fc *FileConv) RegisterConverter(cat Category, c FormatConverter) {
	fc.converters[cat] = c
}

// Policy returns the active fallback policy.
func (fc *FileConv) Policy() FallbackPolicy {
	return fc.policy
}

// MediaRuntime returns the transcoding runtime shared by media conversions.
func (fc *FileConv) MediaRuntime() *MediaRuntime {
	return fc.media
}

// Convert converts one pending file to target. It never returns an error:
// failures are masked or reported through Result according to the policy.
func (fc *FileConv) Convert(ctx context.Context, file PendingFile, cat Category, target string, onProgress ProgressFunc) *Result {
	data, err := file.ReadAll()
	if err != nil {
		fc.logger.Warn("read pending file", "file", file.Name, "error", err)
		if fc.policy == PolicyPropagate {
			return &Result{Err: fmt.Errorf("read %s: %w", file.Name, err)}
		}
		return &Result{Data: []byte{}, MIMEType: octetStream, Fallback: true, Err: err}
	}
	return fc.ConvertBytes(ctx, file.Name, data, cat, target, onProgress)
}

// ConvertBytes converts in-memory content named filename to target.
func (fc *FileConv) ConvertBytes(ctx context.Context, filename string, data []byte, cat Category, target string, onProgress ProgressFunc) *Result {
	in := Input{
		Data:     data,
		Filename: filename,
		Ext:      Extension(filename),
		Target:   normalizeExt(target),
		Progress: onProgress,
	}

	res, err := fc.run(ctx, cat, in)
	if err != nil {
		return fc.fallback(cat, in, err)
	}
	in.report(100)
	return &Result{Data: res.Data, MIMEType: res.MIMEType}
}

// run invokes the category strategy, turning panics into errors.
func (fc *FileConv) run(ctx context.Context, cat Category, in Input) (res *ConverterResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s converter panicked: %v", cat, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, ok := fc.converters[cat]
	if !ok {
		c = passthroughConverter{category: cat}
	}
	res, err = c.Convert(ctx, in)
	if err == nil && res == nil {
		err = fmt.Errorf("%s converter returned no result", cat)
	}
	return res, err
}

func (fc *FileConv) fallback(cat Category, in Input, err error) *Result {
	if fc.policy == PolicyPropagate {
		fc.logger.Debug("conversion failed",
			"category", cat, "file", in.Filename, "target", in.Target, "error", err)
		return &Result{Err: err}
	}

	fc.logger.Warn("conversion failed, returning original bytes",
		"category", cat, "file", in.Filename, "target", in.Target, "error", err)
	in.report(100)
	return &Result{
		Data:     in.Data,
		MIMEType: octetStream,
		Fallback: true,
		Err:      err,
	}
}

// enableBuiltins registers the built-in strategy for every category.
func (fc *FileConv) enableBuiltins() {
	fc.RegisterConverter(CategoryDeveloper, NewDeveloperConverter())
	fc.RegisterConverter(CategorySubtitle, NewSubtitleConverter())
	fc.RegisterConverter(CategoryImage, NewImageConverter(fc.imageQuality))
	fc.RegisterConverter(CategoryArchive, NewArchiveConverter())

	media := NewMediaConverter(fc.media, fc.logger)
	fc.RegisterConverter(CategoryVideo, media)
	fc.RegisterConverter(CategoryAudio, media)

	fc.RegisterConverter(CategoryDocument, NewDocumentConverter(fc.keepDataURIs))
	fc.RegisterConverter(CategoryEbook, NewEbookConverter(fc.keepDataURIs))
	fc.RegisterConverter(CategoryFont, passthroughConverter{category: CategoryFont})
	fc.RegisterConverter(CategoryCAD3D, passthroughConverter{category: CategoryCAD3D})
}

// passthroughConverter returns the input unchanged under a content type
// derived from the target.
type passthroughConverter struct {
	category Category
}

func (c passthroughConverter) Convert(_ context.Context, in Input) (*ConverterResult, error) {
	return &ConverterResult{Data: in.Data, MIMEType: passthroughMIME(c.category, in.Target)}, nil
}

func passthroughMIME(cat Category, target string) string {
	switch cat {
	case CategoryDocument:
		return mimeFromExtension(target)
	case CategoryEbook:
		return "application/x-" + target
	case CategoryFont:
		return "font/" + target
	case CategoryCAD3D:
		return "model/" + target
	}
	return octetStream
}
