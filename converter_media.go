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
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicholasgasior/fileconv-go/internal/ffmpeg"
)

// EngineState is the load state of a MediaRuntime.
type EngineState int

const (
	EngineUninitialized EngineState = iota
	EngineReady
	EngineFailed
)

func (s EngineState) String() string {
	switch s {
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	}
	return "uninitialized"
}

// MediaEngine is a transcoder working on a private file namespace.
type MediaEngine interface {
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	DeleteFile(name string) error
	Exec(ctx context.Context, args []string, progress func(ratio float64)) error
}

// MediaEngineLoader produces a MediaEngine. It is called at most once per
// MediaRuntime unless the runtime is reset.
type MediaEngineLoader func(ctx context.Context) (MediaEngine, error)

// MediaRuntime loads a MediaEngine lazily on first use and shares it
// between jobs. A failed load is remembered.
type MediaRuntime struct {
	load MediaEngineLoader

	mu      sync.Mutex
	state   EngineState
	engine  MediaEngine
	loadErr error
}

// NewMediaRuntime creates a runtime that will call load on first use.
func NewMediaRuntime(load MediaEngineLoader) *MediaRuntime {
	return &MediaRuntime{load: load}
}

// FFmpegLoader loads the ffmpeg binary. An empty binaryPath searches the
// usual locations.
func FFmpegLoader(binaryPath string, logger *slog.Logger) MediaEngineLoader {
	return func(ctx context.Context) (MediaEngine, error) {
		e, err := ffmpeg.Load(ctx, ffmpeg.Config{BinaryPath: binaryPath, Logger: logger})
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Engine returns the shared engine, loading it on the first call.
func (rt *MediaRuntime) Engine(ctx context.Context) (MediaEngine, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch rt.state {
	case EngineReady:
		return rt.engine, nil
	case EngineFailed:
		return nil, fmt.Errorf("%w: %w", ErrEngineInit, rt.loadErr)
	}

	if rt.load == nil {
		rt.state, rt.loadErr = EngineFailed, errors.New("no engine loader")
		return nil, fmt.Errorf("%w: %w", ErrEngineInit, rt.loadErr)
	}
	engine, err := rt.load(ctx)
	if err != nil {
		rt.state, rt.loadErr = EngineFailed, err
		return nil, fmt.Errorf("%w: %w", ErrEngineInit, err)
	}
	rt.state, rt.engine = EngineReady, engine
	return engine, nil
}

// State reports the current load state.
func (rt *MediaRuntime) State() EngineState {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

// Reset forgets a failed load so the next job tries again. A ready engine
// is kept.
func (rt *MediaRuntime) Reset() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state == EngineFailed {
		rt.state, rt.loadErr = EngineUninitialized, nil
	}
}

// Close releases the engine if it holds resources.
func (rt *MediaRuntime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var err error
	if c, ok := rt.engine.(interface{ Close() error }); ok {
		err = c.Close()
	}
	rt.state, rt.engine, rt.loadErr = EngineUninitialized, nil, nil
	return err
}

// MediaConverter transcodes audio and video through the runtime's engine.
type MediaConverter struct {
	runtime *MediaRuntime
	logger  *slog.Logger
}

// NewMediaConverter creates a new MediaConverter.
func NewMediaConverter(rt *MediaRuntime, logger *slog.Logger) *MediaConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaConverter{runtime: rt, logger: logger}
}

func (c *MediaConverter) Convert(ctx context.Context, in Input) (*ConverterResult, error) {
	if c.runtime == nil {
		return nil, fmt.Errorf("%w: no media runtime", ErrEngineInit)
	}
	engine, err := c.runtime.Engine(ctx)
	if err != nil {
		return nil, err
	}

	input := "input." + in.Ext
	output := "output." + in.Target
	defer func() {
		for _, name := range []string{input, output} {
			if err := engine.DeleteFile(name); err != nil {
				c.logger.Debug("media cleanup", "file", name, "error", err)
			}
		}
	}()

	if err := engine.WriteFile(input, in.Data); err != nil {
		return nil, stageError(ErrEngineExec, in.Target, err)
	}

	args := append([]string{"-i", input}, mediaArgs(in.Target)...)
	args = append(args, output)
	if err := engine.Exec(ctx, args, func(ratio float64) { in.report(ratio * 100) }); err != nil {
		return nil, stageError(ErrEngineExec, in.Target, err)
	}

	data, err := engine.ReadFile(output)
	if err != nil {
		return nil, stageError(ErrEngineExec, in.Target, err)
	}
	return &ConverterResult{Data: data, MIMEType: mediaMIME(in.Target)}, nil
}

// mediaArgs returns target-specific encoder settings.
func mediaArgs(target string) []string {
	switch target {
	case "gif":
		return []string{"-vf", "fps=10,scale=320:-1:flags=lanczos"}
	case "mp3":
		return []string{"-vn"}
	}
	return nil
}

var mediaMIMETypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"gif":  "image/gif",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"aac":  "audio/aac",
}

func mediaMIME(target string) string {
	if m, ok := mediaMIMETypes[target]; ok {
		return m
	}
	return "video/" + target
}
