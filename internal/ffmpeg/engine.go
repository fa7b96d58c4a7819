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

// Package ffmpeg runs the ffmpeg binary against a private working directory
// that stands in for an in-memory filesystem.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Load when no ffmpeg binary can be located.
var ErrNotFound = errors.New("ffmpeg binary not found")

// stderrTail is how many stderr lines are kept for error messages.
const stderrTail = 8

// Config controls how Load finds the binary and where it works.
type Config struct {
	// BinaryPath overrides binary discovery when set.
	BinaryPath string
	// WorkDir is the parent of the private working directory. Empty means
	// os.TempDir().
	WorkDir string
	Logger  *slog.Logger
}

// Engine is a loaded ffmpeg binary plus its working directory.
type Engine struct {
	binary string
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// Load resolves and probes the ffmpeg binary and creates the working
// directory.
func Load(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	binary := cfg.BinaryPath
	if binary == "" {
		found, ok := findBinary("ffmpeg")
		if !ok {
			return nil, ErrNotFound
		}
		binary = found
	}

	probe := exec.CommandContext(ctx, binary, "-hide_banner", "-version")
	out, err := probe.Output()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", binary, err)
	}
	version, _, _ := strings.Cut(string(out), "\n")

	dir, err := os.MkdirTemp(cfg.WorkDir, "fileconv-ffmpeg-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	logger.Debug("ffmpeg loaded", "binary", binary, "version", strings.TrimSpace(version), "dir", dir)
	return &Engine{binary: binary, dir: dir, logger: logger}, nil
}

// path maps a file name into the working directory. Directory parts are
// dropped.
func (e *Engine) path(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(e.dir, base), nil
}

// WriteFile stores data under name in the working directory.
func (e *Engine) WriteFile(name string, data []byte) error {
	p, err := e.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// ReadFile reads name from the working directory.
func (e *Engine) ReadFile(name string) ([]byte, error) {
	p, err := e.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// DeleteFile removes name from the working directory.
func (e *Engine) DeleteFile(name string) error {
	p, err := e.path(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Exec runs ffmpeg with args in the working directory. progress, when not
// nil, receives the completion ratio. Runs are serialized.
func (e *Engine) Exec(ctx context.Context, args []string, progress func(ratio float64)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	full := append([]string{"-hide_banner", "-y", "-nostdin", "-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, e.binary, full...)
	cmd.Dir = e.dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	tracker := newProgressTracker(progress)
	tail := &tailBuffer{n: stderrTail}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scan(stdout, tracker.progressLine)
	}()
	go func() {
		defer wg.Done()
		scan(stderr, func(line string) {
			tracker.stderrLine(line)
			tail.add(line)
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if msg := tail.String(); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func scan(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(splitLines)
	for sc.Scan() {
		fn(sc.Text())
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// Close removes the working directory.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return os.RemoveAll(e.dir)
}
