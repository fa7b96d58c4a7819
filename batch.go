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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	// CategoryAuto re-detects the category of every file from its name.
	CategoryAuto Category = "auto"

	bundleName     = "converted_files.zip"
	bundleLevel    = 5
	fallbackBase   = "converted"
	bundleMIMEType = "application/zip"
)

// PendingFile is a named source whose bytes are read on demand.
type PendingFile struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// NewPendingFile wraps an opener. size may be -1 when unknown.
func NewPendingFile(name string, size int64, open func() (io.ReadCloser, error)) PendingFile {
	return PendingFile{Name: name, Size: size, open: open}
}

// FileFromPath returns a PendingFile reading path from disk.
func FileFromPath(path string) (PendingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PendingFile{}, err
	}
	if info.IsDir() {
		return PendingFile{}, fmt.Errorf("%s is a directory", path)
	}
	return NewPendingFile(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// FileFromBytes returns a PendingFile backed by data.
func FileFromBytes(name string, data []byte) PendingFile {
	return NewPendingFile(name, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// Open opens the file for reading.
func (f PendingFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("%s: no content", f.Name)
	}
	return f.open()
}

// ReadAll reads the whole file.
func (f PendingFile) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// BatchRequest describes one batch run.
type BatchRequest struct {
	Files    []PendingFile
	Category Category
	Target   string
}

// Validate checks the request before any file is touched.
func (r BatchRequest) Validate() error {
	if err := validation.Validate(r.Files, validation.Required); err != nil {
		return ErrNoFiles
	}
	if err := validation.Validate(strings.TrimSpace(r.Target), validation.Required); err != nil {
		return ErrNoTarget
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Category, validation.In(categoryChoices()...)),
	)
}

func categoryChoices() []any {
	choices := []any{CategoryAuto}
	for _, c := range Categories() {
		choices = append(choices, c)
	}
	return choices
}

// Job is one file of a batch with its resolved category.
type Job struct {
	File     PendingFile
	Category Category
	Target   string
}

// Jobs resolves the per-file category of every file in order.
func (r BatchRequest) Jobs() []Job {
	target := normalizeExt(r.Target)
	jobs := make([]Job, len(r.Files))
	for i, f := range r.Files {
		jobs[i] = Job{File: f, Category: resolveCategory(r.Category, f.Name), Target: target}
	}
	return jobs
}

// Delivery receives the artifact a batch produces.
type Delivery interface {
	Deliver(ctx context.Context, name, mimeType string, data []byte) error
}

// DirDelivery writes artifacts into Dir, creating it when needed.
type DirDelivery struct {
	Dir string
}

func (d DirDelivery) Deliver(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return os.WriteFile(filepath.Join(d.Dir, filepath.Base(name)), data, 0o644)
}

// FileOutcome reports what happened to one file of a batch.
type FileOutcome struct {
	Source   string
	Output   string
	Category Category
	MIMEType string
	Size     int
	// Fallback is set when the original bytes were kept.
	Fallback bool
	Err      error
}

// BatchResult describes the delivered artifact.
type BatchResult struct {
	ID       string
	Name     string
	MIMEType string
	Size     int
	// Bundled is set when several outputs were packed into one zip.
	Bundled bool
	Files   []FileOutcome
}

// ConvertBatch converts every file in order and delivers a single artifact:
// the converted file itself, or a zip bundle when there are several.
// onProgress receives overall progress in [0,100]; it never decreases and
// ends at exactly 100.
func (fc *FileConv) ConvertBatch(ctx context.Context, req BatchRequest, out Delivery, onProgress ProgressFunc) (*BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("no delivery target")
	}

	id := uuid.NewString()
	jobs := req.Jobs()
	logger := fc.logger.With("batch", id)
	logger.Info("batch started", "files", len(jobs), "category", req.Category, "target", jobs[0].Target)

	progress := newBatchProgress(len(jobs), onProgress)
	result := &BatchResult{ID: id, Files: make([]FileOutcome, 0, len(jobs))}
	var entries []archiveEntry

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := fc.Convert(ctx, job.File, job.Category, job.Target, progress.file(i))
		if res.Err != nil && fc.policy == PolicyPropagate {
			logger.Warn("batch stopped", "file", job.File.Name, "error", res.Err)
			return nil, &BatchError{Completed: i, Failed: FailedConversion{File: job.File.Name, Err: res.Err}}
		}
		progress.done(i)

		name := outputName(job.File.Name, job.Target)
		result.Files = append(result.Files, FileOutcome{
			Source:   job.File.Name,
			Output:   name,
			Category: job.Category,
			MIMEType: res.MIMEType,
			Size:     len(res.Data),
			Fallback: res.Fallback,
			Err:      res.Err,
		})
		entries = append(entries, archiveEntry{Name: name, Data: res.Data})
	}

	if len(entries) == 1 {
		result.Name, result.MIMEType = entries[0].Name, result.Files[0].MIMEType
		result.Size = len(entries[0].Data)
		if err := out.Deliver(ctx, result.Name, result.MIMEType, entries[0].Data); err != nil {
			return nil, fmt.Errorf("deliver %s: %w", result.Name, err)
		}
	} else {
		uniqueNames(entries)
		for i := range entries {
			result.Files[i].Output = entries[i].Name
		}
		var buf bytes.Buffer
		if err := writeZip(&buf, entries, bundleLevel); err != nil {
			return nil, fmt.Errorf("bundle outputs: %w", err)
		}
		result.Name, result.MIMEType, result.Size, result.Bundled = bundleName, bundleMIMEType, buf.Len(), true
		if err := out.Deliver(ctx, bundleName, bundleMIMEType, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("deliver %s: %w", bundleName, err)
		}
	}

	progress.finish()
	logger.Info("batch finished", "artifact", result.Name, "bytes", result.Size, "bundled", result.Bundled)
	return result, nil
}

// resolveCategory returns the fixed category, or detects it from name in
// auto mode. Undetectable files are treated as documents.
func resolveCategory(mode Category, name string) Category {
	if mode != "" && mode != CategoryAuto {
		return mode
	}
	if cat, ok := DetectCategory(name); ok {
		return cat
	}
	return CategoryDocument
}

// outputName replaces the extension of src with target. A name with no
// base left gets fallbackBase.
func outputName(src, target string) string {
	name := filepath.Base(strings.ReplaceAll(src, `\`, "/"))
	base := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base = name[:i]
	}
	if base == "" {
		base = fallbackBase
	}
	return base + "." + target
}

// uniqueNames renames repeated entry names to "name (n).ext".
func uniqueNames(entries []archiveEntry) {
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		name := entries[i].Name
		if seen[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
				if !seen[candidate] {
					name = candidate
					break
				}
			}
		}
		seen[name] = true
		entries[i].Name = name
	}
}

// batchProgress folds per-file percentages into overall batch progress.
type batchProgress struct {
	total  int
	report ProgressFunc
	last   float64
}

func newBatchProgress(total int, report ProgressFunc) *batchProgress {
	return &batchProgress{total: total, report: report}
}

func (p *batchProgress) emit(v float64) {
	v = min(max(v, 0), 100)
	if v < p.last {
		return
	}
	p.last = v
	if p.report != nil {
		p.report(v)
	}
}

// file returns the callback for the file at index i.
func (p *batchProgress) file(i int) ProgressFunc {
	return func(percent float64) {
		percent = min(max(percent, 0), 100)
		p.emit((float64(i) + percent/100) / float64(p.total) * 100)
	}
}

func (p *batchProgress) done(i int) {
	p.emit(float64(i+1) / float64(p.total) * 100)
}

func (p *batchProgress) finish() {
	p.emit(100)
}

// Queue holds files waiting to be converted together.
type Queue struct {
	mu    sync.Mutex
	files []PendingFile
}

// Add appends files to the queue.
func (q *Queue) Add(files ...PendingFile) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = append(q.files, files...)
}

// Remove drops the file at index i. It reports false for an invalid index.
func (q *Queue) Remove(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.files) {
		return false
	}
	q.files = append(q.files[:i], q.files[i+1:]...)
	return true
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = nil
}

// Files returns a copy of the queued files.
func (q *Queue) Files() []PendingFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingFile(nil), q.files...)
}

// Len returns the number of queued files.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

// ConvertAll runs the queue as one batch and clears it on success.
func (q *Queue) ConvertAll(ctx context.Context, fc *FileConv, cat Category, target string, out Delivery, onProgress ProgressFunc) (*BatchResult, error) {
	res, err := fc.ConvertBatch(ctx, BatchRequest{Files: q.Files(), Category: cat, Target: target}, out, onProgress)
	if err != nil {
		return nil, err
	}
	q.Clear()
	return res, nil
}
