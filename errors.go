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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrParse             = errors.New("parse failed")
	ErrSerialize         = errors.New("serialize failed")
	ErrDecode            = errors.New("image decode failed")
	ErrEncode            = errors.New("image encode failed")
	ErrContainerParse    = errors.New("could not parse input archive")
	ErrEngineInit        = errors.New("media engine failed to load")
	ErrEngineExec        = errors.New("media conversion failed")

	// Batch preconditions.
	ErrNoFiles  = errors.New("please upload at least one file first")
	ErrNoTarget = errors.New("please select an output format")
)

// Direction tells which side of a conversion an unsupported format is on.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// UnsupportedFormatError is returned when a converter has no codec for the
// source or target extension.
type UnsupportedFormatError struct {
	Category  Category
	Direction Direction
	Extension string
	MIMEType  string
}

func (e *UnsupportedFormatError) Error() string {
	head := "unsupported format"
	if e.Direction != "" {
		head = fmt.Sprintf("unsupported %s format", e.Direction)
	}
	parts := []string{head}
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("category=%s", e.Category))
	}
	if e.Extension != "" {
		parts = append(parts, fmt.Sprintf("extension=%q", e.Extension))
	}
	if e.MIMEType != "" {
		parts = append(parts, fmt.Sprintf("mime=%q", e.MIMEType))
	}
	return strings.Join(parts, " ")
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// StageError attaches a failing conversion stage (one of the sentinels above)
// to the underlying cause.
type StageError struct {
	Stage  error
	Format string
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage.Error())
	if e.Format != "" {
		fmt.Fprintf(&b, " (%s)", e.Format)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Stage}
	}
	return []error{e.Stage, e.Err}
}

func stageError(stage error, format string, err error) error {
	return &StageError{Stage: stage, Format: format, Err: err}
}

// IsUnsupportedFormat reports whether the error is an UnsupportedFormatError.
func IsUnsupportedFormat(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// FailedConversion records a file of a batch that fell back to passthrough.
type FailedConversion struct {
	File string
	Err  error
}

// BatchError is returned when a strict batch stops on a failed file.
type BatchError struct {
	Completed int
	Failed    FailedConversion
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch stopped after %d file(s): %s: %v", e.Completed, e.Failed.File, e.Failed.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Failed.Err
}
