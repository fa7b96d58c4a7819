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

import "context"

// ProgressFunc receives a completion percentage in [0,100].
type ProgressFunc func(percent float64)

// Input holds one file handed to a FormatConverter.
type Input struct {
	Data     []byte
	Filename string
	// Ext is the lower-cased source extension without the dot.
	Ext string
	// Target is the lower-cased target extension without the dot.
	Target   string
	Progress ProgressFunc
}

func (in Input) report(percent float64) {
	if in.Progress != nil {
		in.Progress(percent)
	}
}

// ConverterResult holds the output of a single strategy.
type ConverterResult struct {
	Data     []byte
	MIMEType string
}

// FormatConverter is the interface every category strategy implements.
// Implementations return typed errors; the dispatcher decides whether they
// are masked.
type FormatConverter interface {
	Convert(ctx context.Context, in Input) (*ConverterResult, error)
}

// ConverterFunc adapts a function to FormatConverter.
type ConverterFunc func(ctx context.Context, in Input) (*ConverterResult, error)

func (f ConverterFunc) Convert(ctx context.Context, in Input) (*ConverterResult, error) {
	return f(ctx, in)
}
