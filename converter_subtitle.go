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
	"regexp"
	"strings"
)

var (
	vttHeader     = regexp.MustCompile(`(?i)^WEBVTT[^\n]*\r?\n\r?\n`)
	srtTimestamp  = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}),(\d{3})`)
	vttTimestamp  = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})\.(\d{3})`)
	cueHeader     = regexp.MustCompile(`\d+\r?\n\d{2}:\d{2}:\d{2}[.,]\d{3} --> \d{2}:\d{2}:\d{2}[.,]\d{3}[^\n]*\r?\n`)
	blankLineRuns = regexp.MustCompile(`(\r?\n){2,}`)
)

// SubtitleConverter rewrites SRT and WebVTT cue text. It works on text
// patterns only and never fails.
type SubtitleConverter struct{}

// NewSubtitleConverter creates a new SubtitleConverter.
func NewSubtitleConverter() *SubtitleConverter {
	return &SubtitleConverter{}
}

func (c *SubtitleConverter) Convert(_ context.Context, in Input) (*ConverterResult, error) {
	// Everything is brought to SRT shape first; ass and sub are taken as is.
	text := decodeText(in.Data)
	if in.Ext == "vtt" {
		text = vttTimestamp.ReplaceAllString(vttHeader.ReplaceAllString(text, ""), "$1,$2")
	}

	switch in.Target {
	case "vtt":
		text = "WEBVTT\n\n" + srtTimestamp.ReplaceAllString(text, "$1.$2")
	case "txt":
		text = subtitleText(text)
	}
	return &ConverterResult{Data: []byte(text), MIMEType: subtitleMIME(in.Target)}, nil
}

// subtitleText removes every numbered cue header, leaving only the spoken
// lines.
func subtitleText(text string) string {
	text = vttHeader.ReplaceAllString(text, "")
	text = cueHeader.ReplaceAllString(text, "")
	text = blankLineRuns.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func subtitleMIME(target string) string {
	switch target {
	case "srt":
		return "application/x-subrip"
	case "vtt":
		return "text/vtt"
	}
	return "text/plain"
}
