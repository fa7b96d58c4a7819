package ffmpeg

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var durationLine = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// progressTracker turns ffmpeg's stderr banner and -progress key=value
// stream into a completion ratio in [0,1].
type progressTracker struct {
	mu       sync.Mutex
	duration time.Duration
	last     float64
	report   func(ratio float64)
}

func newProgressTracker(report func(ratio float64)) *progressTracker {
	return &progressTracker{report: report}
}

// stderrLine looks for the input duration.
func (t *progressTracker) stderrLine(line string) {
	m := durationLine.FindStringSubmatch(line)
	if m == nil {
		return
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec*float64(time.Second))

	t.mu.Lock()
	if t.duration == 0 && d > 0 {
		t.duration = d
	}
	t.mu.Unlock()
}

// progressLine handles one key=value line from -progress pipe:1.
func (t *progressTracker) progressLine(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return
		}
		t.mu.Lock()
		d := t.duration
		t.mu.Unlock()
		if d <= 0 {
			return
		}
		t.emit(float64(us) / float64(d.Microseconds()))
	case "progress":
		if value == "end" {
			t.emit(1)
		}
	}
}

func (t *progressTracker) emit(ratio float64) {
	ratio = min(max(ratio, 0), 1)

	t.mu.Lock()
	if ratio <= t.last && ratio < 1 {
		t.mu.Unlock()
		return
	}
	t.last = ratio
	t.mu.Unlock()

	if t.report != nil {
		t.report(ratio)
	}
}

// splitLines is a bufio.SplitFunc that breaks on \n or \r, since ffmpeg
// rewrites its status line with carriage returns.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	n     int
	lines []string
}

func (b *tailBuffer) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.n {
		b.lines = b.lines[len(b.lines)-b.n:]
	}
}

func (b *tailBuffer) String() string {
	return strings.Join(b.lines, "\n")
}
