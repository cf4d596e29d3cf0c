package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// followInterval is how often Follow checks the log file for new lines.
const followInterval = 100 * time.Millisecond

// maxLineBytes bounds a single log line when reading.
const maxLineBytes = 1024 * 1024

// Entry is one parsed log line. Lines that are not JSON keep only Raw.
type Entry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig filters and styles the output of a Viewer.
type ViewerConfig struct {
	// Level is the minimum level shown; empty shows everything.
	Level   string
	Pattern *regexp.Regexp
	NoColor bool
}

// Viewer reads the JSON log files written by Setup.
type Viewer struct {
	cfg      ViewerConfig
	filter   bool
	minLevel slog.Level
	out      io.Writer
	// levels is nil when color is off.
	levels map[string]lipgloss.Style
}

func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{cfg: cfg, out: out}
	if cfg.Level != "" {
		v.filter = true
		v.minLevel = ParseLevel(cfg.Level)
	}
	if !cfg.NoColor {
		base := lipgloss.NewStyle()
		v.levels = map[string]lipgloss.Style{
			"DEBUG": base.Foreground(lipgloss.Color("245")),
			"INFO":  base.Foreground(lipgloss.Color("154")),
			"WARN":  base.Foreground(lipgloss.Color("220")),
			"ERROR": base.Foreground(lipgloss.Color("196")).Bold(true),
		}
	}
	return v
}

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []Entry
	for _, line := range ring {
		if e := ParseLine(line); v.Match(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path until ctx is done. A file that
// shrinks or is replaced by rotation is reopened from the start.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	r := bufio.NewReader(f)

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := r.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if e := ParseLine(line); v.Match(e) {
				select {
				case entries <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}

		if rotated(f, path, offset) {
			nf, err := os.Open(path)
			if err != nil {
				continue
			}
			_ = f.Close()
			f, r, offset, partial = nf, bufio.NewReader(nf), 0, ""
		}
	}
}

// rotated reports whether path no longer names the open file or the file
// was truncated below what has been read.
func rotated(f *os.File, path string, offset int64) bool {
	open, err := f.Stat()
	if err != nil {
		return true
	}
	cur, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !os.SameFile(open, cur) || cur.Size() < offset
}

// ParseLine decodes a JSON log line.
func ParseLine(line string) Entry {
	e := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			e.Time = parsed
		}
	}
	e.Level, _ = data["level"].(string)
	e.Msg, _ = data["msg"].(string)

	delete(data, "time")
	delete(data, "level")
	delete(data, "msg")
	e.Attrs = data
	return e
}

// Match applies the level and pattern filters. Unparsed lines pass the
// level filter.
func (v *Viewer) Match(e Entry) bool {
	if v.filter && e.IsValid && ParseLevel(e.Level) < v.minLevel {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

// Format renders an entry as "15:04:05.000 LEVEL msg k=v ..." with
// attributes sorted by key.
func (v *Viewer) Format(e Entry) string {
	if !e.IsValid {
		return e.Raw
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	level := fmt.Sprintf("%-5s", e.Level)
	if style, ok := v.levels[e.Level]; ok {
		level = style.Render(level)
	}
	sb.WriteString(level)
	sb.WriteByte(' ')
	sb.WriteString(e.Msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Attrs[k])
	}
	return sb.String()
}

// Print writes each entry on its own line.
func (v *Viewer) Print(entries []Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.Format(e))
	}
}
