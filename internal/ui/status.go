package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// SpaceStatus is one embedding space in the vector store.
type SpaceStatus struct {
	Space   string `json:"space"`
	Dim     int    `json:"dim"`
	Vectors int    `json:"vectors"`
}

// StatusInfo describes the index in a data directory.
type StatusInfo struct {
	DataDir     string         `json:"data_dir"`
	Files       int            `json:"files"`
	Categories  map[string]int `json:"categories"`
	Spaces      []SpaceStatus  `json:"spaces"`
	LastIndexed time.Time      `json:"last_indexed,omitzero"`

	MetadataSize int64 `json:"metadata_size"`
	VectorSize   int64 `json:"vector_size"`
	TotalSize    int64 `json:"total_size"`

	Embedder      string `json:"embedder"`
	WatcherStatus string `json:"watcher_status"` // "running" or "stopped"
	WatcherPID    int    `json:"watcher_pid,omitempty"`
}

// StatusRenderer prints StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor || DetectNoColor())}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	w := r.out
	_, _ = fmt.Fprintf(w, "%s\n\n", r.styles.Header.Render("Index Status: "+info.DataDir))

	_, _ = fmt.Fprintf(w, "  Files:        %d\n", info.Files)
	cats := make([]string, 0, len(info.Categories))
	for c := range info.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		_, _ = fmt.Fprintf(w, "    %-10s  %d\n", c, info.Categories[c])
	}
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(w, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "  Vectors:")
	if len(info.Spaces) == 0 {
		_, _ = fmt.Fprintf(w, "    %s\n", r.styles.Dim.Render("none"))
	}
	for _, s := range info.Spaces {
		_, _ = fmt.Fprintf(w, "    %-24s %d × %d dims\n", s.Space, s.Vectors, s.Dim)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "  Storage:")
	_, _ = fmt.Fprintf(w, "    Metadata:   %s\n", FormatBytes(info.MetadataSize))
	_, _ = fmt.Fprintf(w, "    Vectors:    %s\n", FormatBytes(info.VectorSize))
	_, _ = fmt.Fprintf(w, "    Total:      %s\n", FormatBytes(info.TotalSize))
	_, _ = fmt.Fprintln(w)

	if info.Embedder != "" {
		_, _ = fmt.Fprintf(w, "  Embedder: %s\n", info.Embedder)
	}
	watcher := r.renderStatus(info.WatcherStatus)
	if info.WatcherPID > 0 {
		watcher += fmt.Sprintf(" (pid %d)", info.WatcherPID)
	}
	_, _ = fmt.Fprintf(w, "  Watcher:  %s\n", watcher)
	return nil
}

// RenderJSON writes info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	default:
		return status
	}
}

func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats a byte count.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
