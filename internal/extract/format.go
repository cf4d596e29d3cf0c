package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const timestampLayout = "2006-01-02 15:04"

func formatSize(n int64) string {
	if n < 0 {
		return ""
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).Format(timestampLayout)
}

func formatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs <= 0 {
		return ""
	}
	h, rem := secs/3600, secs%3600
	m, s := rem/60, rem%60
	if h > 0 {
		return fmt.Sprintf("%d h %02d min %02d s", h, m, s)
	}
	return fmt.Sprintf("%d min %02d s", m, s)
}

func formatChannels(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "mono (1 channel)"
	case n == 2:
		return "stereo (2 channels)"
	default:
		return fmt.Sprintf("%d channels", n)
	}
}

func formatSampleRate(hz int) string {
	if hz <= 0 {
		return ""
	}
	if hz%1000 == 0 {
		return fmt.Sprintf("%d kHz", hz/1000)
	}
	return fmt.Sprintf("%.1f kHz", float64(hz)/1000)
}

// joinSentences joins the non-blank parts with single spaces.
func joinSentences(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// shorten caps text at max characters. It prefers to cut at a word
// boundary, but only when that keeps at least 50 characters.
func shorten(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := max - 1
	if cut < 0 {
		cut = 0
	}
	space := -1
	for i := cut - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			space = i
			break
		}
	}
	if space >= 50 {
		return string(runes[:space]) + "…"
	}
	return string(runes[:cut]) + "…"
}

// collapseSpace folds every whitespace run, newlines included, to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// withExcerpt appends a labelled excerpt to a description, ending it with a
// period unless the excerpt already ends a sentence.
func withExcerpt(desc, label, content string, limit int) string {
	content = collapseSpace(content)
	if content == "" {
		return desc
	}
	excerpt := shorten(content, limit)
	out := desc + " " + label + ": " + excerpt
	if !strings.HasSuffix(excerpt, ".") && !strings.HasSuffix(excerpt, "!") &&
		!strings.HasSuffix(excerpt, "?") && !strings.HasSuffix(excerpt, "…") {
		out += "."
	}
	return out
}

// datesSentence renders the stat times, skipping any that are unknown.
func datesSentence(b Base) string {
	var bits []string
	if s := formatTimestamp(b.CreatedAt); s != "" {
		bits = append(bits, "created "+s)
	}
	if s := formatTimestamp(b.UpdatedAt); s != "" {
		bits = append(bits, "modified "+s)
	}
	if s := formatTimestamp(b.AccessedAt); s != "" {
		bits = append(bits, "last accessed "+s)
	}
	if len(bits) == 0 {
		return ""
	}
	return capitalize(strings.Join(bits, "; ")) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[n:]
}
