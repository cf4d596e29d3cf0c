package extract

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/fileindex/internal/config"
)

// Category is the closed set of file families the extractor understands.
type Category string

const (
	CategoryUnknown  Category = ""
	CategoryText     Category = "text"
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
)

func (c Category) String() string {
	if c == CategoryUnknown {
		return "unknown"
	}
	return string(c)
}

// Table resolves a path's category from its extension. It is built once
// from configuration and read-only afterwards.
type Table struct {
	extToCat map[string]Category
}

// NewTable builds a Table from the configured extension lists.
// Extensions are matched case-insensitively.
func NewTable(types config.TypeTable) *Table {
	t := &Table{extToCat: make(map[string]Category)}
	for name, exts := range types.Categories() {
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			t.extToCat[ext] = Category(name)
		}
	}
	return t
}

// Lookup returns the category for path, or CategoryUnknown.
func (t *Table) Lookup(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return CategoryUnknown
	}
	return t.extToCat[ext]
}

// Extensions lists every registered extension, sorted.
func (t *Table) Extensions() []string {
	exts := make([]string, 0, len(t.extToCat))
	for ext := range t.extToCat {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
