// Package extract turns a file on disk into a FileRecord-shaped Result:
// stat metadata plus a one-paragraph English description suitable for
// embedding.
//
// Dispatch is by category. Each category has a Describer; a path whose
// extension maps to no category, or whose category has no Describer, yields
// a nil Result, which callers treat as "skip".
package extract

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/fileindex/internal/config"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

// Default limits.
const (
	DefaultDescriptionLimit = 600
	DefaultMaxFileSize      = 100 * 1024 * 1024
)

// Base is the stat metadata every category shares. Times are Unix seconds.
type Base struct {
	Name       string
	Size       int64
	CreatedAt  int64
	UpdatedAt  int64
	AccessedAt int64
}

// Result is what Extract returns for a supported file.
type Result struct {
	Base
	Path        string
	Category    Category
	Description string
}

// Describer builds the description for one category.
type Describer interface {
	Describe(ctx context.Context, path string, base Base) (string, error)
}

// DescriberFunc adapts a function to Describer.
type DescriberFunc func(ctx context.Context, path string, base Base) (string, error)

func (f DescriberFunc) Describe(ctx context.Context, path string, base Base) (string, error) {
	return f(ctx, path, base)
}

// Options configures an Extractor.
type Options struct {
	// DescriptionLimit caps the content excerpt in characters. Default: 600
	DescriptionLimit int
	// MaxFileSize makes larger files unsupported. Default: 100 MB
	MaxFileSize int64
}

// Extractor resolves categories and runs describers.
type Extractor struct {
	table      *Table
	describers map[Category]Describer
	opts       Options
}

// New creates an Extractor with the built-in describers registered for
// every category.
func New(table *Table, opts Options) *Extractor {
	if opts.DescriptionLimit <= 0 {
		opts.DescriptionLimit = DefaultDescriptionLimit
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	e := &Extractor{
		table:      table,
		describers: make(map[Category]Describer),
		opts:       opts,
	}
	limit := opts.DescriptionLimit
	e.Register(CategoryText, textDescriber{limit: limit})
	e.Register(CategoryImage, imageDescriber{})
	e.Register(CategoryAudio, audioDescriber{})
	e.Register(CategoryVideo, videoDescriber{})
	e.Register(CategoryDocument, pdfDescriber{limit: limit})
	return e
}

// NewFromConfig builds an Extractor from the extract config section.
func NewFromConfig(cfg config.ExtractConfig) *Extractor {
	return New(NewTable(cfg.Types), Options{
		DescriptionLimit: cfg.DescriptionLimit,
		MaxFileSize:      cfg.MaxFileSize,
	})
}

// Register installs d for category c, replacing any previous describer.
// Not safe to call concurrently with Extract.
func (e *Extractor) Register(c Category, d Describer) {
	e.describers[c] = d
}

// Category returns the category for path without touching the filesystem.
func (e *Extractor) Category(path string) Category {
	return e.table.Lookup(path)
}

// Extract describes path. It returns nil, nil when the file is of an
// unsupported type or too large. A missing file is a not-found error, a
// non-regular file and describer failures are extraction errors.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	cat := e.table.Lookup(path)
	d, ok := e.describers[cat]
	if cat == CategoryUnknown || !ok {
		return nil, nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fierrors.NotFound(path, err)
		}
		return nil, fierrors.ExtractionError(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fierrors.NotRegular(path)
	}
	if info.Size() > e.opts.MaxFileSize {
		return nil, nil
	}

	base := baseFromInfo(path, info)
	desc, err := d.Describe(ctx, path, base)
	if err != nil {
		return nil, fierrors.ExtractionError(path, err)
	}
	return &Result{
		Base:        base,
		Path:        path,
		Category:    cat,
		Description: desc,
	}, nil
}

func baseFromInfo(path string, info os.FileInfo) Base {
	created, accessed := statTimes(path, info)
	return Base{
		Name:       filepath.Base(path),
		Size:       info.Size(),
		CreatedAt:  created,
		UpdatedAt:  info.ModTime().Unix(),
		AccessedAt: accessed,
	}
}
