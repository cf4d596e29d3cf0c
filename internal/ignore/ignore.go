// Package ignore decides which paths never enter the index.
//
// Built-in rules cover version-control and cache directories, editor
// lock/swap/backup files, OS metadata files and the index's own storage.
// User patterns follow gitignore glob syntax and are evaluated relative to
// the watched root that contains the path.
package ignore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ignoredSegments = map[string]bool{
		".git":   true,
		".cache": true,
	}
	ignoredNames = map[string]bool{
		".DS_Store": true,
		"Thumbs.db": true,
		"app.db":    true,
	}
	ignoredPrefixes = []string{"~$", ".#"}
	ignoredSuffixes = []string{".swp", ".swo", ".tmp", "~"}

	storageNames    = []string{"metadata.db", "vectors.db"}
	storageSuffixes = []string{"", "-wal", "-shm", "-journal"}
)

// Options configures a Matcher.
type Options struct {
	// Patterns are gitignore-style globs.
	Patterns []string
	// Roots are the watched roots user patterns are relative to.
	Roots []string
	// Reserved directories are ignored with everything beneath them.
	Reserved []string
}

// Matcher is safe for concurrent use once built.
type Matcher struct {
	roots    []string
	reserved []string
	rules    []rule
}

type rule struct {
	pattern  string
	re       *regexp.Regexp
	dirOnly  bool
	basename bool
	negate   bool
}

// New compiles a Matcher.
func New(opts Options) (*Matcher, error) {
	m := &Matcher{}
	for _, r := range opts.Roots {
		m.roots = append(m.roots, clean(r))
	}
	for _, r := range opts.Reserved {
		if r != "" {
			m.reserved = append(m.reserved, clean(r))
		}
	}
	for _, p := range opts.Patterns {
		r, ok, err := compile(p)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		if ok {
			m.rules = append(m.rules, r)
		}
	}
	return m, nil
}

// Default returns a Matcher with only the built-in rules.
func Default() *Matcher {
	return &Matcher{}
}

// Match reports whether a file path must be ignored.
func (m *Matcher) Match(path string) bool {
	return m.match(path, false)
}

// MatchDir reports whether a directory (and so everything below it) must be ignored.
func (m *Matcher) MatchDir(path string) bool {
	return m.match(path, true)
}

func (m *Matcher) match(path string, isDir bool) bool {
	if path == "" {
		return true
	}
	path = clean(path)

	for _, r := range m.reserved {
		if within(path, r) {
			return true
		}
	}

	segments := strings.Split(filepath.ToSlash(path), "/")
	name := segments[len(segments)-1]
	for _, seg := range segments {
		if ignoredSegments[seg] {
			return true
		}
	}
	if builtinName(name) {
		return true
	}
	if len(m.rules) == 0 {
		return false
	}
	return m.matchRules(m.relative(path), isDir)
}

func builtinName(name string) bool {
	if ignoredNames[name] {
		return true
	}
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	for _, base := range storageNames {
		for _, s := range storageSuffixes {
			if name == base+s {
				return true
			}
		}
	}
	return false
}

// matchRules applies user rules to rel and each of its ancestors, last match
// wins, so an ignored directory hides its whole subtree.
func (m *Matcher) matchRules(rel string, isDir bool) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		candidate := strings.Join(parts[:i], "/")
		candidateIsDir := i < len(parts) || isDir

		ignored := false
		for _, r := range m.rules {
			if r.dirOnly && !candidateIsDir {
				continue
			}
			subject := candidate
			if r.basename {
				subject = parts[i-1]
			}
			if r.re.MatchString(subject) {
				ignored = !r.negate
			}
		}
		if ignored {
			return true
		}
	}
	return false
}

// relative returns path relative to its containing root, slash separated.
func (m *Matcher) relative(path string) string {
	best := ""
	for _, r := range m.roots {
		if within(path, r) && len(r) > len(best) {
			best = r
		}
	}
	if best != "" {
		if rel, err := filepath.Rel(best, path); err == nil && rel != "." {
			return filepath.ToSlash(rel)
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(path), "/")
}

func compile(pattern string) (rule, bool, error) {
	p := strings.TrimSpace(pattern)
	if p == "" || strings.HasPrefix(p, "#") {
		return rule{}, false, nil
	}

	r := rule{pattern: p}
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(p, "/")
	} else if !strings.Contains(p, "/") {
		r.basename = true
	}
	if p == "" {
		return rule{}, false, nil
	}

	re, err := regexp.Compile("^" + globToRegex(p) + "$")
	if err != nil {
		return rule{}, false, err
	}
	r.re = re
	return r, true, nil
}

// globToRegex translates gitignore glob syntax: ** spans directories,
// * and ? stay within one segment, [...] passes through.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(glob[i : i+end+2])
			i += end + 1
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(string(glob[i])))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

func clean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
