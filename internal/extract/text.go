package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// maxTextRead bounds how much of a text file is read for its excerpt.
const maxTextRead = 64 * 1024

var errNotUTF8 = errors.New("content is not valid UTF-8")

type textDescriber struct {
	limit int
}

func (d textDescriber) Describe(_ context.Context, path string, b Base) (string, error) {
	content, err := readText(path)
	if err != nil {
		return "", err
	}

	intro := fmt.Sprintf("The file %q has a size of %s.", b.Name, formatSize(b.Size))
	if dates := datesSentence(b); dates != "" {
		intro += " " + dates
	}
	return withExcerpt(intro, "Context", content, d.limit), nil
}

// readText reads up to maxTextRead bytes of UTF-8 text. A rune split by the
// read limit is dropped rather than treated as invalid.
func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, maxTextRead))
	if err != nil {
		return "", err
	}
	if len(buf) == maxTextRead {
		for i := 0; i < utf8.UTFMax-1 && len(buf) > 0 && !utf8.Valid(buf); i++ {
			buf = buf[:len(buf)-1]
		}
	}
	if !utf8.Valid(buf) {
		return "", errNotUTF8
	}
	return string(buf), nil
}
