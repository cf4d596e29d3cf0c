package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

type pdfDescriber struct {
	limit int
}

func (d pdfDescriber) Describe(ctx context.Context, path string, b Base) (desc string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			desc, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()
	head := fmt.Sprintf("PDF document %q, %d page%s, size %s.", b.Name, pages, plural(pages), formatSize(b.Size))

	var info []string
	meta := r.Trailer().Key("Info")
	for _, field := range []struct{ key, label string }{
		{"Title", "title"},
		{"Author", "author"},
		{"Subject", "subject"},
		{"Creator", "created with"},
		{"Producer", "producer"},
	} {
		if v := strings.TrimSpace(meta.Key(field.key).Text()); v != "" {
			info = append(info, fmt.Sprintf("%s: %s", field.label, v))
		}
	}
	var infoSentence string
	if len(info) > 0 {
		infoSentence = capitalize(strings.Join(info, "; ")) + "."
	}

	desc = joinSentences(head, infoSentence, datesSentence(b))
	return withExcerpt(desc, "Text", d.excerpt(ctx, r), d.limit), nil
}

// excerpt collects page text until it has enough for the description.
func (d pdfDescriber) excerpt(ctx context.Context, r *pdf.Reader) string {
	var sb strings.Builder
	for i := 1; i <= r.NumPage() && sb.Len() < 4*d.limit; i++ {
		if ctx.Err() != nil {
			break
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte(' ')
	}
	return sb.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
