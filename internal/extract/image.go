package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"strings"
)

type imageDescriber struct{}

func (imageDescriber) Describe(_ context.Context, path string, b Base) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}

	head := fmt.Sprintf("Image %q, %s, %d×%d pixels, size %s.",
		b.Name, strings.ToUpper(format), cfg.Width, cfg.Height, formatSize(b.Size))
	return joinSentences(head, orientation(cfg.Width, cfg.Height), datesSentence(b)), nil
}

func orientation(w, h int) string {
	switch {
	case w == 0 || h == 0:
		return ""
	case w == h:
		return "Square format."
	case w > h:
		return "Landscape orientation."
	default:
		return "Portrait orientation."
	}
}
