package extract

import (
	"context"
	"fmt"
)

type videoDescriber struct{}

func (videoDescriber) Describe(_ context.Context, path string, b Base) (string, error) {
	head := fmt.Sprintf("Video file %q in %s container, size %s.", b.Name, containerName(path), formatSize(b.Size))
	return joinSentences(head, datesSentence(b)), nil
}
