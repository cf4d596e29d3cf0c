package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlainRenderer_PrintsStageChanges(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: the run moves through stages
	r.UpdateProgress(ProgressEvent{Stage: StageReconciling})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Processed: 1, Queued: 3, CurrentFile: "/a.txt"})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Processed: 2, Queued: 3})

	// Then: each stage prints once and the throttled update is dropped
	assert.Equal(t, "[CHECK] Reconcile\n[SCAN] 1/3 /a.txt\n", buf.String())
}

func TestPlainRenderer_PrintsAfterInterval(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	r.interval = 0

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Processed: 1, Queued: 3})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Processed: 2, Queued: 3})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Processed: 2, Queued: 3})

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestPlainRenderer_Errors(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{File: "/bad.pdf", Err: errors.New("corrupt")})
	r.AddError(ErrorEvent{Err: errors.New("slow"), IsWarn: true})

	assert.Equal(t, "ERROR: /bad.pdf: corrupt\nWARN: slow\n", buf.String())
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a finished run with failures and pruned files
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing
	r.Complete(CompletionStats{Indexed: 3, Removed: 1, Skipped: 2, Failed: 1, Pruned: 1, Duration: 1500 * time.Millisecond, Space: "static-v1"})

	// Then: the summary lists every count
	out := buf.String()
	assert.Contains(t, out, "Complete: 3 indexed, 1 removed, 0 moved, 2 skipped in 1.5s (1 failed)")
	assert.Contains(t, out, "Pruned 1 files")
	assert.Contains(t, out, "Embedding space: static-v1")
}
