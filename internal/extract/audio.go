package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var errNotWAV = errors.New("not a RIFF/WAVE file")

type audioDescriber struct{}

func (audioDescriber) Describe(_ context.Context, path string, b Base) (string, error) {
	var tech []string
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		h, err := readWAVHeader(path)
		if err != nil {
			return "", err
		}
		for _, s := range []string{
			formatDuration(h.duration()),
			formatChannels(int(h.Channels)),
			formatSampleRate(int(h.SampleRate)),
		} {
			if s != "" {
				tech = append(tech, s)
			}
		}
		if h.BitsPerSample > 0 {
			tech = append(tech, fmt.Sprintf("%d-bit", h.BitsPerSample))
		}
	}

	head := fmt.Sprintf("Audio file %q in %s format, size %s.", b.Name, containerName(path), formatSize(b.Size))
	var techSentence string
	if len(tech) > 0 {
		techSentence = capitalize(strings.Join(tech, ", ")) + "."
	}
	return joinSentences(head, techSentence, datesSentence(b)), nil
}

type wavHeader struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

func (h wavHeader) duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.DataSize) / float64(h.ByteRate) * float64(time.Second))
}

// readWAVHeader walks the RIFF chunks up to "data", reading "fmt " on the way.
func readWAVHeader(path string) (wavHeader, error) {
	var h wavHeader
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return h, errNotWAV
	}
	if !bytes.Equal(riff[0:4], []byte("RIFF")) || !bytes.Equal(riff[8:12], []byte("WAVE")) {
		return h, errNotWAV
	}

	var sawFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return h, fmt.Errorf("wav: missing data chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return h, fmt.Errorf("wav: fmt chunk too short (%d bytes)", size)
			}
			fmtChunk := make([]byte, size)
			if _, err := io.ReadFull(f, fmtChunk); err != nil {
				return h, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			h.AudioFormat = binary.LittleEndian.Uint16(fmtChunk[0:2])
			h.Channels = binary.LittleEndian.Uint16(fmtChunk[2:4])
			h.SampleRate = binary.LittleEndian.Uint32(fmtChunk[4:8])
			h.ByteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			h.BlockAlign = binary.LittleEndian.Uint16(fmtChunk[12:14])
			h.BitsPerSample = binary.LittleEndian.Uint16(fmtChunk[14:16])
			sawFmt = true
			if size%2 == 1 {
				_, _ = f.Seek(1, io.SeekCurrent)
			}
		case "data":
			if !sawFmt {
				return h, errors.New("wav: data chunk before fmt chunk")
			}
			h.DataSize = size
			return h, nil
		default:
			skip := int64(size) + int64(size%2)
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return h, fmt.Errorf("wav: skip %q chunk: %w", id, err)
			}
		}
	}
}

// containerName renders an extension as a format name: ".mp3" -> "MP3".
func containerName(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToUpper(ext)
}
