package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an audio container. Formats without a native decoder are
// still named (by extension) so logs and metrics can tell them apart.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatVorbis  Format = "ogg"
	FormatOpus    Format = "opus"
	FormatAIFF    Format = "aiff"
	FormatAIFC    Format = "aifc"
	FormatFLAC    Format = "flac"
)

// sniffLen is how many leading bytes DetectFormat looks at.
const sniffLen = 64

// DetectFormat identifies a container from its leading bytes, falling back to
// the filename extension when the header is not recognized.
func DetectFormat(header []byte, filename string) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) && bytes.Equal(header[8:12], []byte("AIFF")):
		return FormatAIFF
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) && bytes.Equal(header[8:12], []byte("AIFC")):
		return FormatAIFC
	case len(header) >= 4 && bytes.Equal(header[:4], []byte("fLaC")):
		return FormatFLAC
	case len(header) >= 4 && bytes.Equal(header[:4], []byte("OggS")):
		if bytes.Contains(header, []byte("OpusHead")) {
			return FormatOpus
		}
		return FormatVorbis
	case len(header) >= 3 && bytes.Equal(header[:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return formatFromName(filename)
}

// DetectFileFormat reads the header of the file at path and detects its format.
func DetectFileFormat(path, filename string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FormatUnknown, fmt.Errorf("audio: read header: %w", err)
	}
	return DetectFormat(header[:n], filename), nil
}

func formatFromName(filename string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "":
		return FormatUnknown
	case "wav", "wave":
		return FormatWAV
	case "mp3":
		return FormatMP3
	case "ogg", "oga":
		return FormatVorbis
	case "aif", "aiff":
		return FormatAIFF
	case "aifc":
		return FormatAIFC
	default:
		return Format(ext)
	}
}
