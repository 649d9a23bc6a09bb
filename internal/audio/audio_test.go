package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/audio/audiotest"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/tempfile"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustWAV(t *testing.T, rate, channels int, samples []int) []byte {
	t.Helper()
	data, err := audiotest.WAV16(rate, channels, samples)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDetectFormat(t *testing.T) {
	wavHeader := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	cases := []struct {
		name     string
		header   []byte
		filename string
		want     Format
	}{
		{"wav magic", wavHeader, "clip.bin", FormatWAV},
		{"aiff magic", []byte("FORM\x00\x00\x00\x00AIFFCOMM"), "", FormatAIFF},
		{"aifc magic", []byte("FORM\x00\x00\x00\x00AIFCCOMM"), "", FormatAIFC},
		{"flac magic", []byte("fLaC\x00\x00"), "x.wav", FormatFLAC},
		{"ogg vorbis", []byte("OggS\x00\x02\x01vorbis"), "", FormatVorbis},
		{"ogg opus", []byte("OggS\x00\x02OpusHead"), "a.ogg", FormatOpus},
		{"id3", []byte("ID3\x04\x00"), "", FormatMP3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "", FormatMP3},
		{"extension fallback", []byte("????????????"), "voice.M4A", Format("m4a")},
		{"extension wav", []byte{}, "voice.wav", FormatWAV},
		{"unknown", []byte("garbage"), "noext", FormatUnknown},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.header, tc.filename); got != tc.want {
			t.Errorf("%s: DetectFormat() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestWAVDecoderMono16k(t *testing.T) {
	in := audiotest.Ramp(1600, 32768)
	data := mustWAV(t, 16000, 1, in)

	pcm, err := WAVDecoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if pcm.SampleRate != 16000 || pcm.Channels != 1 {
		t.Fatalf("format = %d Hz / %d ch, want 16000 / 1", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Samples) != len(in) {
		t.Fatalf("len = %d, want %d", len(pcm.Samples), len(in))
	}
	for i, v := range in {
		if want := float32(v) / 32768.0; pcm.Samples[i] != want {
			t.Fatalf("sample[%d] = %v, want %v", i, pcm.Samples[i], want)
		}
	}
}

func TestWAVDecoderRejectsGarbage(t *testing.T) {
	_, err := WAVDecoder{}.Decode(bytes.NewReader([]byte("definitely not a wav file at all")))
	if err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestToMonoAveragesChannels(t *testing.T) {
	p := PCM{Samples: []float32{1, 0, 0.5, -0.5, -1, -1}, SampleRate: 16000, Channels: 2}
	mono, err := ToMono(p)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0.5, 0, -1}
	if len(mono) != len(want) {
		t.Fatalf("len = %d, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}
}

func TestToMonoNoChannels(t *testing.T) {
	if _, err := ToMono(PCM{Samples: []float32{1}}); !errors.Is(err, ErrNoChannels) {
		t.Fatalf("ToMono() = %v, want ErrNoChannels", err)
	}
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &in[0] {
		t.Fatal("expected input slice to be returned unchanged")
	}
}

func TestResampleExactLength(t *testing.T) {
	cases := []struct {
		n, src, dst int
		want        int
	}{
		{8000, 8000, 16000, 16000},
		{44100, 44100, 16000, 16000},
		{48000, 48000, 16000, 16000},
		{22050, 22050, 16000, 16000},
		{1000, 44100, 16000, 363},
	}
	for _, tc := range cases {
		out, err := Resample(make([]float32, tc.n), tc.src, tc.dst)
		if err != nil {
			t.Fatalf("%d@%d: %v", tc.n, tc.src, err)
		}
		if len(out) != tc.want {
			t.Errorf("Resample(%d samples, %d -> %d) len = %d, want %d", tc.n, tc.src, tc.dst, len(out), tc.want)
		}
	}
}

func TestResampledLength(t *testing.T) {
	if got := ResampledLength(44100, 44100, 16000); got != 16000 {
		t.Fatalf("ResampledLength(1s @ 44.1k) = %d", got)
	}
	// 1001 * 16000 / 44100 = 363.17
	if got := ResampledLength(1001, 44100, 16000); got != 363 {
		t.Fatalf("ResampledLength(1001) = %d, want 363", got)
	}
	// 1 * 16000 / 22050 = 0.73
	if got := ResampledLength(1, 22050, 16000); got != 1 {
		t.Fatalf("ResampledLength(1) = %d, want 1", got)
	}
}

func TestResampleRejectsBadRate(t *testing.T) {
	if _, err := Resample([]float32{0}, 0, 16000); err == nil {
		t.Fatal("expected error for zero source rate")
	}
}

func TestIntToFloat8Bit(t *testing.T) {
	out, err := intToFloat([]int{0, 128, 255}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != -1 || out[1] != 0 || out[2] != float32(127)/128 {
		t.Fatalf("intToFloat(8-bit) = %v", out)
	}
	if _, err := intToFloat([]int{1}, 12); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("intToFloat(12-bit) = %v, want ErrUnsupportedEncoding", err)
	}
}

type fakeTranscoder struct {
	available bool
	output    []byte
	err       error
	calls     int
}

func (f *fakeTranscoder) Available() bool { return f.available }

func (f *fakeTranscoder) Transcode(_ context.Context, _, dst string, _ int) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, f.output, 0o600)
}

func TestNormalizerNativeWAV(t *testing.T) {
	in := audiotest.Silence(16000)
	path := writeTemp(t, "upload.wav", mustWAV(t, 16000, 1, in))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	n := NewNormalizer(nil, nil, TargetSampleRate, nil)
	clip, err := n.Normalize(context.Background(), scope, path, "upload.wav")
	if err != nil {
		t.Fatal(err)
	}
	if clip.SampleRate != TargetSampleRate || len(clip.Samples) != 16000 {
		t.Fatalf("clip = %d Hz / %d samples, want 16000 / 16000", clip.SampleRate, len(clip.Samples))
	}
	if len(scope.Paths()) != 0 {
		t.Fatalf("native decode created temp files: %v", scope.Paths())
	}
}

func TestNormalizerStereoDownmix(t *testing.T) {
	// Left = 16384, right = 0 in every frame.
	frames := 400
	samples := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		samples[2*i] = 16384
	}
	path := writeTemp(t, "stereo.wav", mustWAV(t, 16000, 2, samples))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	clip, err := NewNormalizer(nil, nil, 0, nil).Normalize(context.Background(), scope, path, "stereo.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Samples) != frames {
		t.Fatalf("len = %d, want %d", len(clip.Samples), frames)
	}
	if clip.Samples[0] != 0.25 {
		t.Fatalf("sample[0] = %v, want 0.25", clip.Samples[0])
	}
}

func TestNormalizerUnsupportedWithoutTranscoder(t *testing.T) {
	path := writeTemp(t, "upload.m4a", []byte("\x00\x00\x00\x20ftypM4A isom"))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	n := NewNormalizer(nil, &fakeTranscoder{available: false}, TargetSampleRate, nil)
	_, err := n.Normalize(context.Background(), scope, path, "upload.m4a")

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Normalize() = %v, want *DecodeError", err)
	}
	if !errors.Is(err, ErrTranscoderUnavailable) {
		t.Fatalf("Normalize() = %v, want ErrTranscoderUnavailable", err)
	}
	if de.Format != Format("m4a") {
		t.Fatalf("Format = %q, want m4a", de.Format)
	}
}

func TestNormalizerUnknownFormat(t *testing.T) {
	path := writeTemp(t, "blob", []byte("garbage bytes"))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	_, err := NewNormalizer(nil, nil, 0, nil).Normalize(context.Background(), scope, path, "blob")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Normalize() = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNormalizerTranscodesIntoScope(t *testing.T) {
	path := writeTemp(t, "upload.flac", []byte("fLaC\x00\x00\x00\x22"))
	scopeDir := t.TempDir()
	scope := tempfile.NewScope(scopeDir, "req")

	tc := &fakeTranscoder{available: true, output: mustWAV(t, 16000, 1, audiotest.Silence(800))}
	clip, err := NewNormalizer(nil, tc, TargetSampleRate, nil).Normalize(context.Background(), scope, path, "upload.flac")
	if err != nil {
		t.Fatal(err)
	}
	if tc.calls != 1 {
		t.Fatalf("transcoder calls = %d, want 1", tc.calls)
	}
	if len(clip.Samples) != 800 {
		t.Fatalf("len = %d, want 800", len(clip.Samples))
	}
	if len(scope.Paths()) != 1 {
		t.Fatalf("scope paths = %v, want the transcoded file", scope.Paths())
	}

	if err := scope.Cleanup(); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(scopeDir)
	if len(entries) != 0 {
		t.Fatalf("transcoded file leaked: %d entries", len(entries))
	}
}

func TestNormalizerTranscoderFailure(t *testing.T) {
	path := writeTemp(t, "upload.webm", []byte("\x1a\x45\xdf\xa3"))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	boom := errors.New("ffmpeg exploded")
	_, err := NewNormalizer(nil, &fakeTranscoder{available: true, err: boom}, 0, nil).
		Normalize(context.Background(), scope, path, "upload.webm")
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("Normalize() = %v, want DecodeError wrapping transcoder error", err)
	}
}

func TestNormalizerFloatWAVFallsBackToTranscoder(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = 0.25
	}
	path := writeTemp(t, "float.wav", audiotest.FloatWAV32(16000, 1, in))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	tc := &fakeTranscoder{available: true, output: mustWAV(t, 16000, 1, audiotest.Silence(1600))}
	clip, err := NewNormalizer(nil, tc, TargetSampleRate, nil).Normalize(context.Background(), scope, path, "float.wav")
	if err != nil {
		t.Fatal(err)
	}
	if tc.calls != 1 {
		t.Fatalf("transcoder calls = %d, want 1", tc.calls)
	}
	if len(clip.Samples) != 1600 {
		t.Fatalf("len = %d, want 1600", len(clip.Samples))
	}
}

func TestNormalizerFloatWAVWithoutTranscoder(t *testing.T) {
	path := writeTemp(t, "float.wav", audiotest.FloatWAV32(16000, 1, make([]float32, 160)))
	scope := tempfile.NewScope(t.TempDir(), "req")
	defer scope.Cleanup()

	_, err := NewNormalizer(nil, &fakeTranscoder{}, TargetSampleRate, nil).
		Normalize(context.Background(), scope, path, "float.wav")
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("Normalize() = %v, want DecodeError wrapping ErrUnsupportedEncoding", err)
	}
	if de.Format != FormatWAV {
		t.Fatalf("Format = %q, want wav", de.Format)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	ff := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	if ff.Available() {
		t.Fatal("Available() = true for missing binary")
	}
	err := ff.Transcode(context.Background(), "in", "out", TargetSampleRate)
	if !errors.Is(err, ErrTranscoderUnavailable) {
		t.Fatalf("Transcode() = %v, want ErrTranscoderUnavailable", err)
	}
}

func TestClipDuration(t *testing.T) {
	c := Clip{Samples: make([]float32, 8000), SampleRate: 16000}
	if got := c.Duration().Milliseconds(); got != 500 {
		t.Fatalf("Duration() = %dms, want 500ms", got)
	}
}
