package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/audio"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/audio/audiotest"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/engine"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/metrics"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/tempfile"
)

const testFrameLength = 64600

// fakeEngine returns a fixed score and records every frame it sees.
type fakeEngine struct {
	mu     sync.Mutex
	score  float32
	err    error
	panics bool
	frames [][]float32
}

func (f *fakeEngine) Score(frame []float32) (engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.frames = append(f.frames, frame)
	if f.err != nil {
		return engine.Result{}, f.err
	}
	return engine.Result{Bonafide: f.score, Spoof: 1 - f.score}, nil
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { return nil }

func newTestPipeline(t *testing.T, eng engine.Engine) (*Pipeline, string) {
	t.Helper()
	tempDir := t.TempDir()
	p, err := New(
		audio.NewNormalizer(nil, nil, audio.TargetSampleRate, nil),
		eng,
		Options{FrameLength: testFrameLength, Threshold: 0.5, TempDir: tempDir, MaxInFlight: 2},
		metrics.New(),
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	return p, tempDir
}

func wavUpload(t *testing.T, name string, samples []int) Upload {
	t.Helper()
	data, err := audiotest.WAV16(audio.TargetSampleRate, 1, samples)
	if err != nil {
		t.Fatal(err)
	}
	return BytesUpload(name, data)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("temp files leaked: %v", names)
	}
}

func TestRunSilentClipScoredBonafide(t *testing.T) {
	eng := &fakeEngine{score: 0.7}
	p, tempDir := newTestPipeline(t, eng)

	out := p.Run(context.Background(), wavUpload(t, "silence.wav", audiotest.Silence(16000)))
	if out.Err != nil {
		t.Fatalf("Run: %v", out.Err)
	}
	if out.Filename != "silence.wav" {
		t.Fatalf("Filename = %q", out.Filename)
	}
	pred := out.Prediction
	if pred.Label != Bonafide || !pred.IsBonafide() {
		t.Fatalf("Label = %q, want bonafide", pred.Label)
	}
	if float32(pred.Score) != 0.7 || pred.Threshold != 0.5 {
		t.Fatalf("prediction = %+v", pred)
	}
	if len(eng.frames) != 1 || len(eng.frames[0]) != testFrameLength {
		t.Fatalf("engine saw %d frames", len(eng.frames))
	}
	for i := 0; i < 16000; i++ {
		if eng.frames[0][i] != 0 {
			t.Fatalf("frame[%d] = %v, want 0", i, eng.frames[0][i])
		}
	}
	assertNoTempFiles(t, tempDir)
}

func TestRunFramePrefixMatchesDecodedAudio(t *testing.T) {
	eng := &fakeEngine{score: 0.1}
	p, _ := newTestPipeline(t, eng)

	samples := audiotest.Ramp(16000, 0)
	out := p.Run(context.Background(), wavUpload(t, "ramp.wav", samples))
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Prediction.Label != Spoof {
		t.Fatalf("Label = %q, want spoof", out.Prediction.Label)
	}
	frame := eng.frames[0]
	for i, v := range samples {
		if want := float32(v) / 32768; frame[i] != want {
			t.Fatalf("frame[%d] = %v, want %v", i, frame[i], want)
		}
	}
	if frame[16000] != frame[0] {
		t.Fatal("frame is not tiled from the start of the clip")
	}
}

func TestRunScoreEqualToThresholdIsSpoof(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEngine{score: 0.5})
	out := p.Run(context.Background(), wavUpload(t, "a.wav", audiotest.Silence(100)))
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Prediction.Label != Spoof {
		t.Fatalf("Label = %q, want spoof", out.Prediction.Label)
	}
}

func TestRunDecodeFailureCleansUp(t *testing.T) {
	eng := &fakeEngine{score: 0.9}
	p, tempDir := newTestPipeline(t, eng)

	out := p.Run(context.Background(), BytesUpload("clip.flac", []byte("fLaC\x00\x00\x00\x22garbage")))
	if out.Err == nil {
		t.Fatal("expected error")
	}
	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageNormalize {
		t.Fatalf("err = %v, want normalize stage error", out.Err)
	}
	var de *audio.DecodeError
	if !errors.As(out.Err, &de) || !errors.Is(out.Err, audio.ErrTranscoderUnavailable) {
		t.Fatalf("err = %v, want DecodeError wrapping ErrTranscoderUnavailable", out.Err)
	}
	if !IsClientError(out.Err) {
		t.Fatal("decode failure should be a client error")
	}
	if out.Prediction != nil {
		t.Fatal("prediction set on failure")
	}
	if len(eng.frames) != 0 {
		t.Fatal("engine called after decode failure")
	}
	assertNoTempFiles(t, tempDir)
}

// emptyNormalizer decodes every upload into a clip with no samples.
type emptyNormalizer struct{}

func (emptyNormalizer) Normalize(context.Context, *tempfile.Scope, string, string) (audio.Clip, error) {
	return audio.Clip{SampleRate: audio.TargetSampleRate}, nil
}

func TestRunEmptyClipIsFramingError(t *testing.T) {
	tempDir := t.TempDir()
	eng := &fakeEngine{}
	p, err := New(emptyNormalizer{}, eng, Options{FrameLength: testFrameLength, TempDir: tempDir}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := p.Run(context.Background(), BytesUpload("empty.wav", []byte("anything")))

	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageFrame {
		t.Fatalf("err = %v, want frame stage error", out.Err)
	}
	if !errors.Is(out.Err, ErrEmptyWaveform) {
		t.Fatalf("err = %v, want ErrEmptyWaveform", out.Err)
	}
	if !IsClientError(out.Err) {
		t.Fatal("framing failure should be a client error")
	}
	if len(eng.frames) != 0 {
		t.Fatal("engine called for empty clip")
	}
	assertNoTempFiles(t, tempDir)
}

func TestRunInferenceFailureIsServerError(t *testing.T) {
	p, tempDir := newTestPipeline(t, &fakeEngine{err: errors.New("session run failed")})
	out := p.Run(context.Background(), wavUpload(t, "a.wav", audiotest.Silence(100)))

	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageScore {
		t.Fatalf("err = %v, want score stage error", out.Err)
	}
	if IsClientError(out.Err) {
		t.Fatal("inference failure must not be a client error")
	}
	assertNoTempFiles(t, tempDir)
}

func TestRunEnginePanicBecomesError(t *testing.T) {
	p, tempDir := newTestPipeline(t, &fakeEngine{panics: true})
	out := p.Run(context.Background(), wavUpload(t, "a.wav", audiotest.Silence(100)))

	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageScore {
		t.Fatalf("err = %v, want score stage error", out.Err)
	}
	assertNoTempFiles(t, tempDir)
}

func TestRunOpenFailure(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEngine{})
	out := p.Run(context.Background(), Upload{
		Filename: "x.wav",
		Open:     func() (io.ReadCloser, error) { return nil, errors.New("gone") },
	})
	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageReceive {
		t.Fatalf("err = %v, want receive stage error", out.Err)
	}

	out = p.Run(context.Background(), Upload{Filename: "nil.wav"})
	if !errors.As(out.Err, &se) || se.Stage != StageReceive {
		t.Fatalf("nil Open: err = %v, want receive stage error", out.Err)
	}
}

func TestRunHonorsCancellationWhileQueued(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEngine{})
	if err := p.sem.Acquire(context.Background(), p.opts.MaxInFlight); err != nil {
		t.Fatal(err)
	}
	defer p.sem.Release(p.opts.MaxInFlight)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := p.Run(ctx, wavUpload(t, "a.wav", audiotest.Silence(10)))

	var se *StageError
	if !errors.As(out.Err, &se) || se.Stage != StageQueue {
		t.Fatalf("err = %v, want queue stage error", out.Err)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", out.Err)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	eng := &fakeEngine{score: 0.8}
	p, tempDir := newTestPipeline(t, eng)

	uploads := []Upload{
		wavUpload(t, "one.wav", audiotest.Sine(8000, 16000, 440, 0.5)),
		BytesUpload("two.m4a", []byte("\x00\x00\x00\x20ftypM4A ")),
		wavUpload(t, "three.wav", audiotest.Silence(32000)),
	}
	outcomes := p.RunBatch(context.Background(), uploads)

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for i, want := range []string{"one.wav", "two.m4a", "three.wav"} {
		if outcomes[i].Filename != want {
			t.Fatalf("outcome[%d].Filename = %q, want %q", i, outcomes[i].Filename, want)
		}
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("unexpected errors: %v / %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil || outcomes[1].Prediction != nil {
		t.Fatalf("outcome[1] = %+v, want error only", outcomes[1])
	}
	if !errors.Is(outcomes[1].Err, audio.ErrTranscoderUnavailable) {
		t.Fatalf("outcome[1].Err = %v", outcomes[1].Err)
	}
	if len(eng.frames) != 2 {
		t.Fatalf("engine called %d times, want 2", len(eng.frames))
	}
	assertNoTempFiles(t, tempDir)
}

func TestRunBatchEmpty(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEngine{})
	if got := p.RunBatch(context.Background(), nil); len(got) != 0 {
		t.Fatalf("RunBatch(nil) = %v", got)
	}
}

func TestFileUpload(t *testing.T) {
	data, err := audiotest.WAV16(16000, 1, audiotest.Silence(1600))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "disk.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, _ := newTestPipeline(t, &fakeEngine{score: 0.9})
	out := p.Run(context.Background(), FileUpload(path))
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Filename != "disk.wav" {
		t.Fatalf("Filename = %q", out.Filename)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("source file removed: %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	norm := audio.NewNormalizer(nil, nil, 0, nil)
	if _, err := New(nil, &fakeEngine{}, Options{FrameLength: 1}, nil, nil); err == nil {
		t.Error("expected error for nil normalizer")
	}
	if _, err := New(norm, nil, Options{FrameLength: 1}, nil, nil); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(norm, &fakeEngine{}, Options{}, nil, nil); !errors.Is(err, ErrInvalidFrameLength) {
		t.Errorf("zero frame length: err = %v", err)
	}
	p, err := New(norm, &fakeEngine{}, Options{FrameLength: 10, Threshold: 0.3}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.FrameLength() != 10 || p.Threshold() != 0.3 || p.EngineName() != "fake" {
		t.Fatalf("accessors = %d %v %q", p.FrameLength(), p.Threshold(), p.EngineName())
	}
}
