// Package pipeline turns uploaded audio into spoof/bonafide predictions.
//
// Each upload runs receive, write_temp, normalize, frame and score in order
// and stops at the first failure. All temp files an upload creates belong to
// one tempfile.Scope that is removed before Run returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/audio"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/engine"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/metrics"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/tempfile"
)

// Modes label uploads in metrics and logs.
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Normalizer decodes a file into a mono clip at the model's sample rate.
type Normalizer interface {
	Normalize(ctx context.Context, scope *tempfile.Scope, path, filename string) (audio.Clip, error)
}

// Options are fixed for the lifetime of a Pipeline.
type Options struct {
	FrameLength int
	Threshold   float64
	TempDir     string
	// MaxInFlight bounds concurrently processed uploads. Zero means 1.
	MaxInFlight int64
}

// Pipeline scores uploads with a shared engine. It is safe for concurrent use.
type Pipeline struct {
	normalizer Normalizer
	engine     engine.Engine
	opts       Options
	sem        *semaphore.Weighted
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New builds a Pipeline. m and logger may be nil.
func New(normalizer Normalizer, eng engine.Engine, opts Options, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if normalizer == nil {
		return nil, errors.New("pipeline: normalizer is required")
	}
	if eng == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	if opts.FrameLength <= 0 {
		return nil, ErrInvalidFrameLength
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		normalizer: normalizer,
		engine:     eng,
		opts:       opts,
		sem:        semaphore.NewWeighted(opts.MaxInFlight),
		metrics:    m,
		log:        logger.With("component", "pipeline"),
	}, nil
}

func (p *Pipeline) Threshold() float64 { return p.opts.Threshold }
func (p *Pipeline) FrameLength() int    { return p.opts.FrameLength }
func (p *Pipeline) EngineName() string  { return p.engine.Name() }

// Run scores a single upload.
func (p *Pipeline) Run(ctx context.Context, u Upload) Outcome {
	return p.run(ctx, u, ModeSingle)
}

// RunBatch scores uploads one after another and returns one Outcome per
// upload in input order. A failed upload does not stop the rest.
func (p *Pipeline) RunBatch(ctx context.Context, uploads []Upload) []Outcome {
	p.metrics.ObserveBatch(len(uploads))
	outcomes := make([]Outcome, len(uploads))
	for i, u := range uploads {
		outcomes[i] = p.run(ctx, u, ModeBatch)
	}
	return outcomes
}

func (p *Pipeline) run(ctx context.Context, u Upload, mode string) Outcome {
	log := p.log.With("filename", u.Filename, "mode", mode)
	out := Outcome{Filename: u.Filename}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		out.Err = stageErr(StageQueue, err)
		p.record(ctx, log, mode, out)
		return out
	}
	defer p.sem.Release(1)
	p.metrics.InFlight(1)
	defer p.metrics.InFlight(-1)

	scope := tempfile.NewScope(p.opts.TempDir, "aasist")
	defer func() {
		if err := scope.Cleanup(); err != nil {
			p.metrics.CleanupFailed()
			log.Warn("temp cleanup failed", "error", err)
		}
	}()

	pred, err := p.score(ctx, log, scope, u)
	if err != nil {
		out.Err = err
	} else {
		out.Prediction = &pred
	}
	p.record(ctx, log, mode, out)
	return out
}

func (p *Pipeline) score(ctx context.Context, log *slog.Logger, scope *tempfile.Scope, u Upload) (Prediction, error) {
	start := time.Now()
	if u.Open == nil {
		return Prediction{}, stageErr(StageReceive, errors.New("upload has no content"))
	}
	rc, err := u.Open()
	if err != nil {
		return Prediction{}, stageErr(StageReceive, err)
	}
	path, err := scope.WriteFrom(rc, filepath.Ext(u.Filename))
	rc.Close()
	if err != nil {
		return Prediction{}, stageErr(StageWriteTemp, err)
	}
	p.observe(StageWriteTemp, &start)

	clip, err := p.normalizer.Normalize(ctx, scope, path, u.Filename)
	if err != nil {
		return Prediction{}, stageErr(StageNormalize, err)
	}
	p.observe(StageNormalize, &start)

	frame, err := Fit(clip.Samples, p.opts.FrameLength)
	if err != nil {
		return Prediction{}, stageErr(StageFrame, err)
	}
	p.observe(StageFrame, &start)
	log.Debug("clip framed",
		"samples", len(clip.Samples),
		"duration", clip.Duration(),
		"frame_length", len(frame),
	)

	res, err := p.infer(frame)
	if err != nil {
		return Prediction{}, stageErr(StageScore, err)
	}
	p.observe(StageScore, &start)

	score := float64(res.Bonafide)
	p.metrics.ObserveScore(score)
	return Prediction{
		Label:     Decide(score, p.opts.Threshold),
		Score:     score,
		Threshold: p.opts.Threshold,
	}, nil
}

// infer turns an engine panic into an error so one bad upload cannot take
// down the process.
func (p *Pipeline) infer(frame []float32) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return p.engine.Score(frame)
}

func (p *Pipeline) observe(stage Stage, start *time.Time) {
	now := time.Now()
	p.metrics.ObserveStage(string(stage), now.Sub(*start))
	*start = now
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, mode string, out Outcome) {
	if out.Err != nil {
		outcome := "server_error"
		level := slog.LevelError
		if IsClientError(out.Err) {
			outcome = "client_error"
			level = slog.LevelWarn
		}
		p.metrics.ObserveUpload(mode, outcome)
		log.Log(ctx, level, "upload failed", "error", out.Err)
		return
	}
	p.metrics.ObserveUpload(mode, string(out.Prediction.Label))
	log.Info("upload scored",
		"label", out.Prediction.Label,
		"score", out.Prediction.Score,
		"threshold", out.Prediction.Threshold,
	)
}
