//go:build aasist

package engine

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once. ortInitErr is kept so later constructors surface the same failure.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initORT() error {
	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortInitErr = fmt.Errorf("resolve ORT lib: %w", err)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// AASISTEngine runs an exported AASIST graph via ONNX Runtime. The graph
// takes one [1, nb_samp] float32 waveform and emits [1, 2] class scores.
//
// Tensors are allocated once and reused, so Score is serialized.
type AASISTEngine struct {
	mu sync.Mutex

	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, nb_samp]
	outputTensor *ort.Tensor[float32] // [1, 2]

	frameLength   int
	bonafideIndex int
}

// NewAASISTEngine initializes ONNX Runtime, loads the model file and
// allocates the input/output tensors described by mc.
func NewAASISTEngine(modelPath string, mc config.ModelConfig) (*AASISTEngine, error) {
	if err := mc.Validate(); err != nil {
		return nil, fmt.Errorf("aasist: %w", err)
	}
	if err := initORT(); err != nil {
		return nil, fmt.Errorf("aasist: %w", err)
	}

	frameLength := mc.FrameLength()
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(frameLength)))
	if err != nil {
		return nil, fmt.Errorf("aasist: create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("aasist: create output tensor: %w", err)
	}

	var opts *ort.SessionOptions
	if mc.ONNX.IntraOpThreads > 0 {
		opts, err = ort.NewSessionOptions()
		if err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("aasist: create session options: %w", err)
		}
		defer opts.Destroy()
		if err := opts.SetIntraOpNumThreads(mc.ONNX.IntraOpThreads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("aasist: set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{mc.ONNX.InputName},
		[]string{mc.ONNX.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("aasist: create session: %w", err)
	}

	return &AASISTEngine{
		session:       session,
		inputTensor:   inputTensor,
		outputTensor:  outputTensor,
		frameLength:   frameLength,
		bonafideIndex: mc.BonafideIndex(),
	}, nil
}

// Score copies frame into the input tensor and runs one forward pass.
func (e *AASISTEngine) Score(frame []float32) (Result, error) {
	if len(frame) != e.frameLength {
		return Result{}, fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, len(frame), e.frameLength)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return Result{}, fmt.Errorf("aasist: engine closed")
	}
	copy(e.inputTensor.GetData(), frame)
	if err := e.session.Run(); err != nil {
		return Result{}, fmt.Errorf("aasist: inference: %w", err)
	}

	out := e.outputTensor.GetData()
	return Result{
		Bonafide: out[e.bonafideIndex],
		Spoof:    out[1-e.bonafideIndex],
	}, nil
}

func (e *AASISTEngine) Name() string { return "aasist" }

// FrameLength returns the number of samples the graph expects.
func (e *AASISTEngine) FrameLength() int { return e.frameLength }

// Close releases ONNX Runtime resources. Safe to call multiple times.
func (e *AASISTEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return nil
}
