package server

import "github.com/nupi-ai/plugin-spoof-aasist/internal/pipeline"

type errorResponse struct {
	Detail string `json:"detail"`
}

type singleResponse struct {
	Filename      string  `json:"filename"`
	ResultLabel   string  `json:"result_label"`
	BonafideScore float64 `json:"bonafide_score"`
	IsBonafide    bool    `json:"is_bonafide"`
}

func newSingleResponse(out pipeline.Outcome) singleResponse {
	return singleResponse{
		Filename:      out.Filename,
		ResultLabel:   string(out.Prediction.Label),
		BonafideScore: out.Prediction.Score,
		IsBonafide:    out.Prediction.IsBonafide(),
	}
}

// BatchEntry reports one file of a batch, over HTTP or from the predict
// command. Failed files carry an error and null label and score.
type BatchEntry struct {
	Filename    string   `json:"filename"`
	ResultLabel *string  `json:"result_label"`
	Score       *float64 `json:"score"`
	IsBonafide  bool     `json:"is_bonafide"`
	Error       *string  `json:"error"`
}

// NewBatchEntry maps a pipeline outcome to its wire form.
func NewBatchEntry(out pipeline.Outcome) BatchEntry {
	e := BatchEntry{Filename: out.Filename}
	if out.Err != nil {
		msg := out.Err.Error()
		e.Error = &msg
		return e
	}
	label := string(out.Prediction.Label)
	score := out.Prediction.Score
	e.ResultLabel = &label
	e.Score = &score
	e.IsBonafide = out.Prediction.IsBonafide()
	return e
}
