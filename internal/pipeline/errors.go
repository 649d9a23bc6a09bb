package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a step of the per-upload flow.
type Stage string

const (
	StageQueue     Stage = "queue"
	StageReceive   Stage = "receive"
	StageWriteTemp Stage = "write_temp"
	StageNormalize Stage = "normalize"
	StageFrame     Stage = "frame"
	StageScore     Stage = "score"
)

// StageError records which stage an upload failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsClientError reports whether err was caused by the uploaded content
// rather than by the service: unreadable uploads, undecodable audio, and
// audio that cannot be framed.
func IsClientError(err error) bool {
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Stage {
	case StageReceive, StageNormalize, StageFrame:
		return true
	default:
		return false
	}
}

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
