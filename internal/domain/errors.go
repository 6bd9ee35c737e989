package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Stage errors wrap one of these sentinels.
var (
	// ErrTransport is returned on network or HTTP failure (non-2xx, timeout, refused connection).
	ErrTransport = errors.New("transport error")

	// ErrDecode is returned when a telemetry payload does not match the record schema.
	ErrDecode = errors.New("decode error")

	// ErrEmptyInput is returned when the feature builder receives no records.
	ErrEmptyInput = errors.New("empty input")

	// ErrShape is returned when the feature matrix is not rectangular.
	ErrShape = errors.New("shape error")

	// ErrInsufficientData is returned when a model cannot be fit on the given rows.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyCluster is returned when k-means refinement leaves a cluster without members.
	ErrEmptyCluster = errors.New("empty cluster")

	// ErrRPC is returned when the node health probe fails.
	ErrRPC = errors.New("rpc error")

	// ErrPipelineAbort marks a failure of the fetch or feature stages.
	ErrPipelineAbort = errors.New("pipeline aborted")

	// ErrInvalidConfig is returned for unusable configuration values.
	ErrInvalidConfig = errors.New("invalid config")
)

// Pipeline stages that can abort a run.
const (
	StageFetch    = "fetch"
	StageFeatures = "features"
)

// PipelineAbortError wraps a fetch or feature-stage failure.
// It matches both ErrPipelineAbort and the wrapped cause.
type PipelineAbortError struct {
	Stage string
	Err   error
}

func (e *PipelineAbortError) Error() string {
	return fmt.Sprintf("pipeline aborted at %s: %v", e.Stage, e.Err)
}

func (e *PipelineAbortError) Unwrap() []error {
	return []error{ErrPipelineAbort, e.Err}
}
