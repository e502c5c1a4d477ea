package engine

import (
	"context"
	"errors"
)

// ErrModelNotLoaded is returned by inference attempts while the engine is in
// its degraded, model-absent state.
var ErrModelNotLoaded = errors.New("model is not loaded")

// Engine produces a raw score vector from a preprocessed input tensor. The
// forward pass is pure; implementations must tolerate concurrent Infer calls
// against the same loaded model.
type Engine interface {
	Infer(ctx context.Context, input []float32) ([]float32, error)
	Ready() bool
}

// Unavailable returns an Engine representing a failed model load. The process
// keeps serving, the health surface reports degraded, and every inference
// fails cleanly.
func Unavailable() Engine {
	return unavailableEngine{}
}

type unavailableEngine struct{}

func (unavailableEngine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	return nil, ErrModelNotLoaded
}

func (unavailableEngine) Ready() bool {
	return false
}
