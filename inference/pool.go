package inference

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
)

// OnnxPool fans Evaluate calls out across multiple OnnxEvaluator sessions,
// round-robin. Each session owns its own ORT session and can run
// concurrently on the GPU, so a pool lets several BatchDriver instances
// (each driving its own batch of self-play games) share inference
// throughput without serializing on a single session.
type OnnxPool struct {
	evaluators []*OnnxEvaluator
	rr         atomic.Uint64
}

// NewOnnxPool loads sessions independent copies of the model at modelPath.
func NewOnnxPool(modelPath string, rows, cols, sessions int) (*OnnxPool, error) {
	if sessions <= 0 {
		sessions = 1
	}

	evaluators := make([]*OnnxEvaluator, 0, sessions)
	for i := 0; i < sessions; i++ {
		e, err := NewOnnxEvaluator(modelPath, rows, cols)
		if err != nil {
			for _, created := range evaluators {
				_ = created.Close()
			}
			return nil, fmt.Errorf("create onnx evaluator %d/%d: %w", i+1, sessions, err)
		}
		evaluators = append(evaluators, e)
	}

	return &OnnxPool{evaluators: evaluators}, nil
}

// Close releases every session in the pool.
func (p *OnnxPool) Close() error {
	var firstErr error
	for _, e := range p.evaluators {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Evaluate implements mcts.Evaluator by delegating to the next session in
// round-robin order. Each call is still a single synchronous batch against
// whichever session it lands on.
func (p *OnnxPool) Evaluate(ctx context.Context, states []connectk.State) ([]mcts.EvalResult[connectk.State, int], error) {
	if len(p.evaluators) == 0 {
		return nil, fmt.Errorf("onnx pool has no sessions")
	}
	idx := int(p.rr.Add(1)-1) % len(p.evaluators)
	return p.evaluators[idx].Evaluate(ctx, states)
}
