package mcts

import (
	"context"
	"errors"
	"testing"
)

// fixedEvaluator answers every non-terminal leaf with value 0 and a two-move
// expansion identical to rootExpansion, and every terminal leaf with -1
// (after "a") or +1 (after "b") and no expansion, so a BatchDriver running
// twoMoveState games converges deterministically.
type fixedEvaluator struct {
	calls    int
	maxBatch int
}

func (e *fixedEvaluator) Evaluate(ctx context.Context, states []twoMoveState) ([]EvalResult[twoMoveState, string], error) {
	e.calls++
	if len(states) > e.maxBatch {
		e.maxBatch = len(states)
	}

	results := make([]EvalResult[twoMoveState, string], len(states))
	for i, st := range states {
		if st.terminal {
			var v float64
			if st.move == "a" {
				v = -1
			} else {
				v = 1
			}
			results[i] = EvalResult[twoMoveState, string]{Value: v}
			continue
		}
		results[i] = EvalResult[twoMoveState, string]{
			Value:      0,
			Expansions: rootExpansion(),
		}
	}
	return results, nil
}

func TestBatchDriverRunsGamesToCompletion(t *testing.T) {
	const nGames = 4
	driver := NewBatchDriver[twoMoveState, string](
		nGames,
		4, // searchesPerMove
		0, 0,
		func(i int) *Search[twoMoveState, string] {
			return NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", int64(i))
		},
	)

	eval := &fixedEvaluator{}

	var results []GameResult[twoMoveState, string]
	err := driver.Run(context.Background(), eval, func(r GameResult[twoMoveState, string]) {
		results = append(results, r)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != nGames {
		t.Fatalf("expected %d results, got %d", nGames, len(results))
	}
	for _, r := range results {
		if len(r.History) == 0 {
			t.Fatalf("expected non-empty history for game %d", r.Index)
		}
	}
	if eval.calls == 0 {
		t.Fatalf("expected the evaluator to be invoked at least once")
	}
	if eval.maxBatch <= 1 {
		t.Fatalf("expected at least one cycle to batch more than one leaf, got max batch %d", eval.maxBatch)
	}
}

// dirichletProbeEvaluator wraps fixedEvaluator and, on its second call (the
// first call after the root's own fresh expansion), inspects the root's
// child priors before answering and records whether they still match the
// evaluator's raw 0.5/0.5 output. It then aborts the run with errProbeDone,
// since the test only needs to observe the state at that one point.
type dirichletProbeEvaluator struct {
	fixedEvaluator
	game        *Search[twoMoveState, string]
	stillRaw    bool
	probeCalled bool
}

var errProbeDone = errors.New("probe done")

func (e *dirichletProbeEvaluator) Evaluate(ctx context.Context, states []twoMoveState) ([]EvalResult[twoMoveState, string], error) {
	// The embedded fixedEvaluator counts its own calls, so one call so far
	// means this is the second.
	if e.fixedEvaluator.calls == 1 {
		e.probeCalled = true
		a := e.game.root.firstChild
		b := a.nextSibling
		e.stillRaw = a.prior == 0.5 && b.prior == 0.5
		return nil, errProbeDone
	}
	return e.fixedEvaluator.Evaluate(ctx, states)
}

// TestBatchDriverAppliesDirichletNoiseOnFirstTurn checks that a freshly
// expanded root's child priors are already perturbed away from the
// evaluator's raw output by the time the driver evaluates the first leaf
// selected below that root — i.e. that noise mixing does not require a
// carried-over root from a prior turn to fire.
func TestBatchDriverAppliesDirichletNoiseOnFirstTurn(t *testing.T) {
	var game *Search[twoMoveState, string]
	eval := &dirichletProbeEvaluator{}
	driver := NewBatchDriver[twoMoveState, string](
		1,
		1000, // large enough that the driver never commits a move on its own
		1.0, 1.0,
		func(i int) *Search[twoMoveState, string] {
			game = NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", int64(i))
			eval.game = game
			return game
		},
	)

	err := driver.Run(context.Background(), eval, nil)
	if !errors.Is(err, errProbeDone) {
		t.Fatalf("expected Run to fail with errProbeDone, got %v (%T)", err, err)
	}

	if !eval.probeCalled {
		t.Fatalf("expected the probe evaluator call to be reached")
	}
	if eval.stillRaw {
		t.Fatalf("expected Dirichlet noise to have perturbed the root's priors away from 0.5/0.5 by the second cycle")
	}
}

// shapeMismatchEvaluator always returns one fewer result than requested, to
// exercise the batch-shape contract check.
type shapeMismatchEvaluator struct{}

func (shapeMismatchEvaluator) Evaluate(ctx context.Context, states []twoMoveState) ([]EvalResult[twoMoveState, string], error) {
	if len(states) == 0 {
		return nil, nil
	}
	return make([]EvalResult[twoMoveState, string], len(states)-1), nil
}

func TestBatchDriverRejectsShapeMismatch(t *testing.T) {
	driver := NewBatchDriver[twoMoveState, string](
		2,
		4,
		0, 0,
		func(i int) *Search[twoMoveState, string] {
			return NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", int64(i))
		},
	)

	err := driver.Run(context.Background(), shapeMismatchEvaluator{}, nil)
	if err == nil {
		t.Fatalf("expected an error from a shape-mismatched evaluator")
	}
	var evalErr *EvaluatorFailureError
	if !isEvaluatorFailure(err, &evalErr) {
		t.Fatalf("expected an EvaluatorFailureError, got %v (%T)", err, err)
	}
}

func isEvaluatorFailure(err error, target **EvaluatorFailureError) bool {
	e, ok := err.(*EvaluatorFailureError)
	if ok {
		*target = e
	}
	return ok
}
