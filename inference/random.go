package inference

import (
	"context"
	"math/rand"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
)

// UniformEvaluator is a model-free mcts.Evaluator: it assigns a uniform
// prior to every legal move and a value drawn from rng. It exists so the
// self-play driver and its tests can exercise the full search/evaluate
// loop without an ONNX model file on disk.
type UniformEvaluator struct {
	rng *rand.Rand
}

// NewUniformEvaluator constructs a UniformEvaluator seeded from seed.
func NewUniformEvaluator(seed int64) *UniformEvaluator {
	return &UniformEvaluator{rng: rand.New(rand.NewSource(seed))}
}

func (e *UniformEvaluator) Evaluate(ctx context.Context, states []connectk.State) ([]mcts.EvalResult[connectk.State, int], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]mcts.EvalResult[connectk.State, int], len(states))
	for i, st := range states {
		moves := st.Moves()
		expansions := make([]mcts.ExpansionEntry[connectk.State, int], len(moves))
		for j, m := range moves {
			expansions[j] = mcts.ExpansionEntry[connectk.State, int]{
				Move:  m,
				State: st.Play(m),
				Prior: 1.0 / float64(len(moves)),
			}
		}
		results[i] = mcts.EvalResult[connectk.State, int]{
			Value:      e.rng.Float64()*2 - 1,
			Expansions: expansions,
		}
	}
	return results, nil
}
