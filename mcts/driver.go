package mcts

import "context"

// Evaluator is the external policy/value function a BatchDriver feeds. It is
// invoked at most once per cycle with every leaf state collected from every
// still-running Search in the batch, and must return exactly one result per
// input state, in the same order.
type Evaluator[S any, M any] interface {
	Evaluate(ctx context.Context, states []S) ([]EvalResult[S, M], error)
}

// EvalResult is one evaluator response: the value estimate for the leaf
// from the mover's perspective, and the prior distribution over legal
// moves from that position.
type EvalResult[S any, M any] struct {
	Value      float64
	Expansions []ExpansionEntry[S, M]
}

// GameResult is one completed game's outcome, as handed back by
// CollectResult.
type GameResult[S any, M any] struct {
	Index   int
	Score   float64
	History []HistoryEntry[S, M]
}

// BatchDriver runs many independent Search trees in lockstep so that every
// cycle's leaves can be evaluated in a single batched call, the way
// self-play training drives a neural network evaluator efficiently on a
// GPU. A game that completes drops out of the batch; it is not replaced.
type BatchDriver[S any, M any] struct {
	searchesPerMove int
	dirichletAlpha  float64
	dirichletFrac   float64
	observer        Observer[S, M]

	games []*Search[S, M]
}

// NewBatchDriver constructs a driver that will run n concurrent games, each
// a fresh Search seeded from newGame(i) (already configured with whatever
// cInit/cBase that constructor chooses). searchesPerMove bounds how many
// select_leaf/expand_leaf cycles run before a move is committed, mirroring
// typical self-play training configuration: <= 0 commits greedily as soon
// as the root is expanded, otherwise proportionally once that many searches
// have accumulated this turn.
func NewBatchDriver[S any, M any](
	n int,
	searchesPerMove int,
	dirichletAlpha, dirichletFrac float64,
	newGame func(i int) *Search[S, M],
) *BatchDriver[S, M] {
	games := make([]*Search[S, M], n)
	for i := range games {
		games[i] = newGame(i)
	}
	return &BatchDriver[S, M]{
		searchesPerMove: searchesPerMove,
		dirichletAlpha:  dirichletAlpha,
		dirichletFrac:   dirichletFrac,
		games:           games,
	}
}

// SetObserver installs an observer that is attached to every game in the
// batch, replacing any observer set on those games individually.
func (d *BatchDriver[S, M]) SetObserver(o Observer[S, M]) {
	d.observer = o
	for _, g := range d.games {
		if g != nil {
			g.SetObserver(o)
		}
	}
}

// pendingLeaf associates a collected leaf with the game slot it came from,
// so the evaluator's batched results can be routed back to the right tree.
type pendingLeaf[S any, M any] struct {
	gameIdx int
	leaf    Leaf[S, M]
}

// Run drives every game slot to completion, calling eval once per cycle
// with the batch of leaves collected that cycle (no call is made for a
// cycle that collected no leaves), and onResult once per
// completed game as it finishes. A game slot that completes is left empty
// (nil) for the remainder of the run; Run returns once every slot is empty.
//
// Each cycle:
//  1. For every non-empty, non-complete game, run select_leaf. Terminal
//     revisits are absorbed internally and do not produce a pending leaf.
//  2. If the game has completed exactly one select_leaf/expand_leaf cycle
//     this turn (searches_this_turn == 1) and the game is not complete,
//     Dirichlet noise is mixed into the root's priors before any further
//     selection. This condition is met exactly once per turn regardless of
//     whether that first cycle was the root's own fresh expansion (turn one
//     of a game) or an ordinary descent through an already-expanded,
//     carried-over root (every later turn), so noise lands on the root
//     uniformly across turns. With searchesPerMove <= 1 the move is
//     committed in the same cycle the counter reaches 1, so no noise is
//     mixed in.
//  3. Leaves collected this cycle are evaluated in one Evaluate call.
//  4. Each leaf is expanded with its corresponding result.
//  5. Any game whose root has now collected at least searchesPerMove
//     searches this turn commits a move (greedy if searchesPerMove <= 0,
//     otherwise proportional) and, if the resulting position is complete,
//     collects its result and is removed from the batch.
func (d *BatchDriver[S, M]) Run(ctx context.Context, eval Evaluator[S, M], onResult func(GameResult[S, M])) error {
	for {
		if d.allEmpty() {
			return nil
		}

		pending := make([]pendingLeaf[S, M], 0, len(d.games))
		states := make([]S, 0, len(d.games))

		for i, g := range d.games {
			if g == nil {
				continue
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			if !g.Expanded() {
				leaf := g.SelectLeaf()
				if leaf.Present() {
					pending = append(pending, pendingLeaf[S, M]{gameIdx: i, leaf: leaf})
					states = append(states, leaf.State())
				}
				continue
			}

			if g.Complete() {
				continue
			}

			if g.SearchesThisTurn() == 1 && d.dirichletAlpha > 0 {
				_ = g.AddDirichletNoise(d.dirichletAlpha, d.dirichletFrac)
			}

			leaf := g.SelectLeaf()
			if leaf.Present() {
				pending = append(pending, pendingLeaf[S, M]{gameIdx: i, leaf: leaf})
				states = append(states, leaf.State())
			}
		}

		if len(pending) > 0 {
			results, err := eval.Evaluate(ctx, states)
			if err != nil {
				return &EvaluatorFailureError{Err: err}
			}
			if len(results) != len(pending) {
				return &EvaluatorFailureError{Err: contractViolation(
					"BatchDriver.Run",
					"evaluator returned a result count that did not match the batch",
				)}
			}

			for i, p := range pending {
				r := results[i]
				if err := d.games[p.gameIdx].ExpandLeaf(p.leaf, r.Value, r.Expansions); err != nil {
					return err
				}
			}
		}

		for i, g := range d.games {
			if g == nil || !g.Expanded() {
				continue
			}

			if !g.Complete() && d.searchesPerMove > 0 && g.SearchesThisTurn() < d.searchesPerMove {
				continue
			}

			if err := d.commitAndMaybeCollect(i, onResult); err != nil {
				return err
			}
		}
	}
}

func (d *BatchDriver[S, M]) commitAndMaybeCollect(i int, onResult func(GameResult[S, M])) error {
	g := d.games[i]

	if !g.Complete() {
		var err error
		if d.searchesPerMove > 0 {
			_, err = g.MoveProportional()
		} else {
			_, err = g.MoveGreedy()
		}
		if err != nil {
			return err
		}
	}

	if g.Complete() {
		score, history, err := g.CollectResult()
		if err != nil {
			return err
		}
		if onResult != nil {
			onResult(GameResult[S, M]{Index: i, Score: score, History: history})
		}
		d.games[i] = nil
	}

	return nil
}

func (d *BatchDriver[S, M]) allEmpty() bool {
	for _, g := range d.games {
		if g != nil {
			return false
		}
	}
	return true
}
