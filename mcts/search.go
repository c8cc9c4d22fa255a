package mcts

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Search owns one game tree: the root, its node pool/freelist, the
// per-game move history, and a PRNG used for Dirichlet noise and
// proportional move sampling. A Search is not safe for concurrent use.
type Search[S any, M any] struct {
	cInit float64
	cBase float64

	root *node[S, M]
	pool nodePool[S, M]

	history []HistoryEntry[S, M]

	rng              *mrand.Rand
	searchesThisTurn int

	observer Observer[S, M]
}

// New constructs a Search with an unexpanded root at initialState, seeded
// from platform entropy. phonyMove is stored as the root's inbound move; it
// is never inspected, only present so the root has a well-formed Move value
// to report through the commit path.
func New[S any, M any](cInit, cBase float64, initialState S, phonyMove M) *Search[S, M] {
	return NewSeeded[S, M](cInit, cBase, initialState, phonyMove, entropySeed())
}

// NewSeeded constructs a Search exactly like New, but with a deterministic
// PRNG seed. Intended for tests and reproducible self-play.
func NewSeeded[S any, M any](cInit, cBase float64, initialState S, phonyMove M, seed int64) *Search[S, M] {
	s := &Search[S, M]{
		cInit: cInit,
		cBase: cBase,
		rng:   mrand.New(mrand.NewSource(seed)),
	}
	s.Reset(initialState, phonyMove)
	return s
}

func entropySeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// SetObserver installs an (optional) observer for instrumentation. Pass nil
// to detach. Must not be called re-entrantly from inside an observer
// callback.
func (s *Search[S, M]) SetObserver(o Observer[S, M]) {
	s.observer = o
}

// GameState returns the position at the current root.
func (s *Search[S, M]) GameState() S {
	if s.root == nil {
		var zero S
		return zero
	}
	return s.root.state
}

// Expanded reports whether the root has been expanded.
func (s *Search[S, M]) Expanded() bool {
	return s.root != nil && s.root.expanded()
}

// Complete reports whether the root is terminal. Precondition: expanded.
func (s *Search[S, M]) Complete() bool {
	return s.root != nil && s.root.expanded() && s.root.terminal()
}

// Collected reports whether the root has been dropped by CollectResult.
func (s *Search[S, M]) Collected() bool {
	return s.root == nil
}

// Turns returns the number of committed moves plus one. Precondition: not
// collected.
func (s *Search[S, M]) Turns() int {
	return len(s.history) + 1
}

// SearchesThisTurn returns the number of select_leaf/expand_leaf events
// (including terminal revisits) since the last committed move.
func (s *Search[S, M]) SearchesThisTurn() int {
	return s.searchesThisTurn
}

// AddDirichletNoise mixes Dirichlet(alpha) noise into the root's children's
// priors: prior' = fraction*noise + (1-fraction)*prior. Precondition:
// expanded and not complete.
func (s *Search[S, M]) AddDirichletNoise(alpha, fraction float64) error {
	if !s.Expanded() || s.Complete() {
		return contractViolation("AddDirichletNoise", "root must be expanded and not complete")
	}

	gamma := distuv.Gamma{Alpha: alpha, Beta: 1, Src: s.rng}

	noise := make([]float64, 0, 4)
	sum := 0.0
	for c := s.root.firstChild; c != nil; c = c.nextSibling {
		v := gamma.Rand()
		noise = append(noise, v)
		sum += v
	}
	if sum == 0 {
		return nil
	}

	i := 0
	for c := s.root.firstChild; c != nil; c = c.nextSibling {
		c.prior = fraction*(noise[i]/sum) + (1-fraction)*c.prior
		i++
	}
	return nil
}

// backprop adds v to n's total action-value and a visit to n, then walks to
// n.parent with the sign of v flipped, repeating until it walks off the
// root. It is the single engine for both fresh-expansion backprop (called
// with n == the leaf itself) and terminal-revisit backprop (called with
// n == terminal.parent).
func (s *Search[S, M]) backprop(n *node[S, M], v float64) {
	for n != nil {
		n.visits++
		n.totalAV += v
		n = n.parent
		v = -v
	}
}

// SelectLeaf descends from the root via PUCT. If it lands on an unexpanded
// node, that node is returned as a Leaf. If it lands on a terminal node
// instead, the terminal's value is backpropagated again and an absent Leaf
// is returned.
func (s *Search[S, M]) SelectLeaf() Leaf[S, M] {
	n := s.root

	for n.expanded() {
		if n.terminal() {
			n.visits++
			v := -n.totalAV
			s.backprop(n.parent, v)
			s.searchesThisTurn++
			if s.observer != nil {
				s.observer.OnTerminalRevisited(n.state, v)
			}
			return Leaf[S, M]{}
		}

		exploration := math.Log((1+float64(n.visits)+s.cBase)/s.cBase) + s.cInit
		sqrtN := math.Sqrt(float64(n.visits))

		var best *node[S, M]
		bestScore := 0.0

		for c := n.firstChild; c != nil; c = c.nextSibling {
			q := 0.0
			if c.visits > 0 {
				q = c.totalAV / float64(c.visits)
			}
			u := exploration * c.prior * sqrtN / (1 + float64(c.visits))
			score := q + u

			if best == nil || score > bestScore {
				best = c
				bestScore = score
			}
		}

		n = best
	}

	if s.observer != nil {
		s.observer.OnLeafSelected(n.state)
	}
	return Leaf[S, M]{n: n}
}

// ExpandLeaf installs leaf's children from expansion (in order), sets its
// visit count to 1 and total action-value to av, then backpropagates av to
// every ancestor with alternating sign. Passing an empty expansion produces
// a terminal leaf whose stored total_av is the terminal value.
//
// Precondition: leaf is present and unexpanded.
func (s *Search[S, M]) ExpandLeaf(leaf Leaf[S, M], av float64, expansion []ExpansionEntry[S, M]) error {
	if !leaf.Present() {
		return contractViolation("ExpandLeaf", "leaf is absent")
	}
	n := leaf.n
	if n.expanded() {
		return contractViolation("ExpandLeaf", "leaf is already expanded")
	}

	if len(expansion) == 0 {
		n.firstChild = nil
	} else {
		var prevChild *node[S, M]
		for _, e := range expansion {
			child := s.pool.alloc()
			child.move = e.Move
			child.state = e.State
			child.prior = e.Prior
			child.parent = n
			child.firstChild = nil
			child.visits = 0
			child.totalAV = 0

			if prevChild == nil {
				n.firstChild = child
			} else {
				prevChild.nextSibling = child
			}
			prevChild = child
		}
		prevChild.nextSibling = nil
	}

	s.backprop(n, av)
	s.searchesThisTurn++

	if s.observer != nil {
		s.observer.OnLeafExpanded(n.state, av, len(expansion))
	}
	return nil
}

// MoveGreedy commits the root child with the strictly largest visit count
// (ties go to the earliest sibling). Precondition: expanded and not
// complete.
func (s *Search[S, M]) MoveGreedy() (M, error) {
	var zero M
	if !s.Expanded() || s.Complete() {
		return zero, contractViolation("MoveGreedy", "root must be expanded and not complete")
	}

	best := s.root.firstChild
	for c := best.nextSibling; c != nil; c = c.nextSibling {
		if c.visits > best.visits {
			best = c
		}
	}

	return s.playMove(best), nil
}

// MoveProportional commits a root child sampled with probability
// proportional to its visit count. When root.n_visits == 1 (no simulation
// has run past the root's own expansion visit), it instead samples
// uniformly among children via reservoir sampling.
//
// Precondition: expanded and not complete.
func (s *Search[S, M]) MoveProportional() (M, error) {
	var zero M
	if !s.Expanded() || s.Complete() {
		return zero, contractViolation("MoveProportional", "root must be expanded and not complete")
	}

	if s.root.visits == 1 {
		nChildren := 1
		chosen := s.root.firstChild
		for c := chosen.nextSibling; c != nil; c = c.nextSibling {
			if s.rng.Intn(nChildren+1) == 0 {
				chosen = c
			}
			nChildren++
		}
		return s.playMove(chosen), nil
	}

	denom := s.root.visits - 1
	selector := s.rng.Intn(denom)

	for c := s.root.firstChild; ; c = c.nextSibling {
		if selector < c.visits {
			return s.playMove(c), nil
		}
		selector -= c.visits
	}
}

// CollectResult finalizes the search: score is the root's total action
// value if the root is terminal, else 0; the sign is flipped if the final
// history length is even, normalizing to the perspective of the player to
// move at the initial position. The root (and its entire remaining
// subtree) is freed and the search becomes Collected.
//
// Precondition: not already collected.
func (s *Search[S, M]) CollectResult() (float64, []HistoryEntry[S, M], error) {
	if s.Collected() {
		return 0, nil, contractViolation("CollectResult", "search is already collected")
	}

	score := 0.0
	if s.root.terminal() {
		score = s.root.totalAV
	}

	s.playMove(nil)

	if len(s.history)%2 == 0 {
		score = -score
	}

	hist := s.history
	s.history = nil
	return score, hist, nil
}

// Reset drops the current root (and any history) and reinstalls a fresh,
// unexpanded root at initialState.
func (s *Search[S, M]) Reset(initialState S, phonyMove M) {
	s.pool.freeSubtree(s.root)

	root := s.pool.alloc()
	root.move = phonyMove
	root.state = initialState
	root.parent = nil
	root.firstChild = nil
	root.nextSibling = nil
	root.visits = 0
	root.totalAV = 0

	s.root = root
	s.history = nil
	s.searchesThisTurn = 0
}

// playMove is the shared "commit" bookkeeping behind MoveGreedy,
// MoveProportional, and CollectResult: it records a HistoryEntry for the
// current root, frees every child subtree except newRoot, detaches and
// adopts newRoot (or leaves the search rootless if newRoot is nil), and
// resets the per-turn search counter.
func (s *Search[S, M]) playMove(newRoot *node[S, M]) M {
	denom := s.root.visits - 1

	searchProbs := make([]MoveProb[M], 0, 4)
	newRootIdx := -1

	for c := s.root.firstChild; c != nil; {
		next := c.nextSibling

		prob := 0.0
		if denom > 0 {
			prob = float64(c.visits) / float64(denom)
		}
		searchProbs = append(searchProbs, MoveProb[M]{Move: c.move, Probability: prob})

		if c == newRoot {
			newRootIdx = len(searchProbs) - 1
		} else {
			s.pool.freeSubtree(c)
		}

		c = next
	}

	s.history = append(s.history, HistoryEntry[S, M]{
		State:               s.root.state,
		SearchProbabilities: searchProbs,
	})

	var committedMove M
	parentVisits := s.root.visits

	if newRoot != nil {
		newRoot.parent = nil
		newRoot.nextSibling = nil
		committedMove = searchProbs[newRootIdx].Move
	}

	s.pool.free(s.root)
	s.root = newRoot
	s.searchesThisTurn = 0

	if newRoot != nil && s.observer != nil {
		s.observer.OnMoveCommitted(committedMove, newRoot.visits, parentVisits)
	}

	return committedMove
}
