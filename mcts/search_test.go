package mcts

import "testing"

// twoMoveState is the smallest nontrivial alternating two-player game used
// across this package's tests: the root has exactly two legal moves, "a"
// and "b", each leading straight to a terminal state. Move "a" is a loss
// for the mover (-1), move "b" is a win (+1).
type twoMoveState struct {
	terminal bool
	move     string
}

func rootExpansion() []ExpansionEntry[twoMoveState, string] {
	return []ExpansionEntry[twoMoveState, string]{
		{Move: "a", State: twoMoveState{terminal: true, move: "a"}, Prior: 0.5},
		{Move: "b", State: twoMoveState{terminal: true, move: "b"}, Prior: 0.5},
	}
}

func newTwoMoveSearch() *Search[twoMoveState, string] {
	return NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", 1)
}

func TestSelectLeafReturnsRootBeforeExpansion(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if !leaf.Present() {
		t.Fatalf("expected the unexpanded root to be returned as a leaf")
	}
}

func TestExpandLeafBacksPropagatesToRoot(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0.3, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}

	if !s.Expanded() {
		t.Fatalf("expected root to be expanded")
	}
	if s.root.visits != 1 {
		t.Fatalf("expected root visits == 1, got %d", s.root.visits)
	}
	if s.root.totalAV != 0.3 {
		t.Fatalf("expected root total_av == 0.3, got %v", s.root.totalAV)
	}
}

func TestTerminalLeafSoaksFurtherVisits(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}

	// Expand both children as terminal leaves so every subsequent
	// select_leaf call lands on an already-terminal node.
	for {
		leaf := s.SelectLeaf()
		if !leaf.Present() {
			break
		}
		var av float64
		if leaf.State().move == "a" {
			av = -1
		} else {
			av = 1
		}
		if err := s.ExpandLeaf(leaf, av, nil); err != nil {
			t.Fatalf("ExpandLeaf: %v", err)
		}
	}

	rootVisitsBefore := s.root.visits
	for i := 0; i < 5; i++ {
		leaf := s.SelectLeaf()
		if leaf.Present() {
			t.Fatalf("expected every further select_leaf to hit a terminal node")
		}
	}
	if s.root.visits != rootVisitsBefore+5 {
		t.Fatalf("expected root to absorb 5 more visits, got %d extra", s.root.visits-rootVisitsBefore)
	}
}

func TestMoveGreedyPicksMostVisitedChild(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}

	// Drive a handful of simulations through; with equal priors and a
	// losing "a"/winning "b" value, "b" should accumulate more visits.
	for i := 0; i < 20; i++ {
		leaf := s.SelectLeaf()
		if !leaf.Present() {
			continue
		}
		var av float64
		if leaf.State().move == "a" {
			av = -1
		} else {
			av = 1
		}
		if err := s.ExpandLeaf(leaf, av, nil); err != nil {
			t.Fatalf("ExpandLeaf: %v", err)
		}
	}

	move, err := s.MoveGreedy()
	if err != nil {
		t.Fatalf("MoveGreedy: %v", err)
	}
	if move != "b" {
		t.Fatalf("expected greedy move to be the winning branch \"b\", got %q", move)
	}
}

func TestMoveProportionalAtSingleVisitIsUniform(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}

	if s.root.visits != 1 {
		t.Fatalf("expected root visits == 1 immediately after expansion, got %d", s.root.visits)
	}

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		s2 := NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", int64(i))
		leaf := s2.SelectLeaf()
		if err := s2.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
			t.Fatalf("ExpandLeaf: %v", err)
		}
		move, err := s2.MoveProportional()
		if err != nil {
			t.Fatalf("MoveProportional: %v", err)
		}
		counts[move]++
	}

	if counts["a"] == 0 || counts["b"] == 0 {
		t.Fatalf("expected both moves to be sampled at least once across 200 draws, got %v", counts)
	}
}

func TestCollectResultSignFlipsByHistoryParity(t *testing.T) {
	s := newTwoMoveSearch()

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}

	for i := 0; i < 3; i++ {
		leaf := s.SelectLeaf()
		if !leaf.Present() {
			continue
		}
		var av float64
		if leaf.State().move == "a" {
			av = -1
		} else {
			av = 1
		}
		if err := s.ExpandLeaf(leaf, av, nil); err != nil {
			t.Fatalf("ExpandLeaf: %v", err)
		}
	}

	move, err := s.MoveGreedy()
	if err != nil {
		t.Fatalf("MoveGreedy: %v", err)
	}
	if move != "b" {
		t.Fatalf("expected the committed move to be the winning branch, got %q", move)
	}

	if !s.Complete() {
		t.Fatalf("expected the committed position to be terminal")
	}

	score, history, err := s.CollectResult()
	if err != nil {
		t.Fatalf("CollectResult: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries (root + terminal), got %d", len(history))
	}
	// Two history entries (the pre-move root, then the terminal position)
	// -> even length -> sign is flipped, so a terminal total_av of +1
	// comes back as -1.
	if score != -1 {
		t.Fatalf("expected score -1, got %v", score)
	}
	if !s.Collected() {
		t.Fatalf("expected the search to be collected")
	}
}

func TestContractViolations(t *testing.T) {
	s := newTwoMoveSearch()

	if _, err := s.MoveGreedy(); err == nil {
		t.Fatalf("expected MoveGreedy on an unexpanded root to fail")
	}
	// CollectResult's only precondition is "not already collected", so a
	// separate unexpanded search collects successfully with a score of 0.
	if score, _, err := newTwoMoveSearch().CollectResult(); err != nil || score != 0 {
		t.Fatalf("expected CollectResult on an unexpanded root to succeed with score 0, got %v, %v", score, err)
	}

	leaf := s.SelectLeaf()
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err != nil {
		t.Fatalf("ExpandLeaf: %v", err)
	}
	if err := s.ExpandLeaf(leaf, 0, rootExpansion()); err == nil {
		t.Fatalf("expected re-expanding an already-expanded leaf to fail")
	}

	s2 := NewSeeded[twoMoveState, string](1.25, 19652, twoMoveState{}, "", 1)
	s2.ExpandLeaf(s2.SelectLeaf(), 0, nil)
	if _, _, err := s2.CollectResult(); err != nil {
		t.Fatalf("CollectResult on a terminal root: %v", err)
	}
	if _, _, err := s2.CollectResult(); err == nil {
		t.Fatalf("expected a second CollectResult to fail")
	}
}
