package connectk

import "testing"

func TestNewBoardHasFullColumnSet(t *testing.T) {
	s := New(6, 7, 4)
	if len(s.Moves()) != 7 {
		t.Fatalf("expected 7 legal moves on an empty 7-wide board, got %d", len(s.Moves()))
	}
	if s.Terminal() {
		t.Fatalf("empty board must not be terminal")
	}
}

func TestDiagonalConnectFourIsALoss(t *testing.T) {
	s := New(6, 7, 4)

	// Columns 3, 2, 2, 1, 1, 0, 1, 0, 0, 1, 0 mirrors the reference
	// sequence: the first player's last stone, in column 0, completes the
	// diagonal four (2,0)-(3,1)-(4,2)-(5,3), leaving the next mover facing a
	// lost position.
	moves := []int{3, 2, 2, 1, 1, 0, 1, 0, 0, 1, 0}
	for i, m := range moves {
		if s.Terminal() {
			t.Fatalf("game ended early after move %d", i)
		}
		s = s.Play(m)
	}

	if !s.Terminal() {
		t.Fatalf("expected the position to be terminal after the winning line")
	}
	if s.Value() != -1 {
		t.Fatalf("expected the mover to move next to have lost, got value %v", s.Value())
	}
}

func TestPlayAlternatesPerspective(t *testing.T) {
	s := New(2, 2, 4)
	s1 := s.Play(0)

	// s1 is described from the second player's perspective: their opponent
	// (the first player) just placed a stone, which must appear in
	// "theirs", not "mine".
	if s1.theirs[s1.idx(1, 0)] != true {
		t.Fatalf("expected the just-played stone to belong to the opponent from the next mover's perspective")
	}
	if s1.mine[s1.idx(1, 0)] {
		t.Fatalf("the next mover should not own the stone their opponent just placed")
	}
}

func TestFullBoardWithoutConnectionIsADraw(t *testing.T) {
	// On a 1x4 board with k=4, alternating moves in columns 0..3 leave each
	// player two non-adjacent stones, so the board fills to a draw.
	s := New(1, 4, 4)
	for _, m := range []int{0, 1, 2, 3} {
		s = s.Play(m)
	}
	if !s.Terminal() {
		t.Fatalf("expected a full board to be terminal")
	}
	if s.Value() != 0 {
		t.Fatalf("expected a draw value of 0, got %v", s.Value())
	}
}

func TestPositionTensorShape(t *testing.T) {
	s := New(6, 7, 4)
	tensor := s.PositionTensor()
	if len(tensor) != 2*6*7 {
		t.Fatalf("expected tensor length %d, got %d", 2*6*7, len(tensor))
	}
}
