// Package connectk implements Connect-K (a generalized Connect Four: k
// stones in a row, on a board of arbitrary size) as a GameState/Move pair
// usable with the mcts package. It follows the same self-relative
// perspective convention the search engine expects: every State is always
// described from the point of view of the player about to move, and a
// terminal State's value is the outcome from that same mover's perspective.
package connectk

import "fmt"

// State is one Connect-K position. It is immutable: Play returns a new
// State rather than mutating the receiver, so a State can be safely shared
// across a search tree's nodes.
type State struct {
	rows, cols, k int

	// mine and theirs are row-major (row*cols+col) occupancy grids, always
	// relative to the player about to move in this State: mine holds the
	// mover's own stones, theirs holds the opponent's. A freshly played
	// stone therefore always lands in what becomes "theirs" for the child
	// State, since the mover alternates every ply.
	mine, theirs []bool

	terminal bool
	value    float64
}

// New returns the empty starting position for a rows x cols board where k
// stones in a row (horizontally, vertically, or diagonally) wins.
func New(rows, cols, k int) State {
	return State{
		rows:   rows,
		cols:   cols,
		k:      k,
		mine:   make([]bool, rows*cols),
		theirs: make([]bool, rows*cols),
	}
}

func (s State) idx(row, col int) int {
	return row*s.cols + col
}

func (s State) occupied(row, col int) bool {
	i := s.idx(row, col)
	return s.mine[i] || s.theirs[i]
}

// Terminal reports whether the position has no legal moves: either a
// player has just connected k in a row, or the board is completely full.
func (s State) Terminal() bool {
	return s.terminal
}

// Value returns the terminal outcome from the perspective of the player to
// move in this State: -1 if that player has already lost (the opponent's
// last stone completed a line through it), 0 for a drawn full board.
// Precondition: Terminal.
func (s State) Value() float64 {
	return s.value
}

// Moves returns the columns that are not yet full, in ascending order. A
// terminal position has no legal moves.
func (s State) Moves() []int {
	if s.terminal {
		return nil
	}

	moves := make([]int, 0, s.cols)
	for col := 0; col < s.cols; col++ {
		if !s.occupied(0, col) {
			moves = append(moves, col)
		}
	}
	return moves
}

// Play drops a stone in column move for the current mover and returns the
// resulting position, described from the next mover's perspective.
// Precondition: move is present in Moves().
func (s State) Play(move int) State {
	row := 0
	for r := 0; r < s.rows; r++ {
		row = r
		if r == s.rows-1 || s.occupiedAt(r+1, move) {
			break
		}
	}

	child := State{
		rows: s.rows,
		cols: s.cols,
		k:    s.k,
		// The mover's stones (including the one just placed) become the
		// next mover's "theirs"; the previous opponent's stones become
		// the next mover's "mine".
		mine:   append([]bool(nil), s.theirs...),
		theirs: append([]bool(nil), s.mine...),
	}
	child.theirs[child.idx(row, move)] = true

	if child.connectedThrough(row, move) {
		child.terminal = true
		child.value = -1
	} else if len(child.Moves()) == 0 {
		child.terminal = true
		child.value = 0
	}

	return child
}

func (s State) occupiedAt(row, col int) bool {
	i := s.idx(row, col)
	return s.mine[i] || s.theirs[i]
}

// connectedThrough reports whether the stone at (row, col) in s.theirs
// anchors a run of at least s.k in any of the four line directions.
func (s State) connectedThrough(row, col int) bool {
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

	for _, d := range dirs {
		run := 1
		run += s.runLength(row, col, d[0], d[1])
		run += s.runLength(row, col, -d[0], -d[1])
		if run >= s.k {
			return true
		}
	}
	return false
}

func (s State) runLength(row, col, dr, dc int) int {
	n := 0
	r, c := row+dr, col+dc
	for r >= 0 && r < s.rows && c >= 0 && c < s.cols && s.theirs[s.idx(r, c)] {
		n++
		r += dr
		c += dc
	}
	return n
}

// PositionTensor returns the position as two flattened row-major planes
// (mover's stones, then opponent's stones), suitable for feeding a neural
// network evaluator. The returned slice has length 2*rows*cols.
func (s State) PositionTensor() []float32 {
	out := make([]float32, 2*s.rows*s.cols)
	for i, v := range s.mine {
		if v {
			out[i] = 1
		}
	}
	for i, v := range s.theirs {
		if v {
			out[s.rows*s.cols+i] = 1
		}
	}
	return out
}

// Rows, Cols, and K expose the board dimensions, e.g. for tensor shape
// bookkeeping in the inference package.
func (s State) Rows() int { return s.rows }
func (s State) Cols() int { return s.cols }
func (s State) K() int    { return s.k }

func (s State) String() string {
	out := ""
	for row := 0; row < s.rows; row++ {
		out += "|"
		for col := 0; col < s.cols; col++ {
			i := s.idx(row, col)
			switch {
			case s.mine[i]:
				out += "o"
			case s.theirs[i]:
				out += "x"
			default:
				out += "."
			}
		}
		out += "|\n"
	}
	return out
}

// PhonyMove is the placeholder Move used for the root of a fresh search
// tree, where no move actually reaches the initial position.
const PhonyMove = -1

// PriorIndex maps a column to its slot in a Cols()-wide policy vector, and
// exists purely for readability at evaluator call sites.
func PriorIndex(move int) int {
	if move < 0 {
		panic(fmt.Sprintf("connectk: PriorIndex called with phony move %d", move))
	}
	return move
}
