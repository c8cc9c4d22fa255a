package store

import (
	"testing"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
)

func TestTurnRowsFromGame(t *testing.T) {
	s := connectk.New(2, 2, 4)
	history := []mcts.HistoryEntry[connectk.State, int]{
		{
			State: s,
			SearchProbabilities: []mcts.MoveProb[int]{
				{Move: 0, Probability: 0.5},
				{Move: 1, Probability: 0.5},
			},
		},
	}

	rows := TurnRowsFromGame("game-1", "model.onnx", 1, history)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.GameID != "game-1" || row.ModelPath != "model.onnx" {
		t.Fatalf("unexpected identifying fields: %+v", row)
	}
	if len(row.Board) != 2*2*2 {
		t.Fatalf("expected board length 8, got %d", len(row.Board))
	}
	if len(row.MoveCols) != 2 || len(row.MoveProbs) != 2 {
		t.Fatalf("expected 2 move entries, got cols=%d probs=%d", len(row.MoveCols), len(row.MoveProbs))
	}
}
