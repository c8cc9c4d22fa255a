package store

import (
	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
)

// TurnRowsFromGame flattens one completed game's history into TurnRows.
// gameID identifies the game, modelPath records which evaluator produced
// it (empty for a model-free evaluator).
func TurnRowsFromGame(gameID string, modelPath string, score float64, history []mcts.HistoryEntry[connectk.State, int]) []TurnRow {
	rows := make([]TurnRow, len(history))
	for turn, entry := range history {
		cols := make([]int32, len(entry.SearchProbabilities))
		probs := make([]float32, len(entry.SearchProbabilities))
		for i, mp := range entry.SearchProbabilities {
			cols[i] = int32(mp.Move)
			probs[i] = float32(mp.Probability)
		}

		rows[turn] = TurnRow{
			GameID:    gameID,
			Turn:      int32(turn),
			Rows:      int32(entry.State.Rows()),
			Cols:      int32(entry.State.Cols()),
			K:         int32(entry.State.K()),
			Board:     entry.State.PositionTensor(),
			MoveCols:  cols,
			MoveProbs: probs,
			Score:     float32(score),
			ModelPath: modelPath,
		}
	}
	return rows
}
