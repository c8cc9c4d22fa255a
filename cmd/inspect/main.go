// Command inspect queries an archive of self-play Parquet batches: listed
// with no arguments, or dumped turn-by-turn given a game ID.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/as3richa/alpha3/archive"
)

func main() {
	root := flag.String("root", "data/generated", "archive root directory (several may be given, comma-separated)")
	gameID := flag.String("game", "", "if set, print every archived turn for this game ID instead of listing games")
	flag.Parse()

	roots := strings.Split(*root, ",")

	r, err := archive.Open(roots)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer r.Close()

	ctx := context.Background()

	if *gameID == "" {
		games, err := r.ListGames(ctx)
		if err != nil {
			log.Fatalf("list games: %v", err)
		}
		for _, g := range games {
			fmt.Printf("%s\tturns=%d\tboard=%dx%d k=%d\tscore=%.2f\n", g.GameID, g.TurnCount, g.Rows, g.Cols, g.K, g.Score)
		}
		return
	}

	turns, err := r.GameTurns(ctx, *gameID)
	if err != nil {
		log.Fatalf("game turns: %v", err)
	}
	for _, t := range turns {
		fmt.Printf("turn %d: moves=%v probs=%v score=%.2f model=%q\n", t.Turn, t.MoveCols, t.MoveProbs, t.Score, t.ModelPath)
	}
}
