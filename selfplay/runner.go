// Package selfplay drives many concurrent Connect-K games through
// mcts.BatchDriver, streams progress updates to a dashboard, and flushes
// completed games to Parquet via the store package.
package selfplay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
	"github.com/as3richa/alpha3/store"
)

// Config bundles the knobs a self-play run needs: board shape, search
// parameters, and output/flush behavior.
type Config struct {
	Rows, Cols, K int

	CInit, CBase      float64
	SearchesPerMove   int
	DirichletAlpha    float64
	DirichletFraction float64

	ConcurrentGames int
	GamesPerFlush   int
	OutDir          string
	ModelPath       string
}

// Update is one completed game's outcome, reported to the caller for
// dashboard/logging purposes as each game finishes.
type Update struct {
	GameID string
	Score  float64
	Turns  int
}

var gameSeq atomic.Int64

// Run drives cfg.ConcurrentGames games at a time, forever, until ctx is
// canceled or maxGames games have completed (maxGames <= 0 means
// unbounded). Every completed game is reported on updates (best-effort;
// the channel is never blocked on) and its turns are buffered for a
// Parquet flush every GamesPerFlush games.
func Run(ctx context.Context, cfg Config, eval mcts.Evaluator[connectk.State, int], observer mcts.Observer[connectk.State, int], maxGames int64, updates chan<- Update) error {
	writer, err := newFlusher(cfg.OutDir, cfg.GamesPerFlush)
	if err != nil {
		return err
	}
	defer writer.finalize()

	var completed atomic.Int64

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if maxGames > 0 && completed.Load() >= maxGames {
			return nil
		}

		n := cfg.ConcurrentGames
		if n <= 0 {
			n = 1
		}

		driver := mcts.NewBatchDriver[connectk.State, int](
			n,
			cfg.SearchesPerMove,
			cfg.DirichletAlpha, cfg.DirichletFraction,
			func(i int) *mcts.Search[connectk.State, int] {
				s := mcts.New[connectk.State, int](cfg.CInit, cfg.CBase, connectk.New(cfg.Rows, cfg.Cols, cfg.K), connectk.PhonyMove)
				if observer != nil {
					s.SetObserver(observer)
				}
				return s
			},
		)

		err := driver.Run(ctx, eval, func(r mcts.GameResult[connectk.State, int]) {
			id := fmt.Sprintf("selfplay_%d", gameSeq.Add(1))
			rows := store.TurnRowsFromGame(id, cfg.ModelPath, r.Score, r.History)
			writer.add(rows)
			completed.Add(1)

			if updates != nil {
				select {
				case updates <- Update{GameID: id, Score: r.Score, Turns: len(r.History)}:
				default:
				}
			}
		})
		if err != nil {
			return err
		}
	}
}

// flusher batches TurnRows from completed games into Parquet files, every
// gamesPerFlush games, using store.BatchWriter for the atomic write.
type flusher struct {
	outDir        string
	gamesPerFlush int

	writer *store.BatchWriter
	games  int
	log    *slog.Logger
}

func newFlusher(outDir string, gamesPerFlush int) (*flusher, error) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}
	w, err := store.NewBatchWriter(outDir)
	if err != nil {
		return nil, err
	}
	return &flusher{outDir: outDir, gamesPerFlush: gamesPerFlush, writer: w, log: slog.Default()}, nil
}

func (f *flusher) add(rows []store.TurnRow) {
	if len(rows) == 0 {
		return
	}
	if err := f.writer.WriteRows(rows); err != nil {
		f.log.Error("selfplay: write rows failed", "err", err)
		return
	}
	f.writer.NoteGameWritten()
	f.games++

	if f.games >= f.gamesPerFlush {
		f.rotate()
	}
}

func (f *flusher) rotate() {
	start := time.Now()
	outPath, rows, games, err := f.writer.Finalize()
	if err != nil {
		f.log.Error("selfplay: parquet flush failed", "err", err)
	} else if outPath != "" {
		f.log.Info("selfplay: parquet flush ok", "path", outPath, "games", games, "rows", rows, "took", time.Since(start))
	}

	w, err := store.NewBatchWriter(f.outDir)
	if err != nil {
		f.log.Error("selfplay: reopen batch writer failed", "err", err)
		return
	}
	f.writer = w
	f.games = 0
}

func (f *flusher) finalize() {
	if _, _, _, err := f.writer.Finalize(); err != nil {
		f.log.Error("selfplay: final parquet flush failed", "err", err)
	}
}
