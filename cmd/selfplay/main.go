// Command selfplay runs a batch of Connect-K self-play games driven by an
// ONNX policy/value network (or, with -model="", a model-free evaluator
// useful for smoke-testing the pipeline) and archives the resulting
// training data as Parquet.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/inference"
	"github.com/as3richa/alpha3/liveview"
	"github.com/as3richa/alpha3/logging"
	"github.com/as3richa/alpha3/mcts"
	"github.com/as3richa/alpha3/selfplay"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	rows := flag.Int("rows", 6, "board rows")
	cols := flag.Int("cols", 7, "board columns")
	k := flag.Int("k", 4, "stones in a row required to win")

	cInit := flag.Float64("c-init", 1.25, "PUCT exploration constant")
	cBase := flag.Float64("c-base", 19652, "PUCT exploration base")
	searchesPerMove := flag.Int("searches-per-move", 200, "MCTS searches to run before committing each move")
	dirichletAlpha := flag.Float64("dirichlet-alpha", 0.3, "Dirichlet noise alpha mixed into root priors; 0 disables")
	dirichletFraction := flag.Float64("dirichlet-fraction", 0.25, "fraction of root prior mass replaced by Dirichlet noise")

	concurrentGames := flag.Int("concurrent-games", 64, "number of games to run in lockstep per evaluator batch")
	maxGames := flag.Int64("max-games", 0, "stop after this many completed games; 0 means unbounded")
	gamesPerFlush := flag.Int("games-per-flush", 50, "games to buffer before flushing a Parquet batch")
	outDir := flag.String("out-dir", "data/generated", "output directory for training Parquet batches")

	modelPath := flag.String("model", "", "path to an ONNX policy/value model; empty uses a model-free random evaluator")
	onnxSessions := flag.Int("onnx-sessions", 1, "number of parallel ONNX Runtime sessions")

	liveAddr := flag.String("live-addr", "", "if set, serve a live spectator websocket at this address (e.g. :8080)")
	tui := flag.Bool("tui", true, "show the live bubbletea dashboard")
	flag.Parse()

	logger := slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var eval mcts.Evaluator[connectk.State, int]
	if *modelPath == "" {
		logger.Warn("no -model given, using a model-free random evaluator")
		eval = inference.NewUniformEvaluator(1)
	} else if *onnxSessions <= 1 {
		e, err := inference.NewOnnxEvaluator(*modelPath, *rows, *cols)
		if err != nil {
			logger.Error("failed to load onnx model", "err", err)
			os.Exit(1)
		}
		defer e.Close()
		eval = e
	} else {
		pool, err := inference.NewOnnxPool(*modelPath, *rows, *cols, *onnxSessions)
		if err != nil {
			logger.Error("failed to load onnx model pool", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		eval = pool
	}

	var observer mcts.Observer[connectk.State, int]
	if *liveAddr != "" {
		hub := liveview.NewHub(logger)
		observer = hub

		mux := http.NewServeMux()
		mux.Handle("/live", hub)
		go func() {
			if err := http.ListenAndServe(*liveAddr, mux); err != nil {
				logger.Error("liveview server exited", "err", err)
			}
		}()
		logger.Info("serving live spectator websocket", "addr", *liveAddr, "path", "/live")
	}

	cfg := selfplay.Config{
		Rows: *rows, Cols: *cols, K: *k,
		CInit: *cInit, CBase: *cBase,
		SearchesPerMove:   *searchesPerMove,
		DirichletAlpha:    *dirichletAlpha,
		DirichletFraction: *dirichletFraction,
		ConcurrentGames:   *concurrentGames,
		GamesPerFlush:     *gamesPerFlush,
		OutDir:            *outDir,
		ModelPath:         *modelPath,
	}

	updates := make(chan selfplay.Update, *concurrentGames)

	runDone := make(chan error, 1)
	go func() {
		runDone <- selfplay.Run(ctx, cfg, eval, observer, *maxGames, updates)
	}()

	if *tui {
		p := tea.NewProgram(selfplay.NewDashboardModel(updates))
		if _, err := p.Run(); err != nil {
			logger.Error("dashboard exited", "err", err)
		}
		cancel()
	}

	if err := <-runDone; err != nil {
		logger.Error("self-play run failed", "err", err)
		os.Exit(1)
	}
}
