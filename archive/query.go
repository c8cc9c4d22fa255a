// Package archive provides read-only access to a directory tree of
// TurnRow Parquet batches (as written by store.BatchWriter), via an
// in-process DuckDB connection reading the files directly off disk.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Reader is a cached DuckDB connection over one or more archive root
// directories. It is safe for concurrent use.
type Reader struct {
	roots []string
	db    *sql.DB
}

// Open globs every *.parquet file under roots (skipping BatchWriter's tmp/
// staging directories) and registers it as the "turns" view.
func Open(roots []string) (*Reader, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+strings.ReplaceAll(glob, "'", "''")+"'")
	}

	if len(globs) == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("archive: no roots given")
	}

	sqlText := `CREATE OR REPLACE VIEW turns AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Reader{roots: roots, db: db}, nil
}

// Close releases the underlying DuckDB connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// GameSummary is one game's aggregate stats across its archived turns.
type GameSummary struct {
	GameID    string
	TurnCount int
	Rows      int
	Cols      int
	K         int
	Score     float32
}

// ListGames returns one summary per distinct game_id in the archive.
func (r *Reader) ListGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			game_id,
			COUNT(*)::INTEGER AS turn_count,
			MIN(rows)::INTEGER,
			MIN(cols)::INTEGER,
			MIN(k)::INTEGER,
			MAX(score)::REAL
		FROM turns
		GROUP BY game_id
		ORDER BY game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GameID, &g.TurnCount, &g.Rows, &g.Cols, &g.K, &g.Score); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Turn is one archived TurnRow, read back out of the archive.
type Turn struct {
	GameID    string
	Turn      int
	Board     []float32
	MoveCols  []int32
	MoveProbs []float32
	Score     float32
	ModelPath string
}

// GameTurns returns every archived turn for gameID, in turn order.
func (r *Reader) GameTurns(ctx context.Context, gameID string) ([]Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT turn::INTEGER, board, move_cols, move_probs, score::REAL, COALESCE(model_path, '')
		FROM turns
		WHERE game_id = ?
		ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var boardAny, moveColsAny, moveProbsAny any
		if err := rows.Scan(&t.Turn, &boardAny, &moveColsAny, &moveProbsAny, &t.Score, &t.ModelPath); err != nil {
			return nil, err
		}
		t.GameID = gameID
		t.Board = asFloat32Slice(boardAny)
		t.MoveCols = asInt32Slice(moveColsAny)
		t.MoveProbs = asFloat32Slice(moveProbsAny)
		out = append(out, t)
	}
	return out, rows.Err()
}

func asFloat32Slice(v any) []float32 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, len(arr))
	for i, e := range arr {
		switch n := e.(type) {
		case float32:
			out[i] = n
		case float64:
			out[i] = float32(n)
		}
	}
	return out
}

func asInt32Slice(v any) []int32 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int32, len(arr))
	for i, e := range arr {
		switch n := e.(type) {
		case int32:
			out[i] = n
		case int64:
			out[i] = int32(n)
		}
	}
	return out
}
