// Package store persists completed self-play games as compressed Parquet
// archives, one row per committed turn, so that a trainer (or the archive
// package's DuckDB reader) can scan a whole run without touching the live
// game trees.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// TurnRow is a single (game, turn) snapshot: the board position, the
// search's visit distribution over legal moves at that position, and the
// final game score from the perspective of the player to move at the
// game's initial position (the same value on every row of a game).
//
// Rows is model-agnostic: Board is a flattened two-plane position tensor
// (mover's stones, then opponent's), the same encoding connectk.State
// produces, so a trainer never needs to re-derive it from raw game rules.
type TurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Rows   int32  `parquet:"rows"`
	Cols   int32  `parquet:"cols"`
	K      int32  `parquet:"k"`

	Board []float32 `parquet:"board"`

	MoveCols  []int32   `parquet:"move_cols"`
	MoveProbs []float32 `parquet:"move_probs"`

	Score float32 `parquet:"score"`

	// ModelPath is the resolved path to the ONNX model used to generate
	// this game, or empty if played with a model-free evaluator.
	ModelPath string `parquet:"model_path,dict,optional"`
}

// WriteArchiveParquet writes rows to outPath, via a temp-file-then-rename
// so readers never observe a partially-written file.
func WriteArchiveParquet(outPath string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("board"),
		parquet.KeyValueMetadata("schema", "turn_row_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so a long-running self-play writer never
// exposes a partially-written batch to a concurrent reader.
func WriteBatchParquetAtomic(outDir string, rows []TurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("board"),
		parquet.KeyValueMetadata("schema", "turn_row_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}
