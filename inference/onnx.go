// Package inference adapts a trained policy/value network to the
// mcts.Evaluator interface for Connect-K. Unlike a request/response
// inference server, BatchDriver already forms the batch on the caller's
// side, so Evaluate here is a single, synchronous session run per call
// rather than an internally-batched request queue.
package inference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/as3richa/alpha3/connectk"
	"github.com/as3richa/alpha3/mcts"
	ort "github.com/yalue/onnxruntime_go"
)

// OnnxEvaluator runs a Connect-K policy/value network via ONNX Runtime. A
// single OnnxEvaluator is not safe for concurrent Evaluate calls, since the
// underlying session is stateful; a BatchDriver only ever calls Evaluate
// once per cycle, so this is not a practical restriction.
type OnnxEvaluator struct {
	session *ort.DynamicAdvancedSession
	rows    int
	cols    int
}

var ortInitOnce sync.Once
var ortInitErr error

// NewOnnxEvaluator loads a Connect-K model from modelPath. The model is
// expected to expose an "input" tensor shaped [batch, 2, rows, cols] and
// two outputs, "policy" shaped [batch, cols] and "value" shaped [batch, 1].
func NewOnnxEvaluator(modelPath string, rows, cols int) (*OnnxEvaluator, error) {
	if runtime.GOOS == "linux" {
		ensureLinuxLibraryPath()
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else {
			cwd, _ := os.Getwd()
			candidates := []string{
				"libonnxruntime.so",
				"libonnxruntime.so.1",
			}
			for _, name := range candidates {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err == nil {
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err == nil {
			fmt.Println("CUDA provider enabled")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &OnnxEvaluator{session: session, rows: rows, cols: cols}, nil
}

func ensureLinuxLibraryPath() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	candidateDirs := []string{cwd}
	patterns := []string{
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "nvidia", "*", "lib"),
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "torch", "lib"),
	}
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		candidateDirs = append(candidateDirs, matches...)
	}

	existing := os.Getenv("LD_LIBRARY_PATH")
	existingSet := map[string]bool{}
	for _, p := range strings.Split(existing, ":") {
		if p != "" {
			existingSet[p] = true
		}
	}

	var toAdd []string
	for _, d := range candidateDirs {
		if existingSet[d] {
			continue
		}
		if st, err := os.Stat(d); err == nil && st.IsDir() {
			toAdd = append(toAdd, d)
		}
	}
	if len(toAdd) == 0 {
		return
	}

	newVal := strings.Join(toAdd, ":")
	if existing != "" {
		newVal = newVal + ":" + existing
	}
	_ = os.Setenv("LD_LIBRARY_PATH", newVal)
}

// Close releases the underlying ONNX Runtime session.
func (e *OnnxEvaluator) Close() error {
	return e.session.Destroy()
}

// Evaluate implements mcts.Evaluator: it runs one forward pass over every
// leaf state in the batch and returns a value plus a legal-move expansion
// for each.
func (e *OnnxEvaluator) Evaluate(ctx context.Context, states []connectk.State) ([]mcts.EvalResult[connectk.State, int], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, nil
	}

	planeSize := e.rows * e.cols
	batchInput := make([]float32, 0, len(states)*2*planeSize)
	for _, st := range states {
		batchInput = append(batchInput, st.PositionTensor()...)
	}

	n := int64(len(states))
	inputTensor, err := ort.NewTensor(ort.NewShape(n, 2, int64(e.rows), int64(e.cols)), batchInput)
	if err != nil {
		return nil, err
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(e.cols)))
	if err != nil {
		return nil, err
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, 1))
	if err != nil {
		return nil, err
	}
	defer valueTensor.Destroy()

	if err := e.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		return nil, err
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()

	results := make([]mcts.EvalResult[connectk.State, int], len(states))
	for i, st := range states {
		results[i] = mcts.EvalResult[connectk.State, int]{
			Value:      float64(valueData[i]),
			Expansions: expandFromPolicy(st, policyData[i*e.cols:(i+1)*e.cols]),
		}
	}
	return results, nil
}

// expandFromPolicy builds child expansion entries for every legal move,
// re-normalizing the network's per-column policy over only the moves that
// are actually legal in st.
func expandFromPolicy(st connectk.State, policy []float32) []mcts.ExpansionEntry[connectk.State, int] {
	moves := st.Moves()
	if len(moves) == 0 {
		return nil
	}

	sum := float32(0)
	for _, m := range moves {
		sum += policy[m]
	}

	entries := make([]mcts.ExpansionEntry[connectk.State, int], len(moves))
	for i, m := range moves {
		prior := 1.0 / float64(len(moves))
		if sum > 0 {
			prior = float64(policy[m] / sum)
		}
		entries[i] = mcts.ExpansionEntry[connectk.State, int]{
			Move:  m,
			State: st.Play(m),
			Prior: prior,
		}
	}
	return entries
}
