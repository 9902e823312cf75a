package distance

import (
	"context"
	"errors"
	"fmt"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/workers"
)

// ErrWindowParams is returned for a non-positive window length or step
var ErrWindowParams = errors.New("window length and step must be positive")

// Windows returns the spans [start, start+length) for start = 0, step, 2*step, ... while
// start+length < n. The trailing partial window is dropped.
func Windows(n, length, step int) ([]genotype.Span, error) {
	if length <= 0 || step <= 0 {
		return nil, fmt.Errorf("length %d, step %d: %w", length, step, ErrWindowParams)
	}

	var spans []genotype.Span
	for start := 0; start+length < n; start += step {
		spans = append(spans, genotype.Span{Start: start, End: start + length})
	}
	return spans, nil
}

// WindowTable holds the distances observed in one window
type WindowTable struct {
	Window genotype.Span
	// Query holds directed pairs with at least one query
	Query Table
	// Reference holds undirected pairs of references, used for calibration
	Reference Table
}

// Omitted returns the number of undefined distances in the window
func (w WindowTable) Omitted() int {
	return w.Query.Omitted + w.Reference.Omitted
}

// ScanWindow computes both distance tables for one window
func (e *Engine) ScanWindow(window genotype.Span) WindowTable {
	return WindowTable{
		Window:    window,
		Query:     e.Table(window, Directed, SelectQueryPairs),
		Reference: e.Table(window, Undirected, SelectReferencePairs),
	}
}

// Scan computes every window in parallel and returns the tables in window order.
// onDone, when set, is called once per finished window.
func (e *Engine) Scan(ctx context.Context, windows []genotype.Span, nWorkers int, onDone func()) ([]WindowTable, error) {
	tables, err := workers.Map(ctx, nWorkers, windows, func(_ context.Context, w genotype.Span) (WindowTable, error) {
		if w.Start < 0 || w.End > e.aln.Len() || w.Start >= w.End {
			return WindowTable{}, fmt.Errorf("window %s outside alignment of length %d", w, e.aln.Len())
		}
		t := e.ScanWindow(w)
		if err := t.Query.Check(); err != nil {
			return WindowTable{}, err
		}
		if err := t.Reference.Check(); err != nil {
			return WindowTable{}, err
		}
		return t, nil
	}, onDone)
	if err != nil {
		return nil, fmt.Errorf("failed to scan windows: %w", err)
	}
	return tables, nil
}
