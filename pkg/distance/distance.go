// Package distance computes gap-aware pairwise distances over alignment spans, for the
// whole alignment and for sliding windows.
package distance

import (
	"github.com/exascience/pargo/parallel"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// DefaultMissing lists the symbols treated as gap or missing data
const DefaultMissing = "-N?."

// SymbolSet is a byte lookup table of excluded symbols
type SymbolSet [256]bool

// NewSymbolSet builds a case-insensitive set from the given symbols
func NewSymbolSet(symbols string) *SymbolSet {
	var s SymbolSet
	for i := 0; i < len(symbols); i++ {
		c := symbols[i]
		s[c] = true
		if c >= 'a' && c <= 'z' {
			s[c-'a'+'A'] = true
		} else if c >= 'A' && c <= 'Z' {
			s[c-'A'+'a'] = true
		}
	}
	return &s
}

// Contains reports whether c is excluded
func (s *SymbolSet) Contains(c byte) bool {
	return s[c]
}

// Distance returns the proportion of differing columns in span, ignoring every column
// where either sequence has a missing symbol. ok is false when no column is comparable.
func Distance(a, b []byte, span genotype.Span, missing *SymbolSet) (float64, bool) {
	var compared, mismatched int

	for i := span.Start; i < span.End; i++ {
		x, y := a[i], b[i]
		if missing[x] || missing[y] {
			continue
		}
		compared++
		if x != y {
			mismatched++
		}
	}

	if compared == 0 {
		return 0, false
	}
	return float64(mismatched) / float64(compared), true
}

// Mode selects whether (A,B) and (B,A) are distinct observations
type Mode int

const (
	// Undirected keeps one of (A,B)/(B,A)
	Undirected Mode = iota
	// Directed keeps both orientations
	Directed
)

func (m Mode) String() string {
	if m == Directed {
		return "directed"
	}
	return "undirected"
}

// Selector decides whether a pair is part of a table
type Selector func(a, b genotype.Sequence) bool

// SelectAll keeps every pair
func SelectAll(_, _ genotype.Sequence) bool { return true }

// SelectQueryPairs keeps pairs with at least one query
func SelectQueryPairs(a, b genotype.Sequence) bool {
	return a.IsQuery() || b.IsQuery()
}

// SelectReferencePairs keeps pairs of two labeled references
func SelectReferencePairs(a, b genotype.Sequence) bool {
	return !a.IsQuery() && !b.IsQuery()
}

// Pair indexes two alignment rows
type Pair struct {
	I, J int
}

// Table is the set of defined distances over one span
type Table struct {
	Span    genotype.Span
	Mode    Mode
	Records []genotype.DistanceRecord
	Omitted int // pairs with no comparable column
}

// Engine computes distance tables for one alignment
type Engine struct {
	aln     *genotype.Alignment
	labels  []genotype.Sequence
	missing *SymbolSet
}

// NewEngine binds an alignment to its metadata. The alignment must already be validated.
func NewEngine(aln *genotype.Alignment, meta genotype.Metadata, missing *SymbolSet) *Engine {
	if missing == nil {
		missing = NewSymbolSet(DefaultMissing)
	}
	return &Engine{
		aln:     aln,
		labels:  aln.Labels(meta),
		missing: missing,
	}
}

// Labels returns the metadata of each row in alignment order
func (e *Engine) Labels() []genotype.Sequence {
	return e.labels
}

// Alignment returns the bound alignment
func (e *Engine) Alignment() *genotype.Alignment {
	return e.aln
}

// Pairs enumerates the selected row pairs, never including self pairs
func (e *Engine) Pairs(mode Mode, sel Selector) []Pair {
	n := len(e.labels)
	var pairs []Pair
	for i := 0; i < n; i++ {
		start := i + 1
		if mode == Directed {
			start = 0
		}
		for j := start; j < n; j++ {
			if i == j || !sel(e.labels[i], e.labels[j]) {
				continue
			}
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// Table computes all selected pairs over span sequentially
func (e *Engine) Table(span genotype.Span, mode Mode, sel Selector) Table {
	pairs := e.Pairs(mode, sel)
	dists := make([]float64, len(pairs))
	valid := make([]bool, len(pairs))
	for k, p := range pairs {
		dists[k], valid[k] = Distance(e.aln.Rows[p.I], e.aln.Rows[p.J], span, e.missing)
	}
	return e.collect(span, mode, pairs, dists, valid)
}

// ParallelTable is Table with the pair loop split across goroutines; suited to the
// whole-alignment span where each pair covers many columns.
func (e *Engine) ParallelTable(span genotype.Span, mode Mode, sel Selector) Table {
	pairs := e.Pairs(mode, sel)
	dists := make([]float64, len(pairs))
	valid := make([]bool, len(pairs))

	if len(pairs) > 0 {
		parallel.Range(0, len(pairs), 0, func(low, high int) {
			for k := low; k < high; k++ {
				p := pairs[k]
				dists[k], valid[k] = Distance(e.aln.Rows[p.I], e.aln.Rows[p.J], span, e.missing)
			}
		})
	}
	return e.collect(span, mode, pairs, dists, valid)
}

func (e *Engine) collect(span genotype.Span, mode Mode, pairs []Pair, dists []float64, valid []bool) Table {
	t := Table{
		Span:    span,
		Mode:    mode,
		Records: make([]genotype.DistanceRecord, 0, len(pairs)),
	}
	for k, p := range pairs {
		if !valid[k] {
			t.Omitted++
			continue
		}
		a, b := e.labels[p.I], e.labels[p.J]
		t.Records = append(t.Records, genotype.DistanceRecord{
			Seq1:     a.ID,
			Seq2:     b.ID,
			Span:     span,
			Distance: dists[k],
			Category: genotype.Classify(a, b),
		})
	}
	return t
}

// Check returns ErrInvariant for any distance outside [0,1]
func (t Table) Check() error {
	for _, r := range t.Records {
		if err := genotype.CheckUnit("distance", r.Distance); err != nil {
			return err
		}
	}
	return nil
}
