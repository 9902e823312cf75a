package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// Table file names, before any compression suffix
const (
	DistancesTable        = "distances.tsv"
	WindowDistancesTable  = "window_distances.tsv"
	OverlapsTable         = "overlaps.tsv"
	BaselinesTable        = "baselines.tsv"
	CallsTable            = "calls.tsv"
	SignificanceTable     = "significance.tsv"
	SignificanceTestTable = "significance_tests.tsv"
	ManifestFile          = "run.json"
)

// NA marks an undefined value in a table cell
const NA = "NA"

// Table is a header plus string rows
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Encode renders the table as tab separated text
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

// TableWriter stores tables, compressing them when a compressor is set
type TableWriter struct {
	store      Storage
	compressor *Compressor
}

// NewTableWriter creates a writer. compression is "none" or "zstd".
func NewTableWriter(store Storage, compression string) (*TableWriter, error) {
	w := &TableWriter{store: store}
	switch compression {
	case "", CompressionNone:
	case CompressionZstd:
		c, err := NewCompressor()
		if err != nil {
			return nil, err
		}
		w.compressor = c
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	return w, nil
}

// Write encodes and stores a table, returning the stored file name
func (w *TableWriter) Write(ctx context.Context, t *Table) (string, error) {
	data, err := t.Encode()
	if err != nil {
		return "", err
	}
	name := t.Name
	if w.compressor != nil {
		data = w.compressor.Compress(data)
		name += w.compressor.Extension()
	}
	if err := w.store.WriteFile(ctx, name, data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}

// ReadTable loads a stored table, decompressing names that carry the zstd extension
func ReadTable(ctx context.Context, store Storage, name string) (*Table, error) {
	data, err := store.ReadFile(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if strings.HasSuffix(name, zstdExtension) {
		c, err := NewCompressor()
		if err != nil {
			return nil, err
		}
		defer c.Close()
		if data, err = c.Decompress(data); err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	t := &Table{Name: strings.TrimSuffix(name, zstdExtension)}
	if len(rows) > 0 {
		t.Header, t.Rows = rows[0], rows[1:]
	}
	return t, nil
}

// Column returns the index of a header column, or -1
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Close releases the compressor
func (w *TableWriter) Close() error {
	if w.compressor == nil {
		return nil
	}
	return w.compressor.Close()
}

// --- record conversions ---

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DistanceTable lists pairwise distances
func DistanceTable(name string, records []genotype.DistanceRecord) *Table {
	t := &Table{
		Name:   name,
		Header: []string{"seq1", "seq2", "start", "end", "distance", "category"},
		Rows:   make([][]string, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Seq1, r.Seq2,
			strconv.Itoa(r.Span.Start), strconv.Itoa(r.Span.End),
			formatFloat(r.Distance), r.Category.String(),
		})
	}
	return t
}

// OverlapTable lists per-window query overlaps next to the reference overlap
func OverlapTable(records []genotype.OverlapRecord) *Table {
	t := &Table{
		Name:   OverlapsTable,
		Header: []string{"query", "start", "end", "nearest_genotype", "overlap", "reference_overlap", "feature"},
		Rows:   make([][]string, 0, len(records)),
	}
	for _, r := range records {
		ref := NA
		if r.HasReference {
			ref = formatFloat(r.ReferenceOverlap)
		}
		t.Rows = append(t.Rows, []string{
			r.Query,
			strconv.Itoa(r.Window.Start), strconv.Itoa(r.Window.End),
			strconv.Itoa(r.NearestGroup), formatFloat(r.Overlap), ref, r.Feature,
		})
	}
	return t
}

// BaselineTable lists resampled reference overlaps
func BaselineTable(records []genotype.BaselineRecord) *Table {
	t := &Table{
		Name:   BaselinesTable,
		Header: []string{"rule", "representative", "start", "end", "overlap"},
		Rows:   make([][]string, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			string(r.Rule), r.Representative,
			strconv.Itoa(r.Window.Start), strconv.Itoa(r.Window.End),
			formatFloat(r.Overlap),
		})
	}
	return t
}

// CallTable lists per-window classification calls
func CallTable(calls []genotype.ClassificationCall) *Table {
	t := &Table{
		Name:   CallsTable,
		Header: []string{"query", "start", "end", "nearest_genotype", "status", "assigned", "feature"},
		Rows:   make([][]string, 0, len(calls)),
	}
	for _, c := range calls {
		t.Rows = append(t.Rows, []string{
			c.Query,
			strconv.Itoa(c.Window.Start), strconv.Itoa(c.Window.End),
			strconv.Itoa(c.NearestGroup), string(c.Status), c.Assigned(), c.Feature,
		})
	}
	return t
}

// SignificanceTables returns the per-query summary and the per-genotype tests
func SignificanceTables(records []genotype.SignificanceRecord) (summary, tests *Table) {
	summary = &Table{
		Name:   SignificanceTable,
		Header: []string{"query", "nearest_genotype", "max_p", "computable"},
	}
	tests = &Table{
		Name:   SignificanceTestTable,
		Header: []string{"query", "nearest_genotype", "genotype", "p_value"},
	}
	for _, r := range records {
		// max over the tests that ran; computable tells whether all of them did
		maxP := NA
		for _, gt := range r.Tests {
			if gt.Computable {
				maxP = formatFloat(r.MaxP)
				break
			}
		}
		summary.Rows = append(summary.Rows, []string{
			r.Query, strconv.Itoa(r.NearestGroup), maxP, strconv.FormatBool(r.Computable),
		})
		for _, gt := range r.Tests {
			p := NA
			if gt.Computable {
				p = formatFloat(gt.PValue)
			}
			tests.Rows = append(tests.Rows, []string{
				r.Query, strconv.Itoa(r.NearestGroup), strconv.Itoa(gt.Genotype), p,
			})
		}
	}
	return summary, tests
}
