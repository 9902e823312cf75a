package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/config"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/output"
)

const base = "ACGTTGCAACACGTTGCAACACGTTGCAACACGTTGCAACACGTTGCAACACGTTGCAAC"

// mutate shifts every position accepted by at to the next nucleotide
func mutate(at func(i int) bool) string {
	next := map[byte]byte{'A': 'C', 'C': 'G', 'G': 'T', 'T': 'A'}
	b := []byte(base)
	for i := range b {
		if at(i) {
			b[i] = next[b[i]]
		}
	}
	return string(b)
}

func panel() (*genotype.Alignment, genotype.Metadata) {
	rows := []struct {
		id  string
		seq string
		g   int
		sub string
	}{
		{"g1a1", base, 1, "a"},
		{"g1a2", mutate(func(i int) bool { return i%10 == 0 }), 1, "a"},
		{"g1b1", mutate(func(i int) bool { return i%5 == 1 }), 1, "b"},
		{"g2a1", mutate(func(i int) bool { return i%2 == 0 }), 2, "a"},
		{"g2a2", mutate(func(i int) bool { return i%2 == 0 || i%10 == 3 }), 2, "a"},
		{"g3a1", mutate(func(i int) bool { return i%2 == 1 }), 3, "a"},
		{"g3a2", mutate(func(i int) bool { return i%2 == 1 || i%10 == 2 }), 3, "a"},
		{"q", mutate(func(i int) bool { return i%10 == 5 }), genotype.Unlabeled, ""},
	}

	aln := &genotype.Alignment{}
	meta := make(genotype.Metadata)
	for _, r := range rows {
		aln.IDs = append(aln.IDs, r.id)
		aln.Rows = append(aln.Rows, []byte(r.seq))
		meta[r.id] = genotype.Sequence{ID: r.id, Genotype: r.g, Subtype: r.sub}
	}
	// one gap column
	aln.Rows[4][0] = '-'
	return aln, meta
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Window.Length = 30
	cfg.Window.Step = 10
	cfg.Workers = 2
	cfg.Output.Dir = t.TempDir()
	cfg.Features = []config.Feature{{Name: "Core", Start: 0, End: 30}, {Name: "E1", Start: 30, End: 60}}
	return cfg
}

func TestRun(t *testing.T) {
	aln, meta := panel()
	r := NewRunner(testConfig(t), nil, nil, nil)

	res, err := r.Run(context.Background(), aln, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Windows) != 3 {
		t.Fatalf("windows = %v", res.Windows)
	}
	if res.References != 7 || res.Queries != 1 {
		t.Fatalf("references/queries = %d/%d", res.References, res.Queries)
	}
	if got := len(res.Distances.Records) + res.Distances.Omitted; got != 8*7/2 {
		t.Fatalf("whole-alignment pairs = %d", got)
	}
	if len(res.WindowDistances) != 3 {
		t.Fatalf("window tables = %d", len(res.WindowDistances))
	}

	// query is closest to genotype 1 in every window
	if len(res.Overlaps) != 3 || len(res.Calls) != 3 {
		t.Fatalf("overlaps/calls = %d/%d", len(res.Overlaps), len(res.Calls))
	}
	for i, c := range res.Calls {
		o := res.Overlaps[i]
		if c.NearestGroup != 1 || o.NearestGroup != 1 {
			t.Errorf("window %s: nearest = %d", c.Window, c.NearestGroup)
		}
		if o.Overlap < 0 || o.Overlap > 1 {
			t.Errorf("overlap out of range: %v", o.Overlap)
		}
		wantConfident := o.HasReference && o.Overlap < o.ReferenceOverlap
		if (c.Status == genotype.Confident) != wantConfident {
			t.Errorf("window %s: status %s for overlap %v vs %v", c.Window, c.Status, o.Overlap, o.ReferenceOverlap)
		}
	}
	if res.Calls[0].Feature != "Core" || res.Calls[2].Feature != "E1" {
		t.Fatalf("features = %q, %q", res.Calls[0].Feature, res.Calls[2].Feature)
	}

	// every genotype 1 distance is below every other distance: exact p = 1/C(5,2)
	if len(res.Significance) != 1 {
		t.Fatalf("significance = %+v", res.Significance)
	}
	sig := res.Significance[0]
	if sig.NearestGroup != 1 || !sig.Computable || math.Abs(sig.MaxP-0.1) > 1e-12 {
		t.Fatalf("significance = %+v", sig)
	}

	if len(res.Baselines) == 0 {
		t.Fatalf("no baselines")
	}
	// leaving g1a1 out keeps a single between-subtype pair in every window
	if res.Omissions.Degenerate < len(res.Windows) {
		t.Fatalf("degenerate omissions = %d", res.Omissions.Degenerate)
	}
	for _, b := range res.Baselines {
		if b.Overlap < 0 || b.Overlap > 1 {
			t.Fatalf("baseline out of range: %+v", b)
		}
		if b.Rule == genotype.LeaveSubtypeOut && !strings.HasPrefix(b.Representative, "g1") {
			t.Fatalf("leave-subtype-out for a genotype with one subtype: %+v", b)
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	aln, meta := panel()
	delete(meta, "q")
	r := NewRunner(testConfig(t), nil, nil, nil)
	if _, err := r.Run(context.Background(), aln, meta); !errors.Is(err, genotype.ErrMissingMetadata) {
		t.Fatalf("expected ErrMissingMetadata, got %v", err)
	}

	aln, meta = panel()
	aln.Rows[1] = aln.Rows[1][:10]
	if _, err := r.Run(context.Background(), aln, meta); !errors.Is(err, genotype.ErrUnequalLength) {
		t.Fatalf("expected ErrUnequalLength, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	aln, meta := panel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(testConfig(t), nil, nil, nil)
	if _, err := r.Run(ctx, aln, meta); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWrite(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Output.SQLite = filepath.Join(dir, "results.db")
	cfg.Output.Metrics = filepath.Join(dir, "run.prom")

	aln, meta := panel()
	r := NewRunner(cfg, nil, nil, nil)
	ctx := context.Background()
	res, err := r.Run(ctx, aln, meta)
	if err != nil {
		t.Fatal(err)
	}

	names, err := r.Write(ctx, res, RunInfo{Version: "test", Fingerprint: "abc", Sequences: aln.Size(), Columns: aln.Len()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 7 {
		t.Fatalf("tables = %v", names)
	}
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	m, err := output.ReadManifest(ctx, output.NewLocalStorage(cfg.Output.Dir))
	if err != nil {
		t.Fatal(err)
	}
	if m.Windows != 3 || m.Queries != 1 || m.Fingerprint != "abc" {
		t.Fatalf("manifest = %+v", m)
	}

	prom, err := os.ReadFile(cfg.Output.Metrics)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(prom, []byte("hcvsub_windows 3")) || !bytes.Contains(prom, []byte("hcvsub_omissions_total")) {
		t.Fatalf("unexpected metrics:\n%s", prom)
	}

	families, err := r.Metrics().Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	calls := 0.0
	for _, mf := range families {
		if mf.GetName() != "hcvsub_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			calls += m.GetCounter().GetValue()
		}
	}
	if int(calls) != len(res.Calls) {
		t.Fatalf("calls counter = %v, want %d", calls, len(res.Calls))
	}

	stored, err := output.ReadTable(ctx, output.NewLocalStorage(cfg.Output.Dir), output.CallsTable)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Rows) != len(res.Calls) || stored.Column("status") != 4 {
		t.Fatalf("stored calls = %+v", stored)
	}

	// the directory now holds a run
	if _, err := r.Write(ctx, res, RunInfo{}); !errors.Is(err, ErrResultsExist) {
		t.Fatalf("expected ErrResultsExist, got %v", err)
	}
	cfg.Output.Overwrite = true
	if _, err := r.CheckOutput(ctx); err != nil {
		t.Fatalf("overwrite refused: %v", err)
	}

	sink, err := output.OpenSQLite(cfg.Output.SQLite)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if n, err := sink.Count(ctx, 1, output.CallsTable); err != nil || n != len(res.Calls) {
		t.Fatalf("stored calls = %d, %v", n, err)
	}
}
