package overlap

import (
	"errors"
	"math"
	"testing"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

func TestOverlapIdentical(t *testing.T) {
	e := Default()
	for _, d := range [][]float64{
		{0.1, 0.1},
		{0.05, 0.1, 0.12, 0.3},
		{0, 0, 1},
	} {
		v, err := e.Overlap(d, d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(v-1) > 1e-9 {
			t.Fatalf("overlap(%v, itself) = %v, want 1", d, v)
		}
	}
}

func TestOverlapDisjoint(t *testing.T) {
	e := Default()
	v, err := e.Overlap([]float64{0.1, 0.12, 0.11}, []float64{0.6, 0.65})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("disjoint overlap = %v, want 0", v)
	}
}

func TestOverlapBoundedAndSymmetric(t *testing.T) {
	e := Default()
	a := []float64{0.1, 0.15, 0.2, 0.22}
	b := []float64{0.18, 0.21, 0.3}

	ab, err := e.Overlap(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, _ := e.Overlap(b, a)
	if ab != ba {
		t.Fatalf("asymmetric overlap %v vs %v", ab, ba)
	}
	if ab <= 0 || ab >= 1 {
		t.Fatalf("partial overlap %v should lie strictly inside (0,1)", ab)
	}
}

func TestOverlapEmpty(t *testing.T) {
	e := Default()
	if _, err := e.Overlap(nil, []float64{0.1}); !errors.Is(err, ErrEmptyDistribution) {
		t.Fatalf("expected ErrEmptyDistribution, got %v", err)
	}
}

func TestOverlapSingleObservation(t *testing.T) {
	e := Default()
	if _, err := e.Overlap([]float64{0.10}, []float64{0.11, 0.30, 0.31}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	if _, err := e.Overlap([]float64{0.11, 0.30}, []float64{0.10}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	if _, err := e.Density([]float64{0.2}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate from Density, got %v", err)
	}

	// one reference of the nearest genotype
	nearest, _, err := e.QueryOverlap([]LabeledDistance{
		{Genotype: 1, Distance: 0.10},
		{Genotype: 2, Distance: 0.105},
		{Genotype: 2, Distance: 0.4},
	})
	if nearest != 1 || !errors.Is(err, ErrDegenerate) {
		t.Fatalf("QueryOverlap = %d, %v; want 1, ErrDegenerate", nearest, err)
	}
}

func TestWindowSkipsSingleReferenceGenotype(t *testing.T) {
	aln := &genotype.Alignment{
		IDs: []string{"g1", "g2a", "g2b", "q"},
		Rows: [][]byte{
			[]byte("AAAAAAAAAA"),
			[]byte("CCCCCAAAAA"),
			[]byte("CCCCCCAAAA"),
			[]byte("AAAAAAAAAC"),
		},
	}
	meta := genotype.Metadata{
		"g1":  {Genotype: 1, Subtype: "a"},
		"g2a": {Genotype: 2, Subtype: "a"},
		"g2b": {Genotype: 2, Subtype: "b"},
		"q":   {},
	}
	eng := distance.NewEngine(aln, meta, nil)

	res, err := Default().Window(eng.ScanWindow(aln.Full()), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no overlap record, got %+v", res.Records)
	}
	// the query overlap and the reference overlap (one between-subtype pair)
	if res.Degenerate != 2 || res.HasReference {
		t.Fatalf("degenerate = %d, has reference = %v", res.Degenerate, res.HasReference)
	}
}

func TestNewEstimatorRejectsNarrowBandwidth(t *testing.T) {
	if _, err := NewEstimator(0.001, 512); !errors.Is(err, ErrEstimator) {
		t.Fatalf("expected ErrEstimator, got %v", err)
	}
	if _, err := NewEstimator(0.05, 1); !errors.Is(err, ErrEstimator) {
		t.Fatalf("expected ErrEstimator, got %v", err)
	}
}

func TestNearestGroupTieBreak(t *testing.T) {
	dists := []LabeledDistance{
		{Genotype: 2, Distance: 0.1},
		{Genotype: 3, Distance: 0.4},
		{Genotype: 1, Distance: 0.1},
		{Genotype: 2, Distance: 0.3},
	}
	for run := 0; run < 20; run++ {
		g, ok := NearestGroup(dists)
		if !ok || g != 1 {
			t.Fatalf("run %d: nearest = %d, want 1", run, g)
		}
	}

	if _, ok := NearestGroup(nil); ok {
		t.Fatalf("expected no nearest group for empty input")
	}
}

func TestQueryOverlapTieInWindow(t *testing.T) {
	// query1 is equally far from the genotype 1 and genotype 2 references
	aln := &genotype.Alignment{
		IDs: []string{"g2", "g1", "g2.2", "g1.2", "query1"},
		Rows: [][]byte{
			[]byte("ACGTACGTAA"),
			[]byte("ACGTACGTCC"),
			[]byte("ACGTACGTAA"),
			[]byte("ACGTACGTCC"),
			[]byte("ACGTACGTAC"),
		},
	}
	meta := genotype.Metadata{
		"g2":     {Genotype: 2, Subtype: "a"},
		"g1":     {Genotype: 1, Subtype: "a"},
		"g2.2":   {Genotype: 2, Subtype: "a"},
		"g1.2":   {Genotype: 1, Subtype: "a"},
		"query1": {},
	}
	eng := distance.NewEngine(aln, meta, nil)
	e := Default()

	for run := 0; run < 10; run++ {
		wt := eng.ScanWindow(aln.Full())
		res, err := e.Window(wt, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Records) != 1 {
			t.Fatalf("expected one overlap record, got %d", len(res.Records))
		}
		if res.Records[0].NearestGroup != 1 {
			t.Fatalf("run %d: nearest group = %d, want 1", run, res.Records[0].NearestGroup)
		}
	}
}

func TestReferenceOverlapExclusion(t *testing.T) {
	e := Default()
	records := []genotype.DistanceRecord{
		{Seq1: "a", Seq2: "b", Distance: 0.3, Category: genotype.BetweenGenotype},
		{Seq1: "a", Seq2: "c", Distance: 0.1, Category: genotype.BetweenSubtype},
		{Seq1: "b", Seq2: "d", Distance: 0.32, Category: genotype.BetweenGenotype},
		{Seq1: "a", Seq2: "e", Distance: 0.11, Category: genotype.BetweenSubtype},
		{Seq1: "b", Seq2: "e", Distance: 0.34, Category: genotype.BetweenGenotype},
		{Seq1: "c", Seq2: "d", Distance: 0.12, Category: genotype.WithinSubtype},
	}

	if v, err := e.ReferenceOverlap(records, ""); err != nil || v != 0 {
		t.Fatalf("ReferenceOverlap = %v, %v", v, err)
	}
	// dropping a leaves no between-subtype distance
	if _, err := e.ReferenceOverlap(records, "a"); !errors.Is(err, ErrEmptyDistribution) {
		t.Fatalf("expected ErrEmptyDistribution, got %v", err)
	}
}

func TestQueryProfilesUseQueryAsSeq1(t *testing.T) {
	meta := genotype.Metadata{"q": {}, "r1": {Genotype: 1}, "r2": {Genotype: 2}}
	records := []genotype.DistanceRecord{
		{Seq1: "q", Seq2: "r1", Distance: 0.1, Category: genotype.QueryVsReference},
		{Seq1: "r1", Seq2: "q", Distance: 0.1, Category: genotype.QueryVsReference},
		{Seq1: "q", Seq2: "r2", Distance: 0.2, Category: genotype.QueryVsReference},
	}
	profiles := QueryProfiles(records, meta)
	if len(profiles) != 1 || profiles[0].ID != "q" || len(profiles[0].Distances) != 2 {
		t.Fatalf("unexpected profiles %+v", profiles)
	}
}
