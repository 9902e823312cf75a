package overlap

import (
	"errors"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
)

// LabeledDistance is a distance to a reference of a known genotype
type LabeledDistance struct {
	Genotype int
	Distance float64
}

// NearestGroup returns the genotype with the smallest distance. When several genotypes
// share the minimum the lowest genotype label wins, so repeated runs agree.
func NearestGroup(dists []LabeledDistance) (int, bool) {
	best := -1
	bestDist := 0.0
	for _, d := range dists {
		if best < 0 || d.Distance < bestDist || (d.Distance == bestDist && d.Genotype < best) {
			best, bestDist = d.Genotype, d.Distance
		}
	}
	return best, best >= 0
}

// Partition splits distances into those to genotype g and those to every other genotype
func Partition(dists []LabeledDistance, g int) (near, rest []float64) {
	for _, d := range dists {
		if d.Genotype == g {
			near = append(near, d.Distance)
		} else {
			rest = append(rest, d.Distance)
		}
	}
	return near, rest
}

// QueryOverlap selects the nearest genotype and returns the overlap between distances to
// that genotype and distances to all others.
func (e *Estimator) QueryOverlap(dists []LabeledDistance) (int, float64, error) {
	nearest, ok := NearestGroup(dists)
	if !ok {
		return 0, 0, ErrEmptyDistribution
	}
	near, rest := Partition(dists, nearest)
	v, err := e.Overlap(near, rest)
	return nearest, v, err
}

// ReferenceOverlap is the overlap between between-genotype and between-subtype reference
// distances. Records touching exclude are skipped; pass "" to keep all.
func (e *Estimator) ReferenceOverlap(records []genotype.DistanceRecord, exclude string) (float64, error) {
	var genotypes, subtypes []float64
	for _, r := range records {
		if exclude != "" && (r.Seq1 == exclude || r.Seq2 == exclude) {
			continue
		}
		switch r.Category {
		case genotype.BetweenGenotype:
			genotypes = append(genotypes, r.Distance)
		case genotype.BetweenSubtype:
			subtypes = append(subtypes, r.Distance)
		}
	}
	return e.Overlap(genotypes, subtypes)
}

// Profile is the list of distances from one sequence to labeled references
type Profile struct {
	ID        string
	Distances []LabeledDistance
}

// QueryProfiles collects, for every query acting as seq1, its distances to references.
// Profiles are returned in order of first appearance.
func QueryProfiles(records []genotype.DistanceRecord, meta genotype.Metadata) []Profile {
	index := make(map[string]int)
	var profiles []Profile
	for _, r := range records {
		if r.Category != genotype.QueryVsReference {
			continue
		}
		partner, ok := meta[r.Seq2]
		if !ok || partner.IsQuery() {
			continue
		}
		i, seen := index[r.Seq1]
		if !seen {
			i = len(profiles)
			index[r.Seq1] = i
			profiles = append(profiles, Profile{ID: r.Seq1})
		}
		profiles[i].Distances = append(profiles[i].Distances, LabeledDistance{
			Genotype: partner.Genotype,
			Distance: r.Distance,
		})
	}
	return profiles
}

// WindowResult holds the query overlaps of one window and its reference baseline
type WindowResult struct {
	Window           genotype.Span
	ReferenceOverlap float64
	HasReference     bool
	Records          []genotype.OverlapRecord
	Omitted          int // overlaps dropped for an empty distribution
	Degenerate       int // overlaps dropped for a single-observation distribution
}

// omit counts err against r when it marks a missing overlap and reports whether it did
func (r *WindowResult) omit(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyDistribution):
		r.Omitted++
	case errors.Is(err, ErrDegenerate):
		r.Degenerate++
	default:
		return false
	}
	return true
}

// Window computes the reference overlap and every query overlap of one window
func (e *Estimator) Window(wt distance.WindowTable, meta genotype.Metadata) (WindowResult, error) {
	res := WindowResult{Window: wt.Window}

	ref, err := e.ReferenceOverlap(wt.Reference.Records, "")
	switch {
	case err == nil:
		res.ReferenceOverlap, res.HasReference = ref, true
	case !res.omit(err):
		return res, err
	}

	for _, p := range QueryProfiles(wt.Query.Records, meta) {
		nearest, v, err := e.QueryOverlap(p.Distances)
		if res.omit(err) {
			continue
		}
		if err != nil {
			return res, err
		}
		res.Records = append(res.Records, genotype.OverlapRecord{
			Query:            p.ID,
			Window:           wt.Window,
			NearestGroup:     nearest,
			Overlap:          v,
			ReferenceOverlap: res.ReferenceOverlap,
			HasReference:     res.HasReference,
		})
	}
	return res, nil
}
