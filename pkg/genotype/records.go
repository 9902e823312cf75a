package genotype

import "strconv"

// DistanceRecord is one defined pairwise distance over a span
type DistanceRecord struct {
	Seq1     string       `json:"seq1"`
	Seq2     string       `json:"seq2"`
	Span     Span         `json:"span"`
	Distance float64      `json:"distance"`
	Category PairCategory `json:"category"`
}

// OverlapRecord is the overlap of one query in one window together with the window's
// reference baseline.
type OverlapRecord struct {
	Query            string  `json:"query"`
	Window           Span    `json:"window"`
	NearestGroup     int     `json:"nearest_group"`
	Overlap          float64 `json:"overlap"`
	ReferenceOverlap float64 `json:"reference_overlap"`
	HasReference     bool    `json:"has_reference"`
	Feature          string  `json:"feature,omitempty"`
}

// ResampleRule names a baseline exclusion rule
type ResampleRule string

const (
	LeaveOneOut      ResampleRule = "leave-one-out"
	LeaveGenotypeOut ResampleRule = "leave-genotype-out"
	LeaveSubtypeOut  ResampleRule = "leave-subtype-out"
)

// BaselineRecord is an overlap computed among references under a resampling rule
type BaselineRecord struct {
	Rule           ResampleRule `json:"rule"`
	Representative string       `json:"representative"`
	Window         Span         `json:"window"`
	Overlap        float64      `json:"overlap"`
}

// CallStatus is the confidence of a window genotype assignment
type CallStatus string

const (
	Confident CallStatus = "confident"
	Uncertain CallStatus = "uncertain"
)

// ClassificationCall is the genotype call of one query in one window
type ClassificationCall struct {
	Query        string     `json:"query"`
	Window       Span       `json:"window"`
	NearestGroup int        `json:"nearest_group"`
	Status       CallStatus `json:"status"`
	Feature      string     `json:"feature,omitempty"`
}

// Assigned returns the called genotype, or "uncertain"
func (c ClassificationCall) Assigned() string {
	if c.Status != Confident {
		return string(Uncertain)
	}
	return strconv.Itoa(c.NearestGroup)
}

// GenotypeTest is one rank test of the nearest genotype against another genotype
type GenotypeTest struct {
	Genotype   int     `json:"genotype"`
	PValue     float64 `json:"p_value"`
	Computable bool    `json:"computable"`
}

// SignificanceRecord summarizes whole-alignment distinguishability of one query
type SignificanceRecord struct {
	Query        string         `json:"query"`
	NearestGroup int            `json:"nearest_group"`
	Tests        []GenotypeTest `json:"tests"`
	MaxP         float64        `json:"max_p"`
	Computable   bool           `json:"computable"`
}
