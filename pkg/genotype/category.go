package genotype

import "fmt"

// PairCategory labels a sequence pair by how the two labels relate
type PairCategory uint8

const (
	WithinSubtype PairCategory = iota + 1
	BetweenSubtype
	BetweenGenotype
	SameGenotypeUnknownSubtype
	QueryVsReference
	QueryVsQuery
)

var categoryNames = map[PairCategory]string{
	WithinSubtype:              "within-subtype",
	BetweenSubtype:             "between-subtype",
	BetweenGenotype:            "between-genotype",
	SameGenotypeUnknownSubtype: "same-genotype-unknown-subtype",
	QueryVsReference:           "query-vs-reference",
	QueryVsQuery:               "query-vs-query",
}

func (c PairCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory is the inverse of PairCategory.String
func ParseCategory(s string) (PairCategory, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown pair category %q", s)
}

// Classify assigns the category of a pair. Every pair of labels maps to exactly one
// category; the checks run in precedence order.
func Classify(a, b Sequence) PairCategory {
	switch {
	case a.IsQuery() && b.IsQuery():
		return QueryVsQuery
	case a.IsQuery() || b.IsQuery():
		return QueryVsReference
	case a.Genotype != b.Genotype:
		return BetweenGenotype
	case a.Subtype == "" || b.Subtype == "":
		return SameGenotypeUnknownSubtype
	case a.Subtype == b.Subtype:
		return WithinSubtype
	default:
		return BetweenSubtype
	}
}
