// Package stats implements the one-sided Wilcoxon–Mann–Whitney rank-sum test.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// exactLimit bounds the sample sizes for which the exact null distribution is used
const exactLimit = 50

// ErrDegenerate is returned when a sample has fewer than two observations
var ErrDegenerate = errors.New("sample too small for a rank test")

// RankSum holds the outcome of one test
type RankSum struct {
	W      float64 // Mann-Whitney statistic of x
	PValue float64
	Exact  bool
}

// MannWhitneyLess tests the alternative that x is stochastically smaller than y.
// Without ties and with both samples below 50 observations the exact null distribution
// is used, otherwise the normal approximation with tie and continuity correction.
func MannWhitneyLess(x, y []float64) (RankSum, error) {
	n1, n2 := len(x), len(y)
	if n1 < 2 || n2 < 2 {
		return RankSum{}, ErrDegenerate
	}

	ranks, tieTerm := rank(x, y)
	var rx float64
	for i := 0; i < n1; i++ {
		rx += ranks[i]
	}
	w := rx - float64(n1*(n1+1))/2

	if tieTerm == 0 && n1 < exactLimit && n2 < exactLimit {
		return RankSum{W: w, PValue: clamp(exactLower(int(math.Round(w)), n1, n2)), Exact: true}, nil
	}

	fn1, fn2 := float64(n1), float64(n2)
	n := fn1 + fn2
	sigma := math.Sqrt(fn1 * fn2 / 12 * ((n + 1) - tieTerm/(n*(n-1))))
	if sigma == 0 {
		return RankSum{W: w, PValue: 1}, nil
	}
	z := (w - fn1*fn2/2 + 0.5) / sigma
	return RankSum{W: w, PValue: clamp(distuv.UnitNormal.CDF(z))}, nil
}

// rank returns mid-ranks of x followed by y, and the tie term sum(t^3 - t)
func rank(x, y []float64) ([]float64, float64) {
	n := len(x) + len(y)
	values := make([]float64, 0, n)
	values = append(values, x...)
	values = append(values, y...)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, n)
	var tieTerm float64
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[order[j]] == values[order[i]] {
			j++
		}
		mid := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = mid
		}
		if t := float64(j - i); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}
	return ranks, tieTerm
}

// exactLower returns P(U <= w) under the null for samples of size m and n
func exactLower(w, m, n int) float64 {
	counts := ranksumCounts(m, n)
	if w < 0 {
		return 0
	}
	if w >= len(counts) {
		return 1
	}
	var below, total float64
	for u, c := range counts {
		total += c
		if u <= w {
			below += c
		}
	}
	return below / total
}

// ranksumCounts returns the number of arrangements of samples of m and n giving each
// value of U, built with the recurrence c(i,j,u) = c(i-1,j,u-j) + c(i,j-1,u).
func ranksumCounts(m, n int) []float64 {
	// prev[j] holds the counts for samples of i-1 and j
	prev := make([][]float64, n+1)
	for j := range prev {
		prev[j] = []float64{1}
	}
	for i := 1; i <= m; i++ {
		cur := make([][]float64, n+1)
		cur[0] = []float64{1}
		for j := 1; j <= n; j++ {
			c := make([]float64, i*j+1)
			for u, v := range prev[j] {
				c[u+j] += v
			}
			for u, v := range cur[j-1] {
				c[u] += v
			}
			cur[j] = c
		}
		prev = cur
	}
	return prev[n]
}

func clamp(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
