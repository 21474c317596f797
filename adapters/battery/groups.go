package battery

import (
	"github.com/montanaflynn/stats"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
)

// labeled is the non-missing part of a sample set, in input order.
type labeled struct {
	values []float64
	isA    []bool
	years  []int
	nA     int
}

func (l labeled) nB() int {
	return len(l.values) - l.nA
}

// split drops missing samples. Missing values are excluded from both the
// observed and the permuted statistics, never imputed.
func split(samples []inference.Sample, labelA term.Label) labeled {
	var l labeled
	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		a := s.Label == labelA
		l.values = append(l.values, *s.Value)
		l.isA = append(l.isA, a)
		l.years = append(l.years, s.Start.Year())
		if a {
			l.nA++
		}
	}
	return l
}

func (l labeled) check() error {
	if l.nA == 0 || l.nB() == 0 {
		return core.ErrInsufficientGroups
	}
	return nil
}

// gap is mean(A) - mean(B). Accumulation runs in index order so the result
// does not depend on how the labels were produced.
func gap(values []float64, isA []bool) float64 {
	var sumA, sumB float64
	var nA, nB int
	for i, v := range values {
		if isA[i] {
			sumA += v
			nA++
		} else {
			sumB += v
			nB++
		}
	}
	return sumA/float64(nA) - sumB/float64(nB)
}

// Summarize reports n, mean and median per label, A first. A label with no
// values gets a zero summary.
func Summarize(samples []inference.Sample, labelA, labelB term.Label) []inference.GroupSummary {
	l := split(samples, labelA)
	var a, b stats.Float64Data
	for i, v := range l.values {
		if l.isA[i] {
			a = append(a, v)
		} else {
			b = append(b, v)
		}
	}
	return []inference.GroupSummary{summary(labelA, a), summary(labelB, b)}
}

func summary(label term.Label, xs stats.Float64Data) inference.GroupSummary {
	g := inference.GroupSummary{Label: label, N: xs.Len()}
	if g.N == 0 {
		return g
	}
	g.Mean, _ = xs.Mean()
	g.Median, _ = xs.Median()
	return g
}
