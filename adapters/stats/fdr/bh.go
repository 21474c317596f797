// Package fdr applies Benjamini-Hochberg correction across a declared metric
// family.
package fdr

import (
	"fmt"
	"math"
	"sort"

	"goregime/domain/core"
	"goregime/domain/inference"
)

// Corrector computes BH q-values. It runs once per inference run, over the
// exact declared family: a q-value computed on any other set of metrics
// belongs to a different run.
type Corrector struct{}

// NewCorrector creates a BH corrector
func NewCorrector() *Corrector {
	return &Corrector{}
}

// Correct returns one result per family member, in declared order. pvalues
// must hold exactly the family's ids; anything else is a fatal family
// inconsistency. Equal p-values keep declared order when ranked.
func (c *Corrector) Correct(family []core.MetricID, pvalues map[core.MetricID]float64) ([]inference.QValueResult, error) {
	if err := checkFamily(family, pvalues); err != nil {
		return nil, err
	}
	m := len(family)
	if m == 0 {
		return nil, nil
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pvalues[family[order[a]]] < pvalues[family[order[b]]]
	})

	// running minimum from the largest rank down
	q := make([]float64, m)
	running := 1.0
	for r := m - 1; r >= 0; r-- {
		p := pvalues[family[order[r]]]
		v := p * float64(m) / float64(r+1)
		if v < running {
			running = v
		}
		q[r] = running
	}

	out := make([]inference.QValueResult, m)
	for r, i := range order {
		id := family[i]
		out[i] = inference.QValueResult{
			MetricID:   id,
			PValue:     pvalues[id],
			QValue:     q[r],
			Rank:       r + 1,
			FamilySize: m,
		}
	}
	return out, nil
}

func checkFamily(family []core.MetricID, pvalues map[core.MetricID]float64) error {
	seen := make(map[core.MetricID]bool, len(family))
	for _, id := range family {
		if seen[id] {
			return fmt.Errorf("%w: %q declared twice", core.ErrFamilyInconsistent, id)
		}
		seen[id] = true
		p, ok := pvalues[id]
		if !ok {
			return fmt.Errorf("%w: no p-value for %q", core.ErrFamilyInconsistent, id)
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: p-value %g for %q", core.ErrFamilyInconsistent, p, id)
		}
	}
	for id := range pvalues {
		if !seen[id] {
			return fmt.Errorf("%w: %q is not in the declared family", core.ErrFamilyInconsistent, id)
		}
	}
	return nil
}
