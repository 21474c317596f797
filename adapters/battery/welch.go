package battery

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
)

// WelchTest compares the label means with unequal variances. The statistic
// is signed like the gap (A minus B) and the p-value is two-sided against a
// Student t with Welch-Satterthwaite degrees of freedom. It is a parametric
// reference only.
func WelchTest(samples []inference.Sample, labelA term.Label) (*inference.WelchResult, error) {
	l := split(samples, labelA)
	if err := l.check(); err != nil {
		return nil, err
	}
	var a, b stats.Float64Data
	for i, v := range l.values {
		if l.isA[i] {
			a = append(a, v)
		} else {
			b = append(b, v)
		}
	}
	if a.Len() < 2 || b.Len() < 2 {
		return nil, core.NewDomainError(core.ErrTooFewValues, "welch test needs 2 terms per label, got %d and %d", a.Len(), b.Len())
	}

	n1, n2 := float64(a.Len()), float64(b.Len())
	mean1, _ := a.Mean()
	mean2, _ := b.Mean()
	var1, _ := a.SampleVariance()
	var2, _ := b.SampleVariance()

	se2 := var1/n1 + var2/n2
	if se2 == 0 {
		return nil, core.NewDomainError(core.ErrDomain, "welch test: both labels are constant")
	}
	t := (mean1 - mean2) / math.Sqrt(se2)
	df := se2 * se2 / ((var1/n1)*(var1/n1)/(n1-1) + (var2/n2)*(var2/n2)/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	res := &inference.WelchResult{
		T:      t,
		DF:     df,
		PValue: math.Min(1, 2*dist.Survival(math.Abs(t))),
	}
	if pooled := ((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2); pooled > 0 {
		d := (mean1 - mean2) / math.Sqrt(pooled)
		res.CohensD = &d
	}
	return res, nil
}
