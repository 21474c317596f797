package battery

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
)

// NeweyWest regresses the metric on a label-A dummy, y = alpha + beta*D,
// and returns beta with a Bartlett-kernel HAC standard error and a two-sided
// normal p-value. beta equals the permutation gap; the diagnostic is only
// reported next to it and never enters the BH family.
func NeweyWest(samples []inference.Sample, labelA term.Label, lags int) (*inference.HACResult, error) {
	l := split(samples, labelA)
	if err := l.check(); err != nil {
		return nil, err
	}
	n := len(l.values)
	if n < 3 {
		return nil, core.NewDomainError(core.ErrTooFewValues, "HAC regression needs 3 terms, got %d", n)
	}

	rows := make([]*mat.VecDense, n)
	x := mat.NewDense(n, 2, nil)
	for i, a := range l.isA {
		d := 0.0
		if a {
			d = 1
		}
		x.SetRow(i, []float64{1, d})
		rows[i] = mat.NewVecDense(2, []float64{1, d})
	}
	y := mat.NewVecDense(n, l.values)

	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, core.NewDomainError(core.ErrDomain, "singular design: %v", err)
	}
	var xty, coef mat.VecDense
	xty.MulVec(x.T(), y)
	coef.MulVec(&inv, &xty)
	alpha, beta := coef.AtVec(0), coef.AtVec(1)

	u := make([]float64, n)
	for i, v := range l.values {
		u[i] = v - alpha - beta*rows[i].AtVec(1)
	}

	maxLag := lags
	if maxLag < 0 {
		maxLag = 0
	}
	if maxLag > n-1 {
		maxLag = n - 1
	}

	meat := mat.NewDense(2, 2, nil)
	for t := 0; t < n; t++ {
		meat.RankOne(meat, u[t]*u[t], rows[t], rows[t])
	}
	for lag := 1; lag <= maxLag; lag++ {
		w := 1 - float64(lag)/float64(maxLag+1)
		for t := lag; t < n; t++ {
			scale := w * u[t] * u[t-lag]
			meat.RankOne(meat, scale, rows[t], rows[t-lag])
			meat.RankOne(meat, scale, rows[t-lag], rows[t])
		}
	}

	var tmp, cov mat.Dense
	tmp.Mul(&inv, meat)
	cov.Mul(&tmp, &inv)

	varBeta := cov.At(1, 1)
	if varBeta < 0 {
		if varBeta < -1e-12 {
			return nil, core.NewDomainError(core.ErrDomain, "negative HAC variance %g", varBeta)
		}
		varBeta = 0
	}
	res := &inference.HACResult{Beta: beta, StdErr: math.Sqrt(varBeta), Lags: maxLag, N: n, PValue: 1}
	if res.StdErr > 0 {
		z := beta / res.StdErr
		res.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	}
	return res, nil
}
