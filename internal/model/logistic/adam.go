package logistic

import "math"

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam holds the first and second moment estimates for one parameter vector.
type adam struct {
	lr   float64
	m, v []float64
	t    int
}

func newAdam(lr float64, n int) *adam {
	return &adam{lr: lr, m: make([]float64, n), v: make([]float64, n)}
}

// step updates params in place from grad.
func (a *adam) step(params, grad []float64) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = adamBeta1*a.m[i] + (1-adamBeta1)*g
		a.v[i] = adamBeta2*a.v[i] + (1-adamBeta2)*g*g
		params[i] -= a.lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + adamEpsilon)
	}
}
