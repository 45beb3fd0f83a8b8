package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScanFit fits the scan-class model of spec §4.5: y = a*x, no intercept,
// with a constant-function fallback when the data look constant.
func ScanFit(x, y []float64) (coefficient, intercept float64) {
	sumX, sumY := sum(x), sum(y)
	if 250*sumY < sumX {
		return round5(0), round5(stat.Mean(y, nil))
	}
	if sumX == 0 {
		return 0, round5(stat.Mean(y, nil))
	}
	return round5(sumY / sumX), 0
}

// GatherFit is ScanFit without the constant-function branch.
func GatherFit(x, y []float64) (coefficient, intercept float64) {
	sumX, sumY := sum(x), sum(y)
	if sumX == 0 {
		return 0, round5(stat.Mean(y, nil))
	}
	return round5(sumY / sumX), 0
}

// NestedLoopFit fits the single-coefficient multiplicative model
// y ~= c*(xo*xi) for nested-loop-class operators.
func NestedLoopFit(xOuter, xInner, y []float64) (coefficient float64) {
	var num, den float64
	for i := range y {
		p := xOuter[i] * xInner[i]
		num += p * y[i]
		den += p * p
	}
	if den == 0 {
		return 1.0
	}
	return num / den
}

// HashMergeJoinResult is the winning model for a hash/merge-join node.
type HashMergeJoinResult struct {
	CoefficientOuter float64
	CoefficientInner float64
	Intercept        float64
}

// HashMergeJoinFit selects, by RMSE, the best of three linear-regression
// variants (spec §4.5): a two-variable fit with a synthetic zero-bias
// constraint point, and two single-variable fits (outer-only, inner-only),
// each refit without the synthetic point if it drives a coefficient
// negative.
func HashMergeJoinFit(xOuter, xInner, y []float64) HashMergeJoinResult {
	multiA, multiB, multiC, multiRMSE := fitTwoVar(xOuter, xInner, y)
	singleOuterA, singleOuterC, singleOuterRMSE := fitOneVar(xOuter, y)
	singleInnerA, singleInnerC, singleInnerRMSE := fitOneVar(xInner, y)

	best := multiRMSE
	result := HashMergeJoinResult{CoefficientOuter: multiA, CoefficientInner: multiB, Intercept: multiC}
	if singleOuterRMSE < best {
		best = singleOuterRMSE
		result = HashMergeJoinResult{CoefficientOuter: singleOuterA, CoefficientInner: 0, Intercept: singleOuterC}
	}
	if singleInnerRMSE < best {
		result = HashMergeJoinResult{CoefficientOuter: 0, CoefficientInner: singleInnerA, Intercept: singleInnerC}
	}
	return result
}

// fitTwoVar fits y = a*xo + b*xi + c with a synthetic (0,0,0) constraint
// point; if either coefficient comes out negative, refits without it.
func fitTwoVar(xo, xi, y []float64) (a, b, c, rmse float64) {
	beta, err := solveLeastSquares(design2(xo, xi, true), augment(y, true))
	if err == nil && beta[0] >= 0 && beta[1] >= 0 {
		a, b, c = beta[0], beta[1], beta[2]
	} else {
		beta, err = solveLeastSquares(design2(xo, xi, false), y)
		if err != nil {
			return 0, 0, stat.Mean(y, nil), math.Inf(1)
		}
		a, b, c = beta[0], beta[1], beta[2]
	}
	pred := make([]float64, len(y))
	for i := range y {
		pred[i] = a*xo[i] + b*xi[i] + c
	}
	return a, b, c, rootMeanSquaredError(pred, y)
}

// fitOneVar fits y = a*x + c with the same zero-bias/refit-on-negative logic.
func fitOneVar(x, y []float64) (a, c, rmse float64) {
	beta, err := solveLeastSquares(design1(x, true), augment(y, true))
	if err == nil && beta[0] >= 0 {
		a, c = beta[0], beta[1]
	} else {
		beta, err = solveLeastSquares(design1(x, false), y)
		if err != nil {
			return 0, stat.Mean(y, nil), math.Inf(1)
		}
		a, c = beta[0], beta[1]
	}
	pred := make([]float64, len(y))
	for i := range y {
		pred[i] = a*x[i] + c
	}
	return a, c, rootMeanSquaredError(pred, y)
}

func design2(xo, xi []float64, withZeroPoint bool) *mat.Dense {
	n := len(xo)
	rows := n
	if withZeroPoint {
		rows++
	}
	d := mat.NewDense(rows, 3, nil)
	for i := 0; i < n; i++ {
		d.SetRow(i, []float64{xo[i], xi[i], 1})
	}
	if withZeroPoint {
		d.SetRow(n, []float64{0, 0, 1})
	}
	return d
}

func design1(x []float64, withZeroPoint bool) *mat.Dense {
	n := len(x)
	rows := n
	if withZeroPoint {
		rows++
	}
	d := mat.NewDense(rows, 2, nil)
	for i := 0; i < n; i++ {
		d.SetRow(i, []float64{x[i], 1})
	}
	if withZeroPoint {
		d.SetRow(n, []float64{0, 1})
	}
	return d
}

func augment(y []float64, withZeroPoint bool) []float64 {
	if !withZeroPoint {
		return y
	}
	out := make([]float64, len(y)+1)
	copy(out, y)
	out[len(y)] = 0
	return out
}

func solveLeastSquares(a *mat.Dense, y []float64) ([]float64, error) {
	rows, _ := a.Dims()
	b := mat.NewDense(rows, 1, y)
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	beta := make([]float64, r)
	for i := 0; i < r; i++ {
		beta[i] = x.At(i, 0)
	}
	return beta, nil
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func rootMeanSquaredError(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var ss float64
	for i := range pred {
		d := pred[i] - actual[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(pred)))
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
