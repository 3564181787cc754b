package calibration

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// thinPlateBasis is the classic TPS radial basis function phi(r) = r^2
// ln(r), with phi(0) = 0.
func thinPlateBasis(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// fit solves the thin-plate-spline system for both output axes: an
// (n+3)x(n+3) matrix combining the radial basis terms with an affine
// (1, x, y) term, shared between the X and Y right-hand sides. Grounded
// on the RBFInterpolator fit in original_source/balor/Cal.py, re-expressed
// as an explicit linear solve via gonum/mat rather than scipy's
// RBFInterpolator class.
func (c *Cal) fit() error {
	n := len(c.samples)
	size := n + 3

	a := mat.NewDense(size, size, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dx := c.samples[i].mmX - c.samples[j].mmX
			dy := c.samples[i].mmY - c.samples[j].mmY
			r := math.Hypot(dx, dy)
			a.Set(i, j, thinPlateBasis(r))
		}
		a.Set(i, n, 1)
		a.Set(i, n+1, c.samples[i].mmX)
		a.Set(i, n+2, c.samples[i].mmY)
		a.Set(n, i, 1)
		a.Set(n+1, i, c.samples[i].mmX)
		a.Set(n+2, i, c.samples[i].mmY)
	}

	bx := mat.NewVecDense(size, nil)
	by := mat.NewVecDense(size, nil)
	for i := 0; i < n; i++ {
		bx.SetVec(i, float64(c.samples[i].galvoX))
		by.SetVec(i, float64(c.samples[i].galvoY))
	}

	var lu mat.LU
	lu.Factorize(a)

	var wx, wy mat.VecDense
	if err := lu.SolveVecTo(&wx, false, bx); err != nil {
		return err
	}
	if err := lu.SolveVecTo(&wy, false, by); err != nil {
		return err
	}
	c.wx = &wx
	c.wy = &wy
	return nil
}

// evaluate returns the fitted (galvoX, galvoY) for a host-space point,
// unrounded.
func (c *Cal) evaluate(xmm, ymm float64) (float64, float64) {
	n := len(c.samples)
	var sumX, sumY float64
	for i, s := range c.samples {
		r := math.Hypot(xmm-s.mmX, ymm-s.mmY)
		phi := thinPlateBasis(r)
		sumX += c.wx.AtVec(i) * phi
		sumY += c.wy.AtVec(i) * phi
	}
	sumX += c.wx.AtVec(n) + c.wx.AtVec(n+1)*xmm + c.wx.AtVec(n+2)*ymm
	sumY += c.wy.AtVec(n) + c.wy.AtVec(n+1)*xmm + c.wy.AtVec(n+2)*ymm
	return sumX, sumY
}
