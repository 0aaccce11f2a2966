package siamese

import "math"

// Adadelta implements the Adadelta update rule with a learning-rate factor,
// matching torch.optim.Adadelta.
type Adadelta struct {
	LR  float64
	Rho float64
	Eps float64

	squareAvg [][]float64
	accDelta  [][]float64
}

// NewAdadelta returns an optimizer with rho 0.9 and eps 1e-6.
func NewAdadelta(lr float64) *Adadelta {
	return &Adadelta{LR: lr, Rho: 0.9, Eps: 1e-6}
}

// Step updates params in place from grads. Both must keep the same layout
// across calls.
func (o *Adadelta) Step(params, grads [][]float64) {
	if o.squareAvg == nil {
		o.squareAvg = make([][]float64, len(params))
		o.accDelta = make([][]float64, len(params))
		for i, p := range params {
			o.squareAvg[i] = make([]float64, len(p))
			o.accDelta[i] = make([]float64, len(p))
		}
	}

	for i, p := range params {
		g := grads[i]
		sq := o.squareAvg[i]
		acc := o.accDelta[i]

		for j := range p {
			sq[j] = o.Rho*sq[j] + (1-o.Rho)*g[j]*g[j]
			delta := math.Sqrt(acc[j]+o.Eps) / math.Sqrt(sq[j]+o.Eps) * g[j]
			acc[j] = o.Rho*acc[j] + (1-o.Rho)*delta*delta
			p[j] -= o.LR * delta
		}
	}
}
