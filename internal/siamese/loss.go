package siamese

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// probEps keeps predictions away from 0 and 1 inside the log terms.
const probEps = 1e-7

// pairLoss returns the mean binary cross-entropy between |cos(u_i, v_i)| and
// targets, the gradients with respect to u and v, and the raw predictions.
func pairLoss(u, v *mat.Dense, targets []float64) (float64, *mat.Dense, *mat.Dense, []float64) {
	rows, cols := u.Dims()
	du := mat.NewDense(rows, cols, nil)
	dv := mat.NewDense(rows, cols, nil)
	preds := make([]float64, rows)

	total := 0.0
	for i := range rows {
		ui := u.RawRowView(i)
		vi := v.RawRowView(i)

		dot, nu2, nv2 := 0.0, 0.0, 0.0
		for k := range ui {
			dot += ui[k] * vi[k]
			nu2 += ui[k] * ui[k]
			nv2 += vi[k] * vi[k]
		}

		nu, nv := math.Sqrt(nu2), math.Sqrt(nv2)
		denom := math.Max(nu*nv, cosineEps)
		cos := dot / denom
		preds[i] = math.Abs(cos)

		p := math.Min(math.Max(preds[i], probEps), 1-probEps)
		y := targets[i]
		total += -(y*math.Log(p) + (1-y)*math.Log(1-p))

		if nu*nv < cosineEps {
			continue
		}

		sign := 1.0
		if cos < 0 {
			sign = -1
		}

		g := sign * (p - y) / (p * (1 - p)) / float64(rows)

		dui := du.RawRowView(i)
		dvi := dv.RawRowView(i)
		for k := range ui {
			dui[k] = g * (vi[k]/denom - cos*ui[k]/nu2)
			dvi[k] = g * (ui[k]/denom - cos*vi[k]/nv2)
		}
	}

	return total / float64(rows), du, dv, preds
}
