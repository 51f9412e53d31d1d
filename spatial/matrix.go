package spatial

import "gonum.org/v1/gonum/mat"

func eye(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}

func ones(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

func column(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, append([]float64(nil), values...))
}

func row(values []float64) *mat.Dense {
	return mat.NewDense(1, len(values), append([]float64(nil), values...))
}

// kronEye returns I_n ⊗ m, the block-diagonal matrix with n copies of m.
func kronEye(n int, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(eye(n), m)
	return &out
}

// kronOnes returns 1_n ⊗ m, n copies of m stacked vertically.
func kronOnes(n int, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Kronecker(ones(n, 1), m)
	return &out
}
