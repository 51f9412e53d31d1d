package symbol

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape reports a shape mismatch found while evaluating an expression.
	ErrShape = errors.New("symbol: shape mismatch")
	// ErrNotDiscretised reports a node that has no numeric value until it is
	// discretised or substituted.
	ErrNotDiscretised = errors.New("symbol: not discretised")
)

// Env supplies the values that leaves read during evaluation.
type Env struct {
	T        float64
	Y        []float64
	YDot     []float64
	Inputs   map[string]float64
	External map[string][]float64

	// ShapeTest replaces every unknown (parameters, state, inputs, external
	// variables) with NaN of the right size.
	ShapeTest bool
	// InputsForShape replaces only input parameters with NaN.
	InputsForShape bool
}

// Evaluate computes the value of e as a dense matrix. A nil env is treated as
// an empty one.
func Evaluate(e Expr, env *Env) (*mat.Dense, error) {
	if env == nil {
		env = &Env{}
	}
	return e.evaluate(env)
}

// Shape evaluates e in shape-test mode and returns the dimensions of the
// result.
func Shape(e Expr) (rows, cols int, err error) {
	v, err := e.evaluate(&Env{ShapeTest: true})
	if err != nil {
		return 0, 0, err
	}
	rows, cols = v.Dims()
	return rows, cols, nil
}

// Size returns the number of entries of e.
func Size(e Expr) (int, error) {
	r, c, err := Shape(e)
	return r * c, err
}

// TestShape checks that e can be evaluated with consistent shapes.
func TestShape(e Expr) error {
	if _, _, err := Shape(e); err != nil {
		if errors.Is(err, ErrShape) {
			return fmt.Errorf("cannot find shape of %s: %w", e, err)
		}
		return fmt.Errorf("%w: cannot find shape of %s: %v", ErrShape, e, err)
	}
	return nil
}

// ============================================================
// Dense helpers
// ============================================================

func scalarDense(v float64) *mat.Dense { return mat.NewDense(1, 1, []float64{v}) }

func filled(n int, v float64) *mat.Dense {
	if n < 1 {
		n = 1
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(n, 1, data)
}

func at(m *mat.Dense, i, j int) float64 {
	if r, c := m.Dims(); r == 1 && c == 1 {
		return m.At(0, 0)
	}
	return m.At(i, j)
}

// broadcastApply applies f entrywise. A 1x1 operand is broadcast against the
// other one; otherwise shapes must match.
func broadcastApply(a, b *mat.Dense, f func(x, y float64) float64) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	scalarA, scalarB := ar*ac == 1, br*bc == 1
	if !(ar == br && ac == bc) && !scalarA && !scalarB {
		return nil, fmt.Errorf("%w: cannot combine %dx%d with %dx%d", ErrShape, ar, ac, br, bc)
	}
	r, c := max(ar, br), max(ac, bc)
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, f(at(a, i, j), at(b, i, j)))
		}
	}
	return out, nil
}

func matMul(a, b *mat.Dense) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("%w: cannot multiply %dx%d by %dx%d", ErrShape, ar, ac, br, bc)
	}
	var out mat.Dense
	out.Mul(a, b)
	return &out, nil
}

func applyElementwise(m *mat.Dense, f func(float64) float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, m)
	return &out
}

func vstack(parts []*mat.Dense) (*mat.Dense, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty concatenation", ErrShape)
	}
	_, cols := parts[0].Dims()
	rows := 0
	for _, p := range parts {
		r, c := p.Dims()
		if c != cols {
			return nil, fmt.Errorf("%w: cannot stack %d columns onto %d", ErrShape, c, cols)
		}
		rows += r
	}
	out := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, p := range parts {
		r, _ := p.Dims()
		out.Slice(offset, offset+r, 0, cols).(*mat.Dense).Copy(p)
		offset += r
	}
	return out, nil
}
