package symbol

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ============================================================
// Scalar
// ============================================================

// Scalar is a dimensionless constant.
type Scalar struct {
	base
	value float64
}

// NewScalar returns a Scalar with the given value.
func NewScalar(v float64) *Scalar {
	return &Scalar{base: newBase(strconv.FormatFloat(v, 'g', -1, 64), Domains{}), value: v}
}

func (s *Scalar) Kind() Kind     { return KindScalar }
func (s *Scalar) Value() float64 { return s.value }
func (s *Scalar) String() string { return s.name }
func (s *Scalar) clone() Expr    { c := *s; c.id = newID(); return &c }
func (s *Scalar) evaluate(*Env) (*mat.Dense, error) {
	return scalarDense(s.value), nil
}

// ============================================================
// Array
// ============================================================

// Array is a constant column vector or matrix.
type Array struct {
	base
	data *mat.Dense
}

// NewVector returns an Array column vector. It panics on zero length.
func NewVector(values ...float64) *Array {
	if len(values) == 0 {
		panic("symbol: NewVector requires at least one value")
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Array{base: newBase("vector", Domains{}), data: mat.NewDense(len(values), 1, data)}
}

// NewMatrix returns an Array holding a copy of m.
func NewMatrix(m mat.Matrix) *Array {
	return &Array{base: newBase("matrix", Domains{}), data: mat.DenseCopyOf(m)}
}

// NewArrayWithDomains returns an Array holding a copy of m on the given domains.
func NewArrayWithDomains(m mat.Matrix, d Domains) *Array {
	a := NewMatrix(m)
	a.domains = d
	return a
}

func (a *Array) Kind() Kind       { return KindArray }
func (a *Array) Data() *mat.Dense { return a.data }
func (a *Array) clone() Expr      { c := *a; c.id = newID(); return &c }

// Size returns the number of rows.
func (a *Array) Size() int {
	r, _ := a.data.Dims()
	return r
}

func (a *Array) String() string {
	r, c := a.data.Dims()
	if c == 1 {
		return fmt.Sprintf("Vector(%d)", r)
	}
	return fmt.Sprintf("Matrix(%dx%d)", r, c)
}

func (a *Array) evaluate(*Env) (*mat.Dense, error) {
	return a.data, nil
}

// ============================================================
// Time
// ============================================================

// Time is the independent time variable.
type Time struct{ base }

func NewTime() *Time { return &Time{base: newBase("time", Domains{})} }

func (t *Time) Kind() Kind     { return KindTime }
func (t *Time) String() string { return "t" }
func (t *Time) clone() Expr    { c := *t; c.id = newID(); return &c }
func (t *Time) evaluate(env *Env) (*mat.Dense, error) {
	return scalarDense(env.T), nil
}

// ============================================================
// Parameters
// ============================================================

// Parameter is a named value that must be substituted before evaluation.
type Parameter struct{ base }

func NewParameter(name string) *Parameter { return &Parameter{base: newBase(name, Domains{})} }

func (p *Parameter) Kind() Kind     { return KindParameter }
func (p *Parameter) String() string { return p.name }
func (p *Parameter) clone() Expr    { c := *p; c.id = newID(); return &c }
func (p *Parameter) evaluate(env *Env) (*mat.Dense, error) {
	if env.ShapeTest {
		return scalarDense(math.NaN()), nil
	}
	return nil, fmt.Errorf("%w: parameter %q has no value", ErrNotDiscretised, p.name)
}

// InputParameter is a value supplied at solve time. Its expected size is
// stamped by the discretisation from the mesh.
type InputParameter struct {
	base
	expectedSize int
}

func NewInputParameter(name string, d Domains) *InputParameter {
	return &InputParameter{base: newBase(name, d), expectedSize: 1}
}

func (p *InputParameter) Kind() Kind            { return KindInputParameter }
func (p *InputParameter) String() string        { return p.name }
func (p *InputParameter) ExpectedSize() int     { return p.expectedSize }
func (p *InputParameter) SetExpectedSize(n int) { p.expectedSize = n }
func (p *InputParameter) clone() Expr           { c := *p; c.id = newID(); return &c }

func (p *InputParameter) evaluate(env *Env) (*mat.Dense, error) {
	if env.ShapeTest || env.InputsForShape {
		return filled(p.expectedSize, math.NaN()), nil
	}
	v, ok := env.Inputs[p.name]
	if !ok {
		return nil, fmt.Errorf("symbol: input parameter %q not provided", p.name)
	}
	if p.expectedSize == 1 {
		return scalarDense(v), nil
	}
	return filled(p.expectedSize, v), nil
}

// ============================================================
// External Variables
// ============================================================

// ExternalVariable stands for a quantity supplied from outside the model at
// solve time.
type ExternalVariable struct {
	base
	size int
}

func NewExternalVariable(name string, size int, d Domains) *ExternalVariable {
	return &ExternalVariable{base: newBase(name, d), size: size}
}

func (e *ExternalVariable) Kind() Kind     { return KindExternalVariable }
func (e *ExternalVariable) Size() int      { return e.size }
func (e *ExternalVariable) String() string { return e.name }
func (e *ExternalVariable) clone() Expr    { c := *e; c.id = newID(); return &c }

func (e *ExternalVariable) evaluate(env *Env) (*mat.Dense, error) {
	if env.ShapeTest {
		return filled(e.size, math.NaN()), nil
	}
	v, ok := env.External[e.name]
	if !ok {
		return nil, fmt.Errorf("symbol: external variable %q not provided", e.name)
	}
	if len(v) != e.size {
		return nil, fmt.Errorf("%w: external variable %q has %d values, want %d", ErrShape, e.name, len(v), e.size)
	}
	return mat.NewDense(len(v), 1, append([]float64(nil), v...)), nil
}

// ============================================================
// State Vectors
// ============================================================

// Slice is a half-open range [Start, End) of the state vector.
type Slice struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (s Slice) Len() int { return s.End - s.Start }

func (s Slice) String() string { return fmt.Sprintf("%d:%d", s.Start, s.End) }

// StateVector reads the listed slices of the state vector y, or of its time
// derivative when built by NewStateVectorDot.
type StateVector struct {
	base
	slices []Slice
	dot    bool
}

func NewStateVector(name string, d Domains, slices ...Slice) *StateVector {
	return &StateVector{base: newBase(name, d), slices: append([]Slice(nil), slices...)}
}

func NewStateVectorDot(name string, d Domains, slices ...Slice) *StateVector {
	sv := NewStateVector(name, d, slices...)
	sv.dot = true
	return sv
}

func (s *StateVector) Kind() Kind {
	if s.dot {
		return KindStateVectorDot
	}
	return KindStateVector
}

func (s *StateVector) Slices() []Slice { return s.slices }
func (s *StateVector) clone() Expr     { c := *s; c.id = newID(); return &c }

// Size is the total number of entries read.
func (s *StateVector) Size() int {
	n := 0
	for _, sl := range s.slices {
		n += sl.Len()
	}
	return n
}

func (s *StateVector) String() string {
	prefix := "y"
	if s.dot {
		prefix = "y_dot"
	}
	out := prefix + "["
	for i, sl := range s.slices {
		if i > 0 {
			out += ","
		}
		out += sl.String()
	}
	return out + "]"
}

func (s *StateVector) evaluate(env *Env) (*mat.Dense, error) {
	if env.ShapeTest {
		return filled(s.Size(), math.NaN()), nil
	}
	y := env.Y
	if s.dot {
		y = env.YDot
	}
	if y == nil {
		return nil, fmt.Errorf("symbol: %s requires a state vector", s)
	}
	out := make([]float64, 0, s.Size())
	for _, sl := range s.slices {
		if sl.End > len(y) {
			return nil, fmt.Errorf("%w: %s reads past state of length %d", ErrShape, s, len(y))
		}
		out = append(out, y[sl.Start:sl.End]...)
	}
	return mat.NewDense(len(out), 1, out), nil
}
