package symbol

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// StateVariable is an unknown of the model that is stored in the state
// vector, either a plain Variable or a ConcatenationVariable.
type StateVariable interface {
	Expr
	Bounds() (lower, upper float64)
	// Scale and Reference define the affine map value = Reference + Scale*stored.
	Scale() Expr
	Reference() Expr
}

type stateAttrs struct {
	lower, upper float64
	scale        Expr
	reference    Expr
}

func defaultStateAttrs() stateAttrs {
	return stateAttrs{lower: math.Inf(-1), upper: math.Inf(1), scale: NewScalar(1), reference: NewScalar(0)}
}

func (s *stateAttrs) Bounds() (float64, float64) { return s.lower, s.upper }
func (s *stateAttrs) Scale() Expr                { return s.scale }
func (s *stateAttrs) Reference() Expr            { return s.reference }

// VariableOption customises a state variable at construction.
type VariableOption func(*stateAttrs)

// WithBounds sets the admissible range of the variable.
func WithBounds(lower, upper float64) VariableOption {
	return func(s *stateAttrs) { s.lower, s.upper = lower, upper }
}

// WithScale sets the scale of the affine map.
func WithScale(scale Expr) VariableOption {
	return func(s *stateAttrs) { s.scale = scale }
}

// WithReference sets the offset of the affine map.
func WithReference(ref Expr) VariableOption {
	return func(s *stateAttrs) { s.reference = ref }
}

// IsAffineIdentity reports whether scale is 1 and reference is 0.
func IsAffineIdentity(v StateVariable) bool {
	return isScalarValue(v.Scale(), 1) && isScalarValue(v.Reference(), 0)
}

// ============================================================
// Variable
// ============================================================

// Variable is a named unknown on a domain.
type Variable struct {
	base
	stateAttrs
}

func NewVariable(name string, d Domains, opts ...VariableOption) *Variable {
	v := &Variable{base: newBase(name, d), stateAttrs: defaultStateAttrs()}
	for _, o := range opts {
		o(&v.stateAttrs)
	}
	return v
}

func (v *Variable) Kind() Kind     { return KindVariable }
func (v *Variable) String() string { return v.name }
func (v *Variable) clone() Expr    { c := *v; c.id = newID(); return &c }
func (v *Variable) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(v)
}

// ============================================================
// Concatenation Variable
// ============================================================

// ConcatenationVariable is a state variable made of one Variable per
// adjacent subdomain.
type ConcatenationVariable struct {
	base
	stateAttrs
	vars []*Variable
}

// NewConcatenationVariable joins the given variables in order. When name is
// empty the common prefix of the children's names is used.
func NewConcatenationVariable(name string, vars []*Variable, opts ...VariableOption) *ConcatenationVariable {
	children := make([]Expr, len(vars))
	for i, v := range vars {
		children[i] = v
	}
	if name == "" {
		name = commonPrefix(vars)
	}
	cv := &ConcatenationVariable{
		base:       newBase(name, unionDomains(children), children...),
		stateAttrs: defaultStateAttrs(),
		vars:       append([]*Variable(nil), vars...),
	}
	if len(vars) > 0 {
		cv.lower, cv.upper = vars[0].Bounds()
	}
	for _, o := range opts {
		o(&cv.stateAttrs)
	}
	return cv
}

func (c *ConcatenationVariable) Kind() Kind             { return KindConcatenationVariable }
func (c *ConcatenationVariable) Variables() []*Variable { return c.vars }
func (c *ConcatenationVariable) String() string         { return c.name }
func (c *ConcatenationVariable) clone() Expr            { d := *c; d.id = newID(); return &d }
func (c *ConcatenationVariable) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(c)
}

func commonPrefix(vars []*Variable) string {
	if len(vars) == 0 {
		return "concatenation"
	}
	prefix := vars[0].Name()
	for _, v := range vars[1:] {
		for !strings.HasPrefix(v.Name(), prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "concatenation"
	}
	return prefix
}

// ============================================================
// Variable Dot
// ============================================================

// VariableDot is the time derivative of a Variable.
type VariableDot struct {
	base
	variable *Variable
}

// Dt returns the time derivative of v.
func Dt(v *Variable) *VariableDot {
	return &VariableDot{base: newBase(v.Name()+"'", v.Domains()), variable: v}
}

func (d *VariableDot) Kind() Kind          { return KindVariableDot }
func (d *VariableDot) Variable() *Variable { return d.variable }
func (d *VariableDot) String() string      { return d.name }
func (d *VariableDot) clone() Expr         { c := *d; c.id = newID(); return &c }
func (d *VariableDot) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(d)
}

// ============================================================
// Spatial Variable
// ============================================================

// SpatialVariable is an independent space coordinate on a domain.
type SpatialVariable struct {
	base
	coordSys string
}

func NewSpatialVariable(name string, d Domains, coordSys string) *SpatialVariable {
	if coordSys == "" {
		coordSys = "cartesian"
	}
	return &SpatialVariable{base: newBase(name, d), coordSys: coordSys}
}

func (s *SpatialVariable) Kind() Kind       { return KindSpatialVariable }
func (s *SpatialVariable) CoordSys() string { return s.coordSys }
func (s *SpatialVariable) String() string   { return s.name }
func (s *SpatialVariable) clone() Expr      { c := *s; c.id = newID(); return &c }

// OnEdges reports whether the variable is evaluated on cell edges.
func (s *SpatialVariable) OnEdges() bool { return strings.HasSuffix(s.name, "_edge") }

func (s *SpatialVariable) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(s)
}

func notDiscretised(e Expr) error {
	return fmt.Errorf("%w: %s %q", ErrNotDiscretised, e.Kind(), e.Name())
}
