package symbol

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Side names used by boundary operators and boundary conditions.
const (
	SideLeft        = "left"
	SideRight       = "right"
	SideNegativeTab = "negative tab"
	SidePositiveTab = "positive tab"
	SideNoTab       = "no tab"
)

// ============================================================
// Spatial Operators
// ============================================================

// SpatialOp selects the continuous operator of a SpatialOperator node.
type SpatialOp int

const (
	OpGradient SpatialOp = iota
	OpDivergence
	OpLaplacian
	OpGradientSquared
	OpMass
	OpBoundaryMass
	OpNotConstant
	OpUpwind
	OpDownwind
)

var spatialOpNames = [...]string{
	"grad", "div", "laplacian", "grad_squared", "mass", "boundary_mass",
	"not_constant", "upwind", "downwind",
}

func (o SpatialOp) String() string { return spatialOpNames[o] }

// SpatialOperator is a continuous operator that the discretisation replaces
// with a spatial method's matrices.
type SpatialOperator struct {
	base
	op SpatialOp
}

func newSpatialOperator(op SpatialOp, child Expr) *SpatialOperator {
	return &SpatialOperator{base: newBase(op.String(), child.Domains(), child), op: op}
}

func Grad(x Expr) *SpatialOperator          { return newSpatialOperator(OpGradient, x) }
func Div(x Expr) *SpatialOperator           { return newSpatialOperator(OpDivergence, x) }
func Laplacian(x Expr) *SpatialOperator     { return newSpatialOperator(OpLaplacian, x) }
func GradSquared(x Expr) *SpatialOperator   { return newSpatialOperator(OpGradientSquared, x) }
func Mass(x Expr) *SpatialOperator          { return newSpatialOperator(OpMass, x) }
func BoundaryMass(x Expr) *SpatialOperator  { return newSpatialOperator(OpBoundaryMass, x) }
func NotConstantOf(x Expr) *SpatialOperator { return newSpatialOperator(OpNotConstant, x) }
func Upwind(x Expr) *SpatialOperator        { return newSpatialOperator(OpUpwind, x) }
func Downwind(x Expr) *SpatialOperator      { return newSpatialOperator(OpDownwind, x) }

func (s *SpatialOperator) Kind() Kind     { return KindSpatialOperator }
func (s *SpatialOperator) Op() SpatialOp  { return s.op }
func (s *SpatialOperator) Child() Expr    { return s.children[0] }
func (s *SpatialOperator) String() string { return fmt.Sprintf("%s(%s)", s.op, s.Child()) }
func (s *SpatialOperator) clone() Expr    { c := *s; c.id = newID(); return &c }
func (s *SpatialOperator) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(s)
}

// ============================================================
// Integrals
// ============================================================

// Integral integrates its child over one or more spatial variables.
type Integral struct {
	base
	vars []*SpatialVariable
}

// IntegralOf integrates child over vars. Integrating over the primary domain
// moves the auxiliary domains up by one level.
func IntegralOf(child Expr, vars ...*SpatialVariable) *Integral {
	d := child.Domains()
	if len(vars) > 0 && equalStrings(vars[0].Domains().Primary, d.Primary) {
		d = d.Shift()
	} else if len(vars) > 0 {
		d = Domains{Primary: d.Primary, Secondary: d.Tertiary, Tertiary: d.Quaternary}
	}
	return &Integral{base: newBase("integral", d, child), vars: vars}
}

func (i *Integral) Kind() Kind                               { return KindIntegral }
func (i *Integral) Child() Expr                              { return i.children[0] }
func (i *Integral) IntegrationVariables() []*SpatialVariable { return i.vars }
func (i *Integral) clone() Expr                              { c := *i; c.id = newID(); return &c }

// OverPrimary reports whether the integral is taken over the child's primary domain.
func (i *Integral) OverPrimary() bool {
	return len(i.vars) == 0 || equalStrings(i.vars[0].Domains().Primary, i.Child().Domains().Primary)
}

func (i *Integral) String() string {
	s := "integral(" + i.Child().String()
	for _, v := range i.vars {
		s += ", d" + v.Name()
	}
	return s + ")"
}

func (i *Integral) evaluate(*Env) (*mat.Dense, error) { return nil, notDiscretised(i) }

// IndefiniteIntegral is the running integral of its child along a spatial
// variable, taken from the left or, when backward, from the right.
type IndefiniteIntegral struct {
	base
	variable *SpatialVariable
	backward bool
}

func Indefinite(child Expr, x *SpatialVariable) *IndefiniteIntegral {
	return &IndefiniteIntegral{base: newBase("indefinite integral", child.Domains(), child), variable: x}
}

func BackwardIndefinite(child Expr, x *SpatialVariable) *IndefiniteIntegral {
	ii := Indefinite(child, x)
	ii.name = "backward indefinite integral"
	ii.backward = true
	return ii
}

func (i *IndefiniteIntegral) Kind() Kind                 { return KindIndefiniteIntegral }
func (i *IndefiniteIntegral) Child() Expr                { return i.children[0] }
func (i *IndefiniteIntegral) Variable() *SpatialVariable { return i.variable }
func (i *IndefiniteIntegral) Backward() bool             { return i.backward }
func (i *IndefiniteIntegral) clone() Expr                { c := *i; c.id = newID(); return &c }
func (i *IndefiniteIntegral) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(i)
}

func (i *IndefiniteIntegral) String() string {
	return fmt.Sprintf("%s(%s, d%s)", i.name, i.Child(), i.variable.Name())
}

// DefiniteIntegralVector is the row vector that integrates a field against
// its cell widths.
type DefiniteIntegralVector struct {
	base
	vectorType string
}

// NewDefiniteIntegralVector builds the integration row vector for variable.
// vectorType is "row" or "column".
func NewDefiniteIntegralVector(variable Expr, vectorType string) *DefiniteIntegralVector {
	if vectorType == "" {
		vectorType = "row"
	}
	return &DefiniteIntegralVector{base: newBase("definite integral vector", Domains{}, variable), vectorType: vectorType}
}

func (d *DefiniteIntegralVector) Kind() Kind         { return KindDefiniteIntegralVector }
func (d *DefiniteIntegralVector) Child() Expr        { return d.children[0] }
func (d *DefiniteIntegralVector) VectorType() string { return d.vectorType }
func (d *DefiniteIntegralVector) String() string     { return fmt.Sprintf("%s(%s)", d.name, d.Child()) }
func (d *DefiniteIntegralVector) clone() Expr        { c := *d; c.id = newID(); return &c }
func (d *DefiniteIntegralVector) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(d)
}

// BoundaryIntegral integrates its child over a boundary region.
type BoundaryIntegral struct {
	base
	region string
}

func NewBoundaryIntegral(child Expr, region string) *BoundaryIntegral {
	if region == "" {
		region = "entire"
	}
	return &BoundaryIntegral{base: newBase("boundary integral", child.Domains().Shift(), child), region: region}
}

func (b *BoundaryIntegral) Kind() Kind     { return KindBoundaryIntegral }
func (b *BoundaryIntegral) Child() Expr    { return b.children[0] }
func (b *BoundaryIntegral) Region() string { return b.region }
func (b *BoundaryIntegral) clone() Expr    { c := *b; c.id = newID(); return &c }
func (b *BoundaryIntegral) String() string {
	return fmt.Sprintf("boundary_integral(%s, %s)", b.Child(), b.region)
}
func (b *BoundaryIntegral) evaluate(*Env) (*mat.Dense, error) { return nil, notDiscretised(b) }

// ============================================================
// Broadcasts
// ============================================================

// BroadcastKind says which domain level a Broadcast adds and whether the
// result lives on nodes or edges.
type BroadcastKind int

const (
	PrimaryToNodes BroadcastKind = iota
	SecondaryToNodes
	FullToNodes
	PrimaryToEdges
	SecondaryToEdges
	FullToEdges
)

var broadcastKindNames = [...]string{
	"primary to nodes", "secondary to nodes", "full to nodes",
	"primary to edges", "secondary to edges", "full to edges",
}

func (k BroadcastKind) String() string { return broadcastKindNames[k] }

// OnEdges reports whether the broadcast result lives on cell edges.
func (k BroadcastKind) OnEdges() bool { return k >= PrimaryToEdges }

// Broadcast replicates its child over a new domain.
type Broadcast struct {
	base
	kind BroadcastKind
}

// PrimaryBroadcast broadcasts child onto domain as the new primary level;
// the child's domains move down one level.
func PrimaryBroadcast(child Expr, domain ...string) *Broadcast {
	cd := child.Domains()
	d := Domains{Primary: domain, Secondary: cd.Primary, Tertiary: cd.Secondary, Quaternary: cd.Tertiary}
	return &Broadcast{base: newBase("broadcast", d, child), kind: PrimaryToNodes}
}

// SecondaryBroadcast broadcasts child onto domain as the new secondary level.
func SecondaryBroadcast(child Expr, domain ...string) *Broadcast {
	cd := child.Domains()
	d := Domains{Primary: cd.Primary, Secondary: domain, Tertiary: cd.Secondary, Quaternary: cd.Tertiary}
	return &Broadcast{base: newBase("broadcast", d, child), kind: SecondaryToNodes}
}

// FullBroadcast broadcasts a domain-free child onto d.
func FullBroadcast(child Expr, d Domains) *Broadcast {
	return &Broadcast{base: newBase("broadcast", d, child), kind: FullToNodes}
}

// ToEdges returns a copy of b that evaluates on cell edges.
func (b *Broadcast) ToEdges() *Broadcast {
	c := *b
	c.id = newID()
	if !c.kind.OnEdges() {
		c.kind += PrimaryToEdges
	}
	return &c
}

func (b *Broadcast) Kind() Kind                   { return KindBroadcast }
func (b *Broadcast) BroadcastKind() BroadcastKind { return b.kind }
func (b *Broadcast) Child() Expr                  { return b.children[0] }
func (b *Broadcast) clone() Expr                  { c := *b; c.id = newID(); return &c }
func (b *Broadcast) String() string {
	return fmt.Sprintf("broadcast(%s, %s)", b.Child(), b.domains)
}
func (b *Broadcast) evaluate(*Env) (*mat.Dense, error) { return nil, notDiscretised(b) }

// ============================================================
// Delta Function
// ============================================================

// DeltaFunction places its child at one end of domain.
type DeltaFunction struct {
	base
	side string
}

func DeltaFunctionOf(child Expr, side, domain string) *DeltaFunction {
	cd := child.Domains()
	d := Domains{Primary: []string{domain}, Secondary: cd.Primary, Tertiary: cd.Secondary}
	return &DeltaFunction{base: newBase("delta function", d, child), side: side}
}

func (d *DeltaFunction) Kind() Kind     { return KindDeltaFunction }
func (d *DeltaFunction) Child() Expr    { return d.children[0] }
func (d *DeltaFunction) Side() string   { return d.side }
func (d *DeltaFunction) clone() Expr    { c := *d; c.id = newID(); return &c }
func (d *DeltaFunction) String() string { return fmt.Sprintf("delta(%s, %s)", d.Child(), d.side) }
func (d *DeltaFunction) evaluate(*Env) (*mat.Dense, error) {
	return nil, notDiscretised(d)
}

// ============================================================
// Boundary Operators
// ============================================================

// BoundaryOp selects value or gradient.
type BoundaryOp int

const (
	OpBoundaryValue BoundaryOp = iota
	OpBoundaryGradient
)

func (o BoundaryOp) String() string {
	if o == OpBoundaryGradient {
		return "boundary_gradient"
	}
	return "boundary_value"
}

// BoundaryOperator is the value or gradient of its child at one side.
type BoundaryOperator struct {
	base
	op   BoundaryOp
	side string
}

func newBoundaryOperator(op BoundaryOp, child Expr, side string) *BoundaryOperator {
	return &BoundaryOperator{base: newBase(op.String(), child.Domains().Shift(), child), op: op, side: side}
}

func BoundaryValue(child Expr, side string) *BoundaryOperator {
	return newBoundaryOperator(OpBoundaryValue, child, side)
}

func BoundaryGradient(child Expr, side string) *BoundaryOperator {
	return newBoundaryOperator(OpBoundaryGradient, child, side)
}

// WithSide returns a copy of b reading at a different side.
func (b *BoundaryOperator) WithSide(side string) *BoundaryOperator {
	c := *b
	c.id = newID()
	c.side = side
	return &c
}

func (b *BoundaryOperator) Kind() Kind     { return KindBoundaryOperator }
func (b *BoundaryOperator) Op() BoundaryOp { return b.op }
func (b *BoundaryOperator) Side() string   { return b.side }
func (b *BoundaryOperator) Child() Expr    { return b.children[0] }
func (b *BoundaryOperator) clone() Expr    { c := *b; c.id = newID(); return &c }
func (b *BoundaryOperator) String() string {
	return fmt.Sprintf("%s(%s, %s)", b.op, b.Child(), b.side)
}
func (b *BoundaryOperator) evaluate(*Env) (*mat.Dense, error) { return nil, notDiscretised(b) }

// ============================================================
// Averages
// ============================================================

// Average is the mean of its child over one or more spatial variables. A
// size average additionally weights by a distribution.
type Average struct {
	base
	vars   []*SpatialVariable
	weight Expr
}

// AverageOf averages child over vars.
func AverageOf(child Expr, vars ...*SpatialVariable) *Average {
	d := child.Domains().Shift()
	return &Average{base: newBase("average", d, child), vars: vars}
}

// SizeAverageOf averages child over the size variable r weighted by weight.
func SizeAverageOf(child Expr, r *SpatialVariable, weight Expr) *Average {
	a := AverageOf(child, r)
	a.name = "size average"
	a.weight = weight
	return a
}

func (a *Average) Kind() Kind                               { return KindAverage }
func (a *Average) Child() Expr                              { return a.children[0] }
func (a *Average) IntegrationVariables() []*SpatialVariable { return a.vars }
func (a *Average) Weight() Expr                             { return a.weight }
func (a *Average) IsSizeAverage() bool                      { return a.weight != nil }
func (a *Average) clone() Expr                              { c := *a; c.id = newID(); return &c }
func (a *Average) String() string                           { return fmt.Sprintf("%s(%s)", a.name, a.Child()) }
func (a *Average) evaluate(*Env) (*mat.Dense, error)        { return nil, notDiscretised(a) }
