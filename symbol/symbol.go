// Package symbol provides the expression tree that model equations are written in
// and that the discretisation engine rewrites.
//
// Design goals:
//   - Closed set of node kinds, dispatched on Kind()
//   - Immutable nodes identified by an opaque handle (ID), never by pointer
//   - Builders that fold constants on construction, like AddOf/MulOf
//   - Dense evaluation on gonum matrices for shape checks and tests
package symbol

import (
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/mesh"
)

// ============================================================
// Identity
// ============================================================

// ID is the opaque handle of a node. Two expressions are the same symbol
// exactly when their IDs are equal.
type ID uuid.UUID

func newID() ID { return ID(uuid.New()) }

func (id ID) String() string { return uuid.UUID(id).String() }

// ============================================================
// Kinds
// ============================================================

// Kind tags the concrete node type of an Expr.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindTime
	KindParameter
	KindInputParameter
	KindVariable
	KindVariableDot
	KindConcatenationVariable
	KindSpatialVariable
	KindStateVector
	KindStateVectorDot
	KindExternalVariable
	KindBinary
	KindUnary
	KindFunction
	KindIndex
	KindSpatialOperator
	KindIntegral
	KindIndefiniteIntegral
	KindDefiniteIntegralVector
	KindBoundaryIntegral
	KindBroadcast
	KindDeltaFunction
	KindBoundaryOperator
	KindAverage
	KindConcatenation
	KindNumpyConcatenation
	KindDomainConcatenation
	KindExplicitTimeIntegral
)

var kindNames = [...]string{
	KindScalar:                 "scalar",
	KindArray:                  "array",
	KindTime:                   "time",
	KindParameter:              "parameter",
	KindInputParameter:         "input_parameter",
	KindVariable:               "variable",
	KindVariableDot:            "variable_dot",
	KindConcatenationVariable:  "concatenation_variable",
	KindSpatialVariable:        "spatial_variable",
	KindStateVector:            "state_vector",
	KindStateVectorDot:         "state_vector_dot",
	KindExternalVariable:       "external_variable",
	KindBinary:                 "binary",
	KindUnary:                  "unary",
	KindFunction:               "function",
	KindIndex:                  "index",
	KindSpatialOperator:        "spatial_operator",
	KindIntegral:               "integral",
	KindIndefiniteIntegral:     "indefinite_integral",
	KindDefiniteIntegralVector: "definite_integral_vector",
	KindBoundaryIntegral:       "boundary_integral",
	KindBroadcast:              "broadcast",
	KindDeltaFunction:          "delta_function",
	KindBoundaryOperator:       "boundary_operator",
	KindAverage:                "average",
	KindConcatenation:          "concatenation",
	KindNumpyConcatenation:     "numpy_concatenation",
	KindDomainConcatenation:    "domain_concatenation",
	KindExplicitTimeIntegral:   "explicit_time_integral",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ============================================================
// Core Interface
// ============================================================

// Expr is a node of an expression tree.
type Expr interface {
	ID() ID
	Kind() Kind
	Name() string
	Domains() Domains
	Children() []Expr
	String() string

	// Mesh and SecondaryMesh are set on discretised nodes for downstream consumers.
	Mesh() *mesh.SubMesh
	SecondaryMesh() *mesh.SubMesh
	SetMeshes(primary, secondary *mesh.SubMesh)

	evaluate(env *Env) (*mat.Dense, error)
	clone() Expr
	node() *base
}

// base holds the fields every node shares.
type base struct {
	id            ID
	name          string
	domains       Domains
	children      []Expr
	mesh          *mesh.SubMesh
	secondaryMesh *mesh.SubMesh
}

func newBase(name string, domains Domains, children ...Expr) base {
	return base{id: newID(), name: name, domains: domains, children: children}
}

func (b *base) ID() ID                       { return b.id }
func (b *base) Name() string                 { return b.name }
func (b *base) Domains() Domains             { return b.domains }
func (b *base) Children() []Expr             { return b.children }
func (b *base) Mesh() *mesh.SubMesh          { return b.mesh }
func (b *base) SecondaryMesh() *mesh.SubMesh { return b.secondaryMesh }
func (b *base) SetMeshes(p, s *mesh.SubMesh) { b.mesh, b.secondaryMesh = p, s }
func (b *base) node() *base                  { return b }
func (b *base) child(i int) Expr             { return b.children[i] }

// ============================================================
// Domains
// ============================================================

// Domains lists the subdomains an expression lives on, by level. An empty
// primary domain means the expression is zero-dimensional.
type Domains struct {
	Primary    []string
	Secondary  []string
	Tertiary   []string
	Quaternary []string
}

// D returns Domains with only a primary level.
func D(primary ...string) Domains { return Domains{Primary: primary} }

// IsEmpty reports whether the primary domain is empty.
func (d Domains) IsEmpty() bool { return len(d.Primary) == 0 }

// Auxiliary returns the non-empty levels below the primary one.
func (d Domains) Auxiliary() [][]string {
	var out [][]string
	for _, lvl := range [][]string{d.Secondary, d.Tertiary, d.Quaternary} {
		if len(lvl) > 0 {
			out = append(out, lvl)
		}
	}
	return out
}

// Shift drops the primary level and moves every other level up by one.
func (d Domains) Shift() Domains {
	return Domains{Primary: d.Secondary, Secondary: d.Tertiary, Tertiary: d.Quaternary}
}

func (d Domains) Equal(o Domains) bool {
	return equalStrings(d.Primary, o.Primary) && equalStrings(d.Secondary, o.Secondary) &&
		equalStrings(d.Tertiary, o.Tertiary) && equalStrings(d.Quaternary, o.Quaternary)
}

func (d Domains) String() string {
	if d.IsEmpty() {
		return "[]"
	}
	s := "[" + strings.Join(d.Primary, ", ") + "]"
	if len(d.Secondary) > 0 {
		s += " x [" + strings.Join(d.Secondary, ", ") + "]"
	}
	return s
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// unionDomains concatenates the primary domains of the children in order and
// keeps the auxiliary levels of the first child.
func unionDomains(children []Expr) Domains {
	var out Domains
	for i, c := range children {
		d := c.Domains()
		out.Primary = append(out.Primary, d.Primary...)
		if i == 0 {
			out.Secondary, out.Tertiary, out.Quaternary = d.Secondary, d.Tertiary, d.Quaternary
		}
	}
	return out
}
