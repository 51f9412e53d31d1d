// Package spatial turns continuous spatial operators into matrices acting on
// discretised children. Each domain of a model is assigned one Method.
package spatial

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/symbol"
)

// ErrNotImplemented is returned for a capability a method does not provide.
var ErrNotImplemented = errors.New("spatial: not implemented")

// Method is the capability set of a spatial discretisation. Arguments named
// sym are the undiscretised symbols; disc arguments are their discretised
// forms. Boundary condition tables are keyed by undiscretised owners and hold
// discretised expressions.
type Method interface {
	Build(m *mesh.Mesh)
	Mesh() *mesh.Mesh
	// AuxiliaryDomainRepeats is the number of copies of the primary grid
	// implied by the non-primary domain levels of d.
	AuxiliaryDomainRepeats(d symbol.Domains) (int, error)

	Gradient(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)
	Divergence(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)
	Laplacian(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)
	GradientSquared(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)

	Integral(sym, disc symbol.Expr, integral *symbol.Integral) (symbol.Expr, error)
	IndefiniteIntegral(sym, disc symbol.Expr, backward bool) (symbol.Expr, error)
	DefiniteIntegralMatrix(sym symbol.Expr, vectorType string) (symbol.Expr, error)
	BoundaryIntegral(sym, disc symbol.Expr, region string) (symbol.Expr, error)
	BoundaryValueOrFlux(op *symbol.BoundaryOperator, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)

	Broadcast(disc symbol.Expr, d symbol.Domains, kind symbol.BroadcastKind) (symbol.Expr, error)
	Concatenation(disc []symbol.Expr) (symbol.Expr, error)
	MassMatrix(sym symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)
	BoundaryMassMatrix(sym symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error)
	SpatialVariable(sym *symbol.SpatialVariable) (symbol.Expr, error)

	InternalNeumannCondition(leftDisc, rightDisc symbol.Expr, left, right *mesh.SubMesh) (symbol.Expr, error)
	PreprocessExternalVariables(v symbol.Expr) (*symbol.BoundaryConditions, error)
	UpwindOrDownwind(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions, op symbol.SpatialOp) (symbol.Expr, error)
	DeltaFunction(sym *symbol.DeltaFunction, disc symbol.Expr) (symbol.Expr, error)
	ProcessBinaryOperators(bin *symbol.Binary, left, right, discLeft, discRight symbol.Expr) (symbol.Expr, error)
}

// ============================================================
// Base
// ============================================================

// Base implements the mesh bookkeeping and the capabilities every method
// shares. Capabilities it cannot provide return ErrNotImplemented.
type Base struct {
	mesh *mesh.Mesh
}

func (b *Base) Build(m *mesh.Mesh) { b.mesh = m }
func (b *Base) Mesh() *mesh.Mesh   { return b.mesh }

// domainPoints is the number of nodes across the listed domains, or 1 when
// the list is empty.
func (b *Base) domainPoints(domains []string) (int, error) {
	if len(domains) == 0 {
		return 1, nil
	}
	n := 0
	for _, d := range domains {
		s, err := b.mesh.Get(d)
		if err != nil {
			return 0, err
		}
		n += s.NptsForBroadcastToNodes()
	}
	return n, nil
}

func (b *Base) AuxiliaryDomainRepeats(d symbol.Domains) (int, error) {
	repeats := 1
	for _, lvl := range d.Auxiliary() {
		n, err := b.domainPoints(lvl)
		if err != nil {
			return 0, err
		}
		repeats *= n
	}
	return repeats, nil
}

// primary returns the combined submesh of d's primary domains and the
// auxiliary repeat count.
func (b *Base) primary(d symbol.Domains) (*mesh.SubMesh, int, error) {
	if d.IsEmpty() {
		return nil, 0, fmt.Errorf("%w: symbol has no domain", mesh.ErrDomainNotFound)
	}
	sub, err := b.mesh.Lookup(d.Primary)
	if err != nil {
		return nil, 0, err
	}
	repeats, err := b.AuxiliaryDomainRepeats(d)
	if err != nil {
		return nil, 0, err
	}
	return sub, repeats, nil
}

// Broadcast replicates disc onto d. Primary broadcasts stack copies of each
// child entry; secondary broadcasts stack copies of the whole primary block;
// full broadcasts multiply by a vector of ones.
func (b *Base) Broadcast(disc symbol.Expr, d symbol.Domains, kind symbol.BroadcastKind) (symbol.Expr, error) {
	primary, err := b.domainPoints(d.Primary)
	if err != nil {
		return nil, err
	}
	aux, err := b.AuxiliaryDomainRepeats(d)
	if err != nil {
		return nil, err
	}
	secondary, err := b.domainPoints(d.Secondary)
	if err != nil {
		return nil, err
	}
	childSize, err := symbol.Size(disc)
	if err != nil {
		return nil, err
	}
	switch kind {
	case symbol.PrimaryToNodes, symbol.PrimaryToEdges:
		if kind.OnEdges() {
			primary++
		}
		return symbol.MatMulOf(symbol.NewMatrix(kronEye(childSize, ones(primary, 1))), disc), nil
	case symbol.SecondaryToNodes, symbol.SecondaryToEdges:
		if kind.OnEdges() {
			secondary++
		}
		if childSize%primary != 0 {
			return nil, fmt.Errorf("%w: cannot broadcast %d entries over %d primary points", symbol.ErrShape, childSize, primary)
		}
		var block mat.Dense
		block.Kronecker(ones(secondary, 1), eye(primary))
		return symbol.MatMulOf(symbol.NewMatrix(kronEye(childSize/primary, &block)), disc), nil
	default:
		full := primary * aux
		if kind.OnEdges() {
			full = (primary + 1) * aux
		}
		return symbol.MulOf(disc, symbol.NewArrayWithDomains(ones(full, 1), d)), nil
	}
}

// Concatenation joins discretised children on adjacent subdomains, block by
// block over their auxiliary repeats.
func (b *Base) Concatenation(disc []symbol.Expr) (symbol.Expr, error) {
	if len(disc) == 0 {
		return nil, fmt.Errorf("%w: empty concatenation", symbol.ErrShape)
	}
	sizes := make([]int, len(disc))
	repeats := 0
	for i, c := range disc {
		r, err := b.AuxiliaryDomainRepeats(c.Domains())
		if err != nil {
			return nil, err
		}
		if i == 0 {
			repeats = r
		} else if r != repeats {
			return nil, fmt.Errorf("%w: concatenation children repeat %d and %d times", symbol.ErrShape, repeats, r)
		}
		n, err := symbol.Size(c)
		if err != nil {
			return nil, err
		}
		if n%repeats != 0 {
			return nil, fmt.Errorf("%w: child %s has %d entries for %d repeats", symbol.ErrShape, c, n, repeats)
		}
		sizes[i] = n / repeats
	}
	return symbol.NewDomainConcatenation(disc, sizes, repeats), nil
}

// SpatialVariable returns the node (or edge) coordinates of sym's domain,
// tiled over the auxiliary repeats.
func (b *Base) SpatialVariable(sym *symbol.SpatialVariable) (symbol.Expr, error) {
	sub, repeats, err := b.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	points := sub.Nodes
	if sym.OnEdges() {
		points = sub.Edges
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: domain %v has no coordinates", mesh.ErrMesh, sym.Domains().Primary)
	}
	values := make([]float64, 0, len(points)*repeats)
	for i := 0; i < repeats; i++ {
		values = append(values, points...)
	}
	return symbol.NewArrayWithDomains(column(values), sym.Domains()), nil
}

// ProcessBinaryOperators rebuilds the operator over the discretised children
// and folds it when constant.
func (b *Base) ProcessBinaryOperators(bin *symbol.Binary, _, _, discLeft, discRight symbol.Expr) (symbol.Expr, error) {
	return symbol.SimplifyIfConstant(symbol.BinaryOf(bin.Op(), discLeft, discRight)), nil
}

// PreprocessExternalVariables adds no boundary conditions.
func (b *Base) PreprocessExternalVariables(symbol.Expr) (*symbol.BoundaryConditions, error) {
	return symbol.NewBoundaryConditions(), nil
}

func notImplemented(capability string) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, capability)
}

func (b *Base) Gradient(symbol.Expr, symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("gradient")
}

func (b *Base) Divergence(symbol.Expr, symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("divergence")
}

func (b *Base) Laplacian(symbol.Expr, symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("laplacian")
}

func (b *Base) GradientSquared(symbol.Expr, symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("gradient squared")
}

func (b *Base) Integral(symbol.Expr, symbol.Expr, *symbol.Integral) (symbol.Expr, error) {
	return nil, notImplemented("integral")
}

func (b *Base) IndefiniteIntegral(symbol.Expr, symbol.Expr, bool) (symbol.Expr, error) {
	return nil, notImplemented("indefinite integral")
}

func (b *Base) DefiniteIntegralMatrix(symbol.Expr, string) (symbol.Expr, error) {
	return nil, notImplemented("definite integral matrix")
}

func (b *Base) BoundaryIntegral(symbol.Expr, symbol.Expr, string) (symbol.Expr, error) {
	return nil, notImplemented("boundary integral")
}

func (b *Base) BoundaryValueOrFlux(*symbol.BoundaryOperator, symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("boundary value or flux")
}

func (b *Base) MassMatrix(symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("mass matrix")
}

func (b *Base) BoundaryMassMatrix(symbol.Expr, *symbol.BoundaryConditions) (symbol.Expr, error) {
	return nil, notImplemented("boundary mass matrix")
}

func (b *Base) InternalNeumannCondition(symbol.Expr, symbol.Expr, *mesh.SubMesh, *mesh.SubMesh) (symbol.Expr, error) {
	return nil, notImplemented("internal neumann condition")
}

func (b *Base) UpwindOrDownwind(symbol.Expr, symbol.Expr, *symbol.BoundaryConditions, symbol.SpatialOp) (symbol.Expr, error) {
	return nil, notImplemented("upwind or downwind")
}

func (b *Base) DeltaFunction(*symbol.DeltaFunction, symbol.Expr) (symbol.Expr, error) {
	return nil, notImplemented("delta function")
}
