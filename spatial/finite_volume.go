package spatial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// FiniteVolume is a cell-centred finite volume method on 1D meshes. Values
// live on nodes (cell centres) and fluxes on edges.
type FiniteVolume struct {
	Base
	// UseBCs makes boundary values and gradients return the boundary
	// condition itself when one of the matching type is set.
	UseBCs bool
}

func NewFiniteVolume() *FiniteVolume { return &FiniteVolume{} }

var _ Method = (*FiniteVolume)(nil)

// ============================================================
// Gradient and Divergence
// ============================================================

// Gradient returns the gradient of disc on the edges. Dirichlet conditions
// are imposed with ghost nodes and Neumann conditions are inserted as the
// boundary fluxes; without conditions only interior edges are returned.
func (fv *FiniteVolume) Gradient(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	sides, _ := bcs.Get(sym.ID())
	left, hasLeft := sides[symbol.SideLeft]
	right, hasRight := sides[symbol.SideRight]
	dirLeft := hasLeft && left.Type == symbol.Dirichlet
	dirRight := hasRight && right.Type == symbol.Dirichlet

	ext, xs := ghostExtension(sub, dirLeft, dirRight)
	m := len(xs)
	if m < 2 {
		return nil, fmt.Errorf("%w: gradient of %s needs two nodes or a Dirichlet condition", symbol.ErrShape, sym.Name())
	}
	grad := gradientMatrix(xs)
	var ge mat.Dense
	ge.Mul(grad, ext)
	out := symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, &ge)), disc)

	// A ghost value is 2*bc - u at the boundary node.
	if dirLeft {
		term, err := boundaryTerm(scaled(mat.Col(nil, 0, grad), 2), repeats, left.Expr)
		if err != nil {
			return nil, err
		}
		out = symbol.AddOf(out, term)
	}
	if dirRight {
		term, err := boundaryTerm(scaled(mat.Col(nil, m-1, grad), 2), repeats, right.Expr)
		if err != nil {
			return nil, err
		}
		out = symbol.AddOf(out, term)
	}

	neuLeft := hasLeft && left.Type == symbol.Neumann
	neuRight := hasRight && right.Type == symbol.Neumann
	if !neuLeft && !neuRight {
		return out, nil
	}
	k := m - 1
	p := k + b2i(neuLeft) + b2i(neuRight)
	pad := mat.NewDense(p, k, nil)
	for i := 0; i < k; i++ {
		pad.Set(i+b2i(neuLeft), i, 1)
	}
	out = symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, pad)), out)
	if neuLeft {
		term, err := boundaryTerm(unit(p, 0), repeats, left.Expr)
		if err != nil {
			return nil, err
		}
		out = symbol.AddOf(out, term)
	}
	if neuRight {
		term, err := boundaryTerm(unit(p, p-1), repeats, right.Expr)
		if err != nil {
			return nil, err
		}
		out = symbol.AddOf(out, term)
	}
	return out, nil
}

// Divergence maps a flux on the n+1 edges to the n nodes, weighting by the
// coordinate system.
func (fv *FiniteVolume) Divergence(sym, disc symbol.Expr, _ *symbol.BoundaryConditions) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	n, e := sub.Npts(), sub.Edges
	div := mat.NewDense(n, n+1, nil)
	for i := 0; i < n; i++ {
		var w, l, r float64
		switch sub.CoordSys {
		case mesh.CylindricalPolar:
			w = (e[i+1]*e[i+1] - e[i]*e[i]) / 2
			l, r = e[i], e[i+1]
		case mesh.SphericalPolar:
			w = (math.Pow(e[i+1], 3) - math.Pow(e[i], 3)) / 3
			l, r = e[i]*e[i], e[i+1]*e[i+1]
		default:
			w = e[i+1] - e[i]
			l, r = 1, 1
		}
		div.Set(i, i, -l/w)
		div.Set(i, i+1, r/w)
	}
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, div)), disc), nil
}

// Laplacian is the divergence of the gradient.
func (fv *FiniteVolume) Laplacian(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error) {
	grad, err := fv.Gradient(sym, disc, bcs)
	if err != nil {
		return nil, err
	}
	return fv.Divergence(sym, grad, bcs)
}

// GradientSquared squares the gradient on the edges and averages the two
// edges of each cell back onto its node.
func (fv *FiniteVolume) GradientSquared(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	grad, err := fv.Gradient(sym, disc, bcs)
	if err != nil {
		return nil, err
	}
	n := sub.Npts()
	avg := mat.NewDense(n, n+1, nil)
	for i := 0; i < n; i++ {
		avg.Set(i, i, 0.5)
		avg.Set(i, i+1, 0.5)
	}
	sq := symbol.PowOf(grad, symbol.NewScalar(2))
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, avg)), sq), nil
}

// ============================================================
// Integrals
// ============================================================

// integralWeights returns the quadrature weight of each cell.
func integralWeights(sub *mesh.SubMesh) []float64 {
	w := sub.Widths()
	for i := range w {
		r := sub.Nodes[i]
		switch sub.CoordSys {
		case mesh.CylindricalPolar:
			w[i] *= 2 * math.Pi * r
		case mesh.SphericalPolar:
			w[i] *= 4 * math.Pi * r * r
		}
	}
	return w
}

// Integral integrates over the primary domain or, when the integration
// variable lives on the secondary domain, over the secondary one.
func (fv *FiniteVolume) Integral(sym, disc symbol.Expr, integral *symbol.Integral) (symbol.Expr, error) {
	if len(integral.IntegrationVariables()) > 1 {
		return nil, notImplemented("integral over several variables")
	}
	d := sym.Domains()
	if integral.OverPrimary() {
		sub, repeats, err := fv.primary(d)
		if err != nil {
			return nil, err
		}
		m := kronEye(repeats, row(integralWeights(sub)))
		return symbol.MatMulOf(symbol.NewMatrix(m), disc), nil
	}

	prim, err := fv.domainPoints(d.Primary)
	if err != nil {
		return nil, err
	}
	sec, err := fv.mesh.Lookup(d.Secondary)
	if err != nil {
		return nil, err
	}
	if sec == nil || sec.Dimension != 1 {
		return nil, fmt.Errorf("%w: secondary integral needs a 1D secondary domain", mesh.ErrMesh)
	}
	outer, err := fv.AuxiliaryDomainRepeats(symbol.Domains{Secondary: d.Tertiary, Tertiary: d.Quaternary})
	if err != nil {
		return nil, err
	}
	var block mat.Dense
	block.Kronecker(row(integralWeights(sec)), eye(prim))
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(outer, &block)), disc), nil
}

// IndefiniteIntegral integrates nodes onto edges or edges onto nodes,
// starting at the left boundary or, when backward, at the right one.
func (fv *FiniteVolume) IndefiniteIntegral(sym, disc symbol.Expr, backward bool) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	if sub.CoordSys != mesh.Cartesian {
		return nil, notImplemented("indefinite integral in " + sub.CoordSys + " coordinates")
	}
	size, err := symbol.Size(disc)
	if err != nil {
		return nil, err
	}
	n := sub.Npts()
	var m *mat.Dense
	switch size {
	case n * repeats:
		m = nodesToEdgesIntegral(sub, backward)
	case (n + 1) * repeats:
		m = edgesToNodesIntegral(sub, backward)
	default:
		return nil, fmt.Errorf("%w: cannot integrate %d entries on %d nodes", symbol.ErrShape, size, n*repeats)
	}
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, m)), disc), nil
}

func nodesToEdgesIntegral(sub *mesh.SubMesh, backward bool) *mat.Dense {
	w := sub.Widths()
	n := len(w)
	m := mat.NewDense(n+1, n, nil)
	for i := 0; i <= n; i++ {
		for j := 0; j < n; j++ {
			if (!backward && j < i) || (backward && j >= i) {
				m.Set(i, j, w[j])
			}
		}
	}
	return m
}

func edgesToNodesIntegral(sub *mesh.SubMesh, backward bool) *mat.Dense {
	nodes, edges := sub.Nodes, sub.Edges
	n := len(nodes)
	m := mat.NewDense(n, n+1, nil)
	for i := 0; i < n; i++ {
		if !backward {
			m.Set(i, 0, nodes[0]-edges[0])
			for k := 1; k <= i; k++ {
				m.Set(i, k, nodes[k]-nodes[k-1])
			}
			continue
		}
		m.Set(i, n, edges[n]-nodes[n-1])
		for k := i + 1; k < n; k++ {
			m.Set(i, k, nodes[k]-nodes[k-1])
		}
	}
	return m
}

// DefiniteIntegralMatrix returns the row (or column) of quadrature weights
// for sym's primary domain, repeated over its auxiliary domains.
func (fv *FiniteVolume) DefiniteIntegralMatrix(sym symbol.Expr, vectorType string) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	m := kronEye(repeats, row(integralWeights(sub)))
	if vectorType == "column" {
		return symbol.NewMatrix(m.T()), nil
	}
	return symbol.NewMatrix(m), nil
}

// ============================================================
// Boundary values
// ============================================================

// BoundaryValueOrFlux extrapolates the value or gradient of disc to a side
// linearly from the two nearest nodes.
func (fv *FiniteVolume) BoundaryValueOrFlux(op *symbol.BoundaryOperator, disc symbol.Expr, bcs *symbol.BoundaryConditions) (symbol.Expr, error) {
	child := op.Child()
	sub, repeats, err := fv.primary(child.Domains())
	if err != nil {
		return nil, err
	}
	side := op.Side()
	if side != symbol.SideLeft && side != symbol.SideRight {
		return nil, fmt.Errorf("%w: boundary side %q on a 1D mesh", model.ErrModel, side)
	}
	n := sub.Npts()
	nodes, edges := sub.Nodes, sub.Edges
	weights := make([]float64, n)
	var additive symbol.Expr = symbol.NewScalar(0)

	var bc symbol.BoundaryCondition
	var hasBC bool
	if fv.UseBCs {
		if sides, ok := bcs.Get(child.ID()); ok {
			bc, hasBC = sides[side]
		}
	}

	switch op.Op() {
	case symbol.OpBoundaryValue:
		switch {
		case hasBC && bc.Type == symbol.Dirichlet:
			additive = bc.Expr
		case n == 1:
			weights[0] = 1
		case side == symbol.SideLeft && hasBC:
			dx0 := nodes[0] - edges[0]
			weights[0] = 1
			additive = symbol.MulOf(symbol.NewScalar(-dx0), bc.Expr)
		case side == symbol.SideLeft:
			dx0, dx1 := nodes[0]-edges[0], nodes[1]-nodes[0]
			weights[0], weights[1] = 1+dx0/dx1, -dx0/dx1
		case hasBC:
			dxN := edges[n] - nodes[n-1]
			weights[n-1] = 1
			additive = symbol.MulOf(symbol.NewScalar(dxN), bc.Expr)
		default:
			dxN, dxM := edges[n]-nodes[n-1], nodes[n-1]-nodes[n-2]
			weights[n-2], weights[n-1] = -dxN/dxM, 1+dxN/dxM
		}
	case symbol.OpBoundaryGradient:
		switch {
		case hasBC && bc.Type == symbol.Neumann:
			additive = bc.Expr
		case n == 1:
		case side == symbol.SideLeft:
			dx := nodes[1] - nodes[0]
			weights[0], weights[1] = -1/dx, 1/dx
		default:
			dx := nodes[n-1] - nodes[n-2]
			weights[n-2], weights[n-1] = -1/dx, 1/dx
		}
	}

	out := symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, row(weights))), disc)
	out = symbol.WithDomains(out, op.Domains())
	return symbol.AddOf(out, additive), nil
}

// ============================================================
// Other capabilities
// ============================================================

// MassMatrix is the identity on the nodes of sym's domain.
func (fv *FiniteVolume) MassMatrix(sym symbol.Expr, _ *symbol.BoundaryConditions) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	return symbol.NewMatrix(kronEye(repeats, eye(sub.Npts()))), nil
}

// InternalNeumannCondition is the gradient across the junction between the
// last node of the left piece and the first node of the right piece.
func (fv *FiniteVolume) InternalNeumannCondition(leftDisc, rightDisc symbol.Expr, left, right *mesh.SubMesh) (symbol.Expr, error) {
	ln, rn := left.Npts(), right.Npts()
	lsize, err := symbol.Size(leftDisc)
	if err != nil {
		return nil, err
	}
	rsize, err := symbol.Size(rightDisc)
	if err != nil {
		return nil, err
	}
	repeats := lsize / ln
	if repeats != rsize/rn {
		return nil, fmt.Errorf("%w: pieces repeat %d and %d times", mesh.ErrMesh, repeats, rsize/rn)
	}
	last := kronEye(repeats, row(unit(ln, ln-1)))
	first := kronEye(repeats, row(unit(rn, 0)))
	leftLast := symbol.MatMulOf(symbol.NewMatrix(last), leftDisc)
	rightFirst := symbol.MatMulOf(symbol.NewMatrix(first), rightDisc)
	dx := right.Nodes[0] - left.Nodes[ln-1]
	return symbol.DivOf(symbol.SubOf(rightFirst, leftLast), symbol.NewScalar(dx)), nil
}

// PreprocessExternalVariables adds Neumann conditions equal to the
// extrapolated boundary gradients, so that gradients of an external variable
// can be taken on every edge.
func (fv *FiniteVolume) PreprocessExternalVariables(v symbol.Expr) (*symbol.BoundaryConditions, error) {
	out := symbol.NewBoundaryConditions()
	if v.Domains().IsEmpty() {
		return out, nil
	}
	out.Set(v, symbol.SideConditions{
		symbol.SideLeft:  {Expr: symbol.BoundaryGradient(v, symbol.SideLeft), Type: symbol.Neumann},
		symbol.SideRight: {Expr: symbol.BoundaryGradient(v, symbol.SideRight), Type: symbol.Neumann},
	})
	return out, nil
}

// UpwindOrDownwind adds a single ghost node on the upstream side, giving
// values on the n+1 edges. It needs a Dirichlet condition on that side.
func (fv *FiniteVolume) UpwindOrDownwind(sym, disc symbol.Expr, bcs *symbol.BoundaryConditions, op symbol.SpatialOp) (symbol.Expr, error) {
	sides, ok := bcs.Get(sym.ID())
	if !ok {
		return nil, model.Errorf(sym.Name(), "boundary conditions must be provided for %s", op)
	}
	side := symbol.SideLeft
	if op == symbol.OpDownwind {
		side = symbol.SideRight
	}
	bc, ok := sides[side]
	if !ok || bc.Type != symbol.Dirichlet {
		return nil, model.Errorf(sym.Name(), "a Dirichlet condition on the %s side must be provided for %s", side, op)
	}
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	ext, xs := ghostExtension(sub, side == symbol.SideLeft, side == symbol.SideRight)
	out := symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, ext)), disc)
	ghost := 0
	if side == symbol.SideRight {
		ghost = len(xs) - 1
	}
	term, err := boundaryTerm(scaled(unit(len(xs), ghost), 2), repeats, bc.Expr)
	if err != nil {
		return nil, err
	}
	return symbol.AddOf(out, term), nil
}

// DeltaFunction places the child in the first or last cell, scaled so the
// integral over the domain equals the child.
func (fv *FiniteVolume) DeltaFunction(sym *symbol.DeltaFunction, disc symbol.Expr) (symbol.Expr, error) {
	sub, repeats, err := fv.primary(sym.Domains())
	if err != nil {
		return nil, err
	}
	n := sub.Npts()
	w := sub.Widths()
	idx := 0
	if sym.Side() == symbol.SideRight {
		idx = n - 1
	}
	width := sub.Edges[n] - sub.Edges[0]
	col := scaled(unit(n, idx), width/w[idx])
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, column(col))), disc), nil
}

// ProcessBinaryOperators moves a node-valued operand onto the edges when the
// other operand lives on the edges, then rebuilds the operator.
func (fv *FiniteVolume) ProcessBinaryOperators(bin *symbol.Binary, left, right, discLeft, discRight symbol.Expr) (symbol.Expr, error) {
	if bin.Op() != symbol.OpMatMul {
		sub, repeats, err := fv.primary(bin.Domains())
		if err == nil && sub.Dimension == 1 {
			n := sub.Npts()
			ls, lerr := symbol.Size(discLeft)
			rs, rerr := symbol.Size(discRight)
			if lerr == nil && rerr == nil {
				switch {
				case ls == (n+1)*repeats && rs == n*repeats:
					discRight = nodeToEdge(discRight, n, repeats)
				case rs == (n+1)*repeats && ls == n*repeats:
					discLeft = nodeToEdge(discLeft, n, repeats)
				}
			}
		}
	}
	return fv.Base.ProcessBinaryOperators(bin, left, right, discLeft, discRight)
}

// nodeToEdge averages neighbouring nodes onto interior edges and
// extrapolates linearly onto the two boundary edges.
func nodeToEdge(disc symbol.Expr, n, repeats int) symbol.Expr {
	m := mat.NewDense(n+1, n, nil)
	if n == 1 {
		m.Set(0, 0, 1)
		m.Set(1, 0, 1)
	} else {
		m.Set(0, 0, 1.5)
		m.Set(0, 1, -0.5)
		for i := 1; i < n; i++ {
			m.Set(i, i-1, 0.5)
			m.Set(i, i, 0.5)
		}
		m.Set(n, n-2, -0.5)
		m.Set(n, n-1, 1.5)
	}
	return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, m)), disc)
}

// ============================================================
// Helpers
// ============================================================

// ghostExtension returns the matrix that inserts ghost rows (as -u at the
// boundary node) and the node positions including ghosts.
func ghostExtension(sub *mesh.SubMesh, left, right bool) (*mat.Dense, []float64) {
	n := sub.Npts()
	m := n + b2i(left) + b2i(right)
	ext := mat.NewDense(m, n, nil)
	off := b2i(left)
	for i := 0; i < n; i++ {
		ext.Set(i+off, i, 1)
	}
	xs := make([]float64, 0, m)
	if left {
		ext.Set(0, 0, -1)
		xs = append(xs, 2*sub.Edges[0]-sub.Nodes[0])
	}
	xs = append(xs, sub.Nodes...)
	if right {
		ext.Set(m-1, n-1, -1)
		xs = append(xs, 2*sub.Edges[n]-sub.Nodes[n-1])
	}
	return ext, xs
}

// gradientMatrix differences consecutive points: row i is
// (u[i+1]-u[i])/(x[i+1]-x[i]).
func gradientMatrix(xs []float64) *mat.Dense {
	m := len(xs)
	g := mat.NewDense(m-1, m, nil)
	for i := 0; i < m-1; i++ {
		dx := xs[i+1] - xs[i]
		g.Set(i, i, -1/dx)
		g.Set(i, i+1, 1/dx)
	}
	return g
}

// boundaryTerm is the contribution of a boundary value entering each of
// repeats blocks through the column g. The value may be a scalar shared by
// every block or hold one entry per block.
func boundaryTerm(g []float64, repeats int, value symbol.Expr) (symbol.Expr, error) {
	size, err := symbol.Size(value)
	if err != nil {
		return nil, err
	}
	switch size {
	case 1:
		return symbol.MulOf(symbol.NewMatrix(kronOnes(repeats, column(g))), value), nil
	case repeats:
		return symbol.MatMulOf(symbol.NewMatrix(kronEye(repeats, column(g))), value), nil
	}
	return nil, fmt.Errorf("%w: boundary value has %d entries, want 1 or %d", symbol.ErrShape, size, repeats)
}

func unit(n, i int) []float64 {
	v := make([]float64, n)
	v[i] = 1
	return v
}

func scaled(v []float64, s float64) []float64 {
	for i := range v {
		v[i] *= s
	}
	return v
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
