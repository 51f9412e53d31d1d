// Package discretisation replaces the continuous operators of a model by
// matrices acting on one flat state vector.
//
// A Discretisation is bound to a mesh and to one spatial method per domain.
// ProcessModel drives a whole model through the pass:
//
//   - every rhs and algebraic variable gets a slice of the state vector,
//   - boundary conditions are discretised and internal conditions are derived
//     between the pieces of concatenated variables,
//   - every equation, output, event and length scale is rewritten, and
//   - the result is checked for consistent shapes and bounds.
//
// A Discretisation holds per-run state (slices, boundary conditions, external
// variables and a rewrite cache) and is not safe for concurrent use. Use
// CopyWithDiscretisedSymbols to get an independent copy.
package discretisation

import (
	"errors"
	"fmt"

	"github.com/njchilds90/godisc/mesh"
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/spatial"
	"github.com/njchilds90/godisc/symbol"
)

// ErrDiscretisation reports a discretisation that is configured wrongly, such
// as a domain without a spatial method.
var ErrDiscretisation = errors.New("discretisation error")

// Macroscale is a method key that stands for the three electrode-level
// domains.
const Macroscale = "macroscale"

var macroscaleDomains = []string{"negative electrode", "separator", "positive electrode"}

// externalEntry records one registered external variable. Pieces of a
// concatenated external variable carry their parent and their range inside
// the parent's buffer.
type externalEntry struct {
	name       string
	variable   *symbol.Variable
	parent     *symbol.ConcatenationVariable
	start, end int
}

// Discretisation is the per-run state of the discretisation pass.
type Discretisation struct {
	mesh    *mesh.Mesh
	methods map[string]spatial.Method

	slices      model.SliceMap
	sliceOwners map[symbol.ID]symbol.Expr
	bounds      model.Bounds
	bcs         *symbol.BoundaryConditions
	externals   []externalEntry
	cache       map[symbol.ID]symbol.Expr
}

// New binds each method to m. The "macroscale" key is expanded to the
// electrode-level domains. A zero-dimensional method must be given a
// zero-dimensional submesh.
func New(m *mesh.Mesh, methods map[string]spatial.Method) (*Discretisation, error) {
	d := &Discretisation{
		mesh:    m,
		methods: map[string]spatial.Method{},
		bcs:     symbol.NewBoundaryConditions(),
	}
	d.resetSlices()
	if m == nil {
		return d, nil
	}
	for domain, method := range methods {
		if domain == Macroscale {
			for _, sub := range macroscaleDomains {
				d.methods[sub] = method
			}
			continue
		}
		d.methods[domain] = method
	}
	for domain, method := range d.methods {
		method.Build(m)
		if _, ok := method.(*spatial.ZeroDimensional); !ok {
			continue
		}
		sub, err := m.Get(domain)
		if err != nil {
			return nil, err
		}
		if sub.Dimension != 0 {
			return nil, fmt.Errorf("%w: zero-dimensional spatial method for the %s domain requires a zero-dimensional submesh", ErrDiscretisation, domain)
		}
	}
	return d, nil
}

// Mesh returns the mesh the discretisation was built on.
func (d *Discretisation) Mesh() *mesh.Mesh { return d.mesh }

// Slices returns the slice map of the last allocation.
func (d *Discretisation) Slices() model.SliceMap { return d.slices }

// Bounds returns the bounds of the last allocation.
func (d *Discretisation) Bounds() model.Bounds { return d.bounds }

// BoundaryConditions returns the discretised boundary condition table.
func (d *Discretisation) BoundaryConditions() *symbol.BoundaryConditions { return d.bcs }

// SetBoundaryConditions replaces the boundary condition table and clears the
// rewrite cache.
func (d *Discretisation) SetBoundaryConditions(bcs *symbol.BoundaryConditions) {
	if bcs == nil {
		bcs = symbol.NewBoundaryConditions()
	}
	d.bcs = bcs
	d.resetCache()
}

// ExternalNames returns the names of the registered external variables.
func (d *Discretisation) ExternalNames() []string {
	names := make([]string, 0, len(d.externals))
	seen := map[string]bool{}
	for _, e := range d.externals {
		if !seen[e.name] {
			seen[e.name] = true
			names = append(names, e.name)
		}
	}
	return names
}

// CopyWithDiscretisedSymbols returns a Discretisation sharing the mesh and
// spatial methods, with its own copies of the slices, boundary conditions,
// external variables and rewrite cache.
func (d *Discretisation) CopyWithDiscretisedSymbols() *Discretisation {
	c := &Discretisation{
		mesh:        d.mesh,
		methods:     d.methods,
		slices:      make(model.SliceMap, len(d.slices)),
		sliceOwners: make(map[symbol.ID]symbol.Expr, len(d.sliceOwners)),
		bounds: model.Bounds{
			Lower: append([]float64(nil), d.bounds.Lower...),
			Upper: append([]float64(nil), d.bounds.Upper...),
		},
		bcs:       d.bcs.Copy(),
		externals: append([]externalEntry(nil), d.externals...),
		cache:     make(map[symbol.ID]symbol.Expr, len(d.cache)),
	}
	for id, s := range d.slices {
		c.slices[id] = append([]symbol.Slice(nil), s...)
	}
	for id, o := range d.sliceOwners {
		c.sliceOwners[id] = o
	}
	for id, e := range d.cache {
		c.cache[id] = e
	}
	return c
}

func (d *Discretisation) resetCache() { d.cache = map[symbol.ID]symbol.Expr{} }

func (d *Discretisation) resetSlices() {
	d.slices = model.SliceMap{}
	d.sliceOwners = map[symbol.ID]symbol.Expr{}
	d.bounds = model.Bounds{}
	d.resetCache()
}

// method returns the spatial method of domain.
func (d *Discretisation) method(domain string) (spatial.Method, error) {
	m, ok := d.methods[domain]
	if !ok {
		return nil, fmt.Errorf("%w: spatial method has not been given for domain %q", ErrDiscretisation, domain)
	}
	return m, nil
}

// methodOf returns the spatial method of e's first primary domain.
func (d *Discretisation) methodOf(e symbol.Expr) (spatial.Method, error) {
	dom := e.Domains()
	if dom.IsEmpty() {
		return nil, fmt.Errorf("%w: %s %q has no domain", ErrDiscretisation, e.Kind(), e.Name())
	}
	return d.method(dom.Primary[0])
}

// variableSize is the number of state entries e occupies: 1 without a
// domain, otherwise the node count of each primary domain times the
// auxiliary repeats.
func (d *Discretisation) variableSize(e symbol.Expr) (int, error) {
	dom := e.Domains()
	if dom.IsEmpty() {
		return 1, nil
	}
	m, err := d.methodOf(e)
	if err != nil {
		return 0, err
	}
	repeats, err := m.AuxiliaryDomainRepeats(dom)
	if err != nil {
		return 0, err
	}
	size := 0
	for _, name := range dom.Primary {
		sub, err := d.mesh.Get(name)
		if err != nil {
			return 0, err
		}
		size += sub.NptsForBroadcastToNodes() * repeats
	}
	return size, nil
}
