// Package mesh holds the grids that spatial methods discretise onto: one
// SubMesh per named domain, collected in a Mesh.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrDomainNotFound is returned when a domain has no submesh.
	ErrDomainNotFound = errors.New("mesh: domain not found")
	// ErrMesh reports an invalid mesh construction.
	ErrMesh = errors.New("mesh: invalid mesh")
)

// Coordinate systems.
const (
	Cartesian        = "cartesian"
	CylindricalPolar = "cylindrical polar"
	SphericalPolar   = "spherical polar"
)

// SubMesh is the grid of a single domain.
type SubMesh struct {
	Dimension int
	Edges     []float64
	Nodes     []float64
	CoordSys  string
	// Tabs maps "negative tab" and "positive tab" to the side ("left" or
	// "right") they sit on. Only set on current collector meshes.
	Tabs map[string]string
	// Points is the number of points of a 2D mesh.
	Points int
}

// Uniform1D builds n equal cells on [lo, hi].
func Uniform1D(lo, hi float64, n int, coordSys string) (*SubMesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one cell, got %d", ErrMesh, n)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: empty interval [%g, %g]", ErrMesh, lo, hi)
	}
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	return FromEdges(edges, coordSys)
}

// FromEdges builds a 1D submesh with the given, strictly increasing, edges.
func FromEdges(edges []float64, coordSys string) (*SubMesh, error) {
	if len(edges) < 2 {
		return nil, fmt.Errorf("%w: need at least two edges", ErrMesh)
	}
	if coordSys == "" {
		coordSys = Cartesian
	}
	nodes := make([]float64, len(edges)-1)
	for i := range nodes {
		if edges[i+1] <= edges[i] {
			return nil, fmt.Errorf("%w: edges must increase", ErrMesh)
		}
		nodes[i] = (edges[i] + edges[i+1]) / 2
	}
	return &SubMesh{Dimension: 1, Edges: append([]float64(nil), edges...), Nodes: nodes, CoordSys: coordSys}, nil
}

// Point builds a zero-dimensional submesh located at x.
func Point(x float64) *SubMesh {
	return &SubMesh{Dimension: 0, Nodes: []float64{x}, CoordSys: Cartesian}
}

// CurrentCollector2D builds a placeholder 2D current collector mesh of npts
// points. Only the point count is meaningful.
func CurrentCollector2D(npts int) *SubMesh {
	return &SubMesh{Dimension: 2, Points: npts, CoordSys: Cartesian}
}

// WithTabs returns s with the tab sides recorded.
func (s *SubMesh) WithTabs(negative, positive string) *SubMesh {
	s.Tabs = map[string]string{"negative tab": negative, "positive tab": positive}
	return s
}

// Npts is the number of nodes.
func (s *SubMesh) Npts() int {
	switch s.Dimension {
	case 0:
		return 1
	case 2:
		return s.Points
	}
	return len(s.Nodes)
}

// NptsForBroadcastToNodes is the number of values a variable on this
// submesh holds.
func (s *SubMesh) NptsForBroadcastToNodes() int { return s.Npts() }

// Widths returns the cell widths (edge spacing).
func (s *SubMesh) Widths() []float64 {
	return diff(s.Edges)
}

// NodeSpacing returns the distances between consecutive nodes.
func (s *SubMesh) NodeSpacing() []float64 {
	return diff(s.Nodes)
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

// ============================================================
// Mesh
// ============================================================

// Mesh maps domain names to submeshes. Lookups of several adjacent domains
// return their combination, computed once and cached.
type Mesh struct {
	sub      map[string]*SubMesh
	combined map[string]*SubMesh
}

func New() *Mesh {
	return &Mesh{sub: map[string]*SubMesh{}, combined: map[string]*SubMesh{}}
}

// Add registers the submesh of domain.
func (m *Mesh) Add(domain string, s *SubMesh) *Mesh {
	m.sub[domain] = s
	m.combined = map[string]*SubMesh{}
	return m
}

// Domains returns the registered domain names, sorted.
func (m *Mesh) Domains() []string {
	out := make([]string, 0, len(m.sub))
	for d := range m.sub {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Get returns the submesh of a single domain.
func (m *Mesh) Get(domain string) (*SubMesh, error) {
	s, ok := m.sub[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDomainNotFound, domain)
	}
	return s, nil
}

// Lookup returns the submesh covering domains in order. An empty list has no
// submesh and returns nil.
func (m *Mesh) Lookup(domains []string) (*SubMesh, error) {
	switch len(domains) {
	case 0:
		return nil, nil
	case 1:
		return m.Get(domains[0])
	}
	return m.Combine(domains...)
}

// Combine joins the 1D submeshes of adjacent domains. The right edge of each
// domain must coincide with the left edge of the next.
func (m *Mesh) Combine(domains ...string) (*SubMesh, error) {
	key := strings.Join(domains, "\x00")
	if c, ok := m.combined[key]; ok {
		return c, nil
	}
	var out *SubMesh
	for _, d := range domains {
		s, err := m.Get(d)
		if err != nil {
			return nil, err
		}
		if s.Dimension != 1 {
			return nil, fmt.Errorf("%w: cannot combine %d-dimensional domain %q", ErrMesh, s.Dimension, d)
		}
		if out == nil {
			out = &SubMesh{Dimension: 1, CoordSys: s.CoordSys, Edges: append([]float64(nil), s.Edges...), Nodes: append([]float64(nil), s.Nodes...)}
			continue
		}
		last := out.Edges[len(out.Edges)-1]
		if math.Abs(last-s.Edges[0]) > 1e-12*math.Max(1, math.Abs(last)) {
			return nil, fmt.Errorf("%w: domain %q starts at %g, previous ends at %g", ErrMesh, d, s.Edges[0], last)
		}
		out.Edges = append(out.Edges, s.Edges[1:]...)
		out.Nodes = append(out.Nodes, s.Nodes...)
	}
	m.combined[key] = out
	return out, nil
}
