package symbol

import (
	"fmt"
	"sort"
)

// BCType is the kind of a boundary condition.
type BCType int

const (
	Dirichlet BCType = iota
	Neumann
)

func (t BCType) String() string {
	if t == Neumann {
		return "Neumann"
	}
	return "Dirichlet"
}

// ParseBCType parses "Dirichlet" or "Neumann".
func ParseBCType(s string) (BCType, error) {
	switch s {
	case "Dirichlet", "dirichlet":
		return Dirichlet, nil
	case "Neumann", "neumann":
		return Neumann, nil
	}
	return 0, fmt.Errorf("symbol: unknown boundary condition type %q", s)
}

// BoundaryCondition is the value (Dirichlet) or flux (Neumann) imposed at one side.
type BoundaryCondition struct {
	Expr Expr
	Type BCType
}

// SideConditions maps a side name ("left", "right", or a tab name) to its condition.
type SideConditions map[string]BoundaryCondition

// Sides returns the side names in sorted order.
func (s SideConditions) Sides() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s SideConditions) clone() SideConditions {
	out := make(SideConditions, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// BoundaryConditions is a table of side conditions keyed by owner symbol.
// Owners are kept in insertion order. The zero value is not usable; call
// NewBoundaryConditions.
type BoundaryConditions struct {
	order  []ID
	owners map[ID]Expr
	sides  map[ID]SideConditions
}

func NewBoundaryConditions() *BoundaryConditions {
	return &BoundaryConditions{owners: map[ID]Expr{}, sides: map[ID]SideConditions{}}
}

// Set replaces all side conditions of owner.
func (b *BoundaryConditions) Set(owner Expr, sides SideConditions) {
	id := owner.ID()
	if _, ok := b.owners[id]; !ok {
		b.order = append(b.order, id)
	}
	b.owners[id] = owner
	b.sides[id] = sides.clone()
}

// SetSide sets the condition on one side of owner, keeping the other sides.
func (b *BoundaryConditions) SetSide(owner Expr, side string, bc BoundaryCondition) {
	id := owner.ID()
	if _, ok := b.owners[id]; !ok {
		b.Set(owner, SideConditions{})
	}
	b.sides[id][side] = bc
}

// Get returns the side conditions of the owner with the given ID.
func (b *BoundaryConditions) Get(id ID) (SideConditions, bool) {
	if b == nil {
		return nil, false
	}
	s, ok := b.sides[id]
	return s, ok
}

func (b *BoundaryConditions) Has(id ID) bool {
	_, ok := b.Get(id)
	return ok
}

// Owner returns the owner symbol registered under id.
func (b *BoundaryConditions) Owner(id ID) Expr {
	if b == nil {
		return nil
	}
	return b.owners[id]
}

// Owners returns the owners in insertion order.
func (b *BoundaryConditions) Owners() []Expr {
	if b == nil {
		return nil
	}
	out := make([]Expr, len(b.order))
	for i, id := range b.order {
		out[i] = b.owners[id]
	}
	return out
}

func (b *BoundaryConditions) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// Delete removes owner id from the table.
func (b *BoundaryConditions) Delete(id ID) {
	if _, ok := b.owners[id]; !ok {
		return
	}
	delete(b.owners, id)
	delete(b.sides, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

// Copy returns an independent copy of the table. Expressions are shared.
func (b *BoundaryConditions) Copy() *BoundaryConditions {
	out := NewBoundaryConditions()
	if b == nil {
		return out
	}
	for _, id := range b.order {
		out.Set(b.owners[id], b.sides[id])
	}
	return out
}
