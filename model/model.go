// Package model holds the continuous model that gets discretised and the
// payload the discretisation attaches to it.
package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/godisc/symbol"
)

// EventType classifies an event for the downstream solver.
type EventType string

const (
	EventTermination   EventType = "termination"
	EventDiscontinuity EventType = "discontinuity"
	EventSwitch        EventType = "switch"
)

// Event is a named expression whose sign change the solver watches for.
type Event struct {
	Name       string
	Expression symbol.Expr
	Type       EventType
}

// Model is a set of equations over named domains.
type Model struct {
	Name               string
	RHS                *Equations
	Algebraic          *Equations
	InitialConditions  *Equations
	BoundaryConditions *symbol.BoundaryConditions
	Variables          *Outputs
	Events             []Event
	// ExternalVariables are supplied at solve time. Each must also be a
	// named entry of Variables.
	ExternalVariables []symbol.StateVariable
	LengthScales      map[string]symbol.Expr
	Timescale         symbol.Expr

	discretised *Discretised
}

// New returns an empty model.
func New(name string) *Model {
	return &Model{
		Name:               name,
		RHS:                NewEquations(),
		Algebraic:          NewEquations(),
		InitialConditions:  NewEquations(),
		BoundaryConditions: symbol.NewBoundaryConditions(),
		Variables:          NewOutputs(),
		LengthScales:       map[string]symbol.Expr{},
		Timescale:          symbol.NewScalar(1),
	}
}

// NewCopy returns a model with the same name and copies of every container.
// The copy is never flagged as discretised.
func (m *Model) NewCopy() *Model {
	ls := make(map[string]symbol.Expr, len(m.LengthScales))
	for k, v := range m.LengthScales {
		ls[k] = v
	}
	return &Model{
		Name:               m.Name,
		RHS:                m.RHS.Copy(),
		Algebraic:          m.Algebraic.Copy(),
		InitialConditions:  m.InitialConditions.Copy(),
		BoundaryConditions: m.BoundaryConditions.Copy(),
		Variables:          m.Variables.Copy(),
		Events:             append([]Event(nil), m.Events...),
		ExternalVariables:  append([]symbol.StateVariable(nil), m.ExternalVariables...),
		LengthScales:       ls,
		Timescale:          m.Timescale,
	}
}

func (m *Model) IsDiscretised() bool { return m.discretised != nil }

// Discretised returns the discretisation payload, or nil.
func (m *Model) Discretised() *Discretised { return m.discretised }

// SetDiscretised attaches the discretisation payload and flags the model.
func (m *Model) SetDiscretised(d *Discretised) { m.discretised = d }

// IsEmpty reports whether the model has no equations and no outputs.
func (m *Model) IsEmpty() bool {
	return m.RHS.Len() == 0 && m.Algebraic.Len() == 0 && m.Variables.Len() == 0
}

// ============================================================
// Well-posedness
// ============================================================

// CheckWellPosedness checks that no variable has two equations, every
// variable used in an equation has an equation or is external, and every
// equation has an initial condition.
func (m *Model) CheckWellPosedness() error {
	if err := m.checkNoRepeatedKeys(); err != nil {
		return err
	}
	if err := m.checkWellDetermined(); err != nil {
		return err
	}
	return m.checkInitialConditions()
}

func (m *Model) checkNoRepeatedKeys() error {
	for _, k := range m.RHS.Keys() {
		if m.Algebraic.Has(k.ID()) {
			return Errorf(k.Name(), "multiple equations specified")
		}
	}
	return nil
}

func (m *Model) checkWellDetermined() error {
	keys := map[symbol.ID]struct{}{}
	add := func(v symbol.StateVariable) {
		keys[v.ID()] = struct{}{}
		if cv, ok := v.(*symbol.ConcatenationVariable); ok {
			for _, c := range cv.Variables() {
				keys[c.ID()] = struct{}{}
			}
		}
	}
	for _, k := range m.RHS.Keys() {
		add(k)
	}
	for _, k := range m.Algebraic.Keys() {
		add(k)
	}
	for _, v := range m.ExternalVariables {
		add(v)
	}

	var missing []string
	eqns := append(m.RHS.Values(), m.Algebraic.Values()...)
	for _, eq := range eqns {
		symbol.Walk(eq, func(n symbol.Expr) bool {
			id, name := n.ID(), n.Name()
			switch v := n.(type) {
			case *symbol.Variable:
			case *symbol.VariableDot:
				id = v.Variable().ID()
			default:
				return true
			}
			if _, ok := keys[id]; !ok {
				missing = append(missing, name)
				keys[id] = struct{}{}
			}
			return true
		})
	}
	if len(missing) > 0 {
		return &Error{Reason: fmt.Sprintf("no key set for variables %s; include them in rhs, algebraic or external variables", strings.Join(missing, ", "))}
	}
	return nil
}

func (m *Model) checkInitialConditions() error {
	for _, k := range append(m.RHS.Keys(), m.Algebraic.Keys()...) {
		if !m.InitialConditions.Has(k.ID()) {
			return Errorf(k.Name(), "no initial condition given")
		}
	}
	return nil
}

// ============================================================
// Discretised payload
// ============================================================

// SliceMap maps a variable to its ranges of the state vector.
type SliceMap map[symbol.ID][]symbol.Slice

// Bounds holds per-entry bounds aligned with the state vector.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Discretised is what the discretisation attaches to a model.
type Discretised struct {
	Slices      SliceMap
	SliceOwners map[symbol.ID]symbol.Expr
	Bounds      Bounds
	// ExternalNames lists the registered external variable names.
	ExternalNames []string
	// ExternalVariables holds the discretised external variables, in the
	// order the model declares them.
	ExternalVariables []symbol.Expr

	ConcatenatedRHS               symbol.Expr
	ConcatenatedAlgebraic         symbol.Expr
	ConcatenatedInitialConditions symbol.Expr
	// MassMatrix is block diagonal: the spatial mass matrix of each rhs
	// variable, then zeros for the algebraic ones.
	MassMatrix *mat.Dense
}

// Size is the length of the state vector.
func (d *Discretised) Size() int { return len(d.Bounds.Lower) }
