package model

import "github.com/njchilds90/godisc/symbol"

// Equations maps state variables to expressions, keeping insertion order.
// The order of rhs and algebraic keys fixes the state vector layout.
type Equations struct {
	keys []symbol.StateVariable
	vals map[symbol.ID]symbol.Expr
}

func NewEquations() *Equations {
	return &Equations{vals: map[symbol.ID]symbol.Expr{}}
}

// Set assigns eq to v, appending v to the key order on first use.
func (e *Equations) Set(v symbol.StateVariable, eq symbol.Expr) {
	if _, ok := e.vals[v.ID()]; !ok {
		e.keys = append(e.keys, v)
	}
	e.vals[v.ID()] = eq
}

func (e *Equations) Get(id symbol.ID) (symbol.Expr, bool) {
	if e == nil {
		return nil, false
	}
	eq, ok := e.vals[id]
	return eq, ok
}

func (e *Equations) Has(id symbol.ID) bool {
	_, ok := e.Get(id)
	return ok
}

// Delete removes the key with the given ID.
func (e *Equations) Delete(id symbol.ID) {
	if _, ok := e.vals[id]; !ok {
		return
	}
	delete(e.vals, id)
	for i, k := range e.keys {
		if k.ID() == id {
			e.keys = append(e.keys[:i:i], e.keys[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (e *Equations) Keys() []symbol.StateVariable {
	if e == nil {
		return nil
	}
	return append([]symbol.StateVariable(nil), e.keys...)
}

// Values returns the equations in key order.
func (e *Equations) Values() []symbol.Expr {
	if e == nil {
		return nil
	}
	out := make([]symbol.Expr, len(e.keys))
	for i, k := range e.keys {
		out[i] = e.vals[k.ID()]
	}
	return out
}

func (e *Equations) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

func (e *Equations) Copy() *Equations {
	out := NewEquations()
	for _, k := range e.Keys() {
		out.Set(k, e.vals[k.ID()])
	}
	return out
}

// Outputs maps output names to expressions, keeping insertion order.
type Outputs struct {
	names []string
	vals  map[string]symbol.Expr
}

func NewOutputs() *Outputs {
	return &Outputs{vals: map[string]symbol.Expr{}}
}

func (o *Outputs) Set(name string, e symbol.Expr) {
	if _, ok := o.vals[name]; !ok {
		o.names = append(o.names, name)
	}
	o.vals[name] = e
}

func (o *Outputs) Get(name string) (symbol.Expr, bool) {
	if o == nil {
		return nil, false
	}
	e, ok := o.vals[name]
	return e, ok
}

// NameOf returns the first output name bound to the symbol with the given ID.
func (o *Outputs) NameOf(id symbol.ID) (string, bool) {
	for _, n := range o.Names() {
		if o.vals[n].ID() == id {
			return n, true
		}
	}
	return "", false
}

// Names returns output names in insertion order.
func (o *Outputs) Names() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.names...)
}

func (o *Outputs) Len() int {
	if o == nil {
		return 0
	}
	return len(o.names)
}

func (o *Outputs) Copy() *Outputs {
	out := NewOutputs()
	for _, n := range o.Names() {
		out.Set(n, o.vals[n])
	}
	return out
}
