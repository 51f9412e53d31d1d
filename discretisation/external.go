package discretisation

import (
	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// preprocessExternalVariables lets each external variable's spatial method
// add boundary conditions to the model, such as extrapolated boundary
// fluxes, before the boundary conditions are discretised.
func (d *Discretisation) preprocessExternalVariables(m *model.Model) error {
	for _, v := range m.ExternalVariables {
		if v.Domains().IsEmpty() {
			continue
		}
		method, err := d.methodOf(v)
		if err != nil {
			return err
		}
		extra, err := method.PreprocessExternalVariables(v)
		if err != nil {
			return err
		}
		for _, owner := range extra.Owners() {
			sides, _ := extra.Get(owner.ID())
			m.BoundaryConditions.Set(owner, sides)
		}
	}
	return nil
}

// setExternalVariables registers the model's external variables under their
// output names. Each piece of a concatenated external variable is registered
// with its range inside the parent.
func (d *Discretisation) setExternalVariables(m *model.Model) error {
	d.externals = nil
	for _, v := range m.ExternalVariables {
		name, ok := m.Variables.NameOf(v.ID())
		if !ok {
			return model.Errorf(v.Name(), "must be in the model variables to be set as an external variable")
		}
		switch ev := v.(type) {
		case *symbol.Variable:
			d.externals = append(d.externals, externalEntry{name: name, variable: ev})
		case *symbol.ConcatenationVariable:
			start, end := 0, 0
			for _, child := range ev.Variables() {
				method, err := d.methodOf(child)
				if err != nil {
					return err
				}
				repeats, err := method.AuxiliaryDomainRepeats(child.Domains())
				if err != nil {
					return err
				}
				if repeats > 1 {
					return model.Errorf(ev.Name(), "cannot create 2D external variable with concatenations")
				}
				n, err := d.variableSize(child)
				if err != nil {
					return err
				}
				end += n
				d.externals = append(d.externals, externalEntry{name: name, variable: child, parent: ev, start: start, end: end})
				start = end
			}
		}
	}
	return nil
}

func (d *Discretisation) external(id symbol.ID) (externalEntry, bool) {
	for _, e := range d.externals {
		if e.variable.ID() == id {
			return e, true
		}
	}
	return externalEntry{}, false
}

// isExternal reports whether id is a registered external variable or the
// parent of registered pieces.
func (d *Discretisation) isExternal(id symbol.ID) bool {
	for _, e := range d.externals {
		if e.variable.ID() == id || (e.parent != nil && e.parent.ID() == id) {
			return true
		}
	}
	return false
}

// processExternal builds the placeholder for a registered external
// variable: the whole buffer for a standalone variable, or the piece's
// range of the parent's buffer.
func (d *Discretisation) processExternal(e externalEntry) (symbol.Expr, error) {
	if e.parent == nil {
		n, err := d.variableSize(e.variable)
		if err != nil {
			return nil, err
		}
		return symbol.NewExternalVariable(e.variable.Name(), n, e.variable.Domains()), nil
	}
	n, err := d.variableSize(e.parent)
	if err != nil {
		return nil, err
	}
	ext := symbol.NewExternalVariable(e.name, n, e.parent.Domains())
	return symbol.WithDomains(symbol.IndexOf(ext, e.start, e.end), e.variable.Domains()), nil
}
