package symbol

import "sort"

// ============================================================
// Tree Walking
// ============================================================

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the node just visited.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// HasKind reports whether e or any descendant has one of the given kinds.
func HasKind(e Expr, kinds ...Kind) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if found {
			return false
		}
		for _, k := range kinds {
			if n.Kind() == k {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Collect returns every node of the given kinds, in pre-order.
func Collect(e Expr, kinds ...Kind) []Expr {
	var out []Expr
	Walk(e, func(n Expr) bool {
		for _, k := range kinds {
			if n.Kind() == k {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

// VariableNames returns the sorted, de-duplicated names of every variable
// referenced by exprs, including variables under a time derivative.
func VariableNames(exprs ...Expr) []string {
	seen := map[string]struct{}{}
	for _, e := range exprs {
		Walk(e, func(n Expr) bool {
			switch v := n.(type) {
			case *Variable, *ExternalVariable:
				seen[n.Name()] = struct{}{}
			case *VariableDot:
				seen[v.Variable().Name()] = struct{}{}
			}
			return true
		})
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ============================================================
// Copies
// ============================================================

// WithDomains returns a copy of e, under a fresh ID, carrying domains d.
func WithDomains(e Expr, d Domains) Expr {
	c := e.clone()
	c.node().domains = d
	return c
}

// WithChildren returns a copy of e, under a fresh ID, with its children
// replaced. The copy keeps e's kind, name, operator and domains.
func WithChildren(e Expr, children ...Expr) Expr {
	c := e.clone()
	c.node().children = children
	return c
}

// ============================================================
// Constant Simplification
// ============================================================

var constantKinds = map[Kind]bool{
	KindScalar:              true,
	KindArray:               true,
	KindBinary:              true,
	KindUnary:               true,
	KindFunction:            true,
	KindIndex:               true,
	KindNumpyConcatenation:  true,
	KindDomainConcatenation: true,
}

// IsConstant reports whether e evaluates without any environment.
func IsConstant(e Expr) bool {
	constant := true
	Walk(e, func(n Expr) bool {
		if !constantKinds[n.Kind()] {
			constant = false
		}
		return constant
	})
	return constant
}

// SimplifyIfConstant replaces a constant expression by its value: a Scalar
// when the value is 1x1, an Array otherwise. Non-constant expressions and
// those that fail to evaluate are returned unchanged.
func SimplifyIfConstant(e Expr) Expr {
	switch e.Kind() {
	case KindScalar, KindArray:
		return e
	}
	if !IsConstant(e) {
		return e
	}
	v, err := e.evaluate(&Env{})
	if err != nil {
		return e
	}
	if r, c := v.Dims(); r == 1 && c == 1 {
		s := NewScalar(v.At(0, 0))
		s.domains = e.Domains()
		return s
	}
	return NewArrayWithDomains(v, e.Domains())
}

// Copy returns a copy of e under a fresh ID.
func Copy(e Expr) Expr { return e.clone() }
