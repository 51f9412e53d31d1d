package symbol

import (
	"github.com/goccy/go-json"
)

// ============================================================
// JSON Export
// ============================================================

// ToJSON serialises e as a nested object with "type", "name" and "children"
// fields plus kind-specific attributes.
func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(toJSON(e))
	return string(b), err
}

func toJSON(e Expr) map[string]interface{} {
	m := map[string]interface{}{
		"type": e.Kind().String(),
		"name": e.Name(),
	}
	if d := e.Domains(); !d.IsEmpty() {
		m["domain"] = d.Primary
		if len(d.Secondary) > 0 {
			m["secondary"] = d.Secondary
		}
	}
	switch v := e.(type) {
	case *Scalar:
		m["value"] = v.value
	case *Array:
		r, c := v.data.Dims()
		m["shape"] = []int{r, c}
		m["values"] = v.data.RawMatrix().Data
	case *StateVector:
		m["slices"] = v.slices
	case *Binary:
		m["op"] = v.op.String()
	case *Unary:
		m["op"] = v.op.String()
	case *SpatialOperator:
		m["op"] = v.op.String()
	case *BoundaryOperator:
		m["op"] = v.op.String()
		m["side"] = v.side
	case *Broadcast:
		m["broadcast"] = v.kind.String()
	case *Index:
		m["start"], m["end"] = v.start, v.end
	case *DomainConcatenation:
		m["block_sizes"] = v.blockSizes
		m["repeats"] = v.repeats
	case *InputParameter:
		m["expected_size"] = v.expectedSize
	}
	if children := e.Children(); len(children) > 0 {
		out := make([]interface{}, len(children))
		for i, c := range children {
			out[i] = toJSON(c)
		}
		m["children"] = out
	}
	return m
}
