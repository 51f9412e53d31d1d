package discretisation

import (
	"fmt"

	"github.com/njchilds90/godisc/model"
	"github.com/njchilds90/godisc/symbol"
)

// SetVariableSlices assigns consecutive ranges of the state vector to vars,
// in order, and replicates each variable's bounds over its range. The pieces
// of a concatenation variable get one range per auxiliary repeat block. The
// previous slices and the rewrite cache are discarded.
func (d *Discretisation) SetVariableSlices(vars []symbol.StateVariable) error {
	slices := model.SliceMap{}
	owners := map[symbol.ID]symbol.Expr{}
	var lower, upper []float64
	start, end := 0, 0

	for _, v := range vars {
		if cv, ok := v.(*symbol.ConcatenationVariable); ok {
			m, err := d.methodOf(cv)
			if err != nil {
				return err
			}
			repeats, err := m.AuxiliaryDomainRepeats(cv.Domains())
			if err != nil {
				return err
			}
			pieceStart := start
			for i := 0; i < repeats; i++ {
				for _, child := range cv.Variables() {
					for _, name := range child.Domains().Primary {
						sub, err := d.mesh.Get(name)
						if err != nil {
							return err
						}
						end += sub.NptsForBroadcastToNodes()
					}
					slices[child.ID()] = append(slices[child.ID()], symbol.Slice{Start: pieceStart, End: end})
					owners[child.ID()] = child
					pieceStart = end
				}
			}
		} else {
			n, err := d.variableSize(v)
			if err != nil {
				return fmt.Errorf("size of %q: %w", v.Name(), err)
			}
			end += n
		}

		slices[v.ID()] = append(slices[v.ID()], symbol.Slice{Start: start, End: end})
		owners[v.ID()] = v
		lo, hi := v.Bounds()
		for i := start; i < end; i++ {
			lower = append(lower, lo)
			upper = append(upper, hi)
		}
		start = end
	}

	d.slices = slices
	d.sliceOwners = owners
	d.bounds = model.Bounds{Lower: lower, Upper: upper}
	d.resetCache()
	return nil
}
