package admittance

import (
	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

// DCMatrices forms the linearized DC quantities: the nodal susceptance
// matrix Bbus (nbus x nbus), the from-end branch matrix Bf
// (nbranch x nbus) and the phase-shifter injection vectors Pbusinj and
// Pfinj (per unit). Branch flows follow as Pf = Bf*Va + Pfinj and the
// nodal balance as Bbus*Va = P - Pbusinj.
func DCMatrices(baseMVA float64, buses []model.Bus, branches []model.Branch) (bbus, bf *cmat.Matrix, pbusinj, pfinj []float64, err error) {
	if err := validate(baseMVA, buses, branches); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := validateReactance(branches); err != nil {
		return nil, nil, nil, nil, err
	}
	nb, nl := len(buses), len(branches)

	bbusC := cmat.NewCOO(nb, nb)
	bfC := cmat.NewCOO(nl, nb)
	pfinj = make([]float64, nl)
	pbusinj = make([]float64, nb)

	for l := range branches {
		br := &branches[l]
		var b float64
		if br.InService {
			b = 1 / br.X
			if br.Tap != 0 {
				b /= br.Tap
			}
		}
		f, t := br.From, br.To
		bfC.Add(l, f, complex(b, 0))
		bfC.Add(l, t, complex(-b, 0))
		bbusC.Add(f, f, complex(b, 0))
		bbusC.Add(f, t, complex(-b, 0))
		bbusC.Add(t, f, complex(-b, 0))
		bbusC.Add(t, t, complex(b, 0))

		if br.Shift != 0 && br.InService {
			pfinj[l] = b * (-br.Shift * deg2rad)
			pbusinj[f] += pfinj[l]
			pbusinj[t] -= pfinj[l]
		}
	}
	for i := 0; i < nb; i++ {
		bbusC.Add(i, i, 0)
	}

	return bbusC.Compress(), bfC.Compress(), pbusinj, pfinj, nil
}
