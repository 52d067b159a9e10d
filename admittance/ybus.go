package admittance

import (
	"math"
	"math/cmplx"

	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

const deg2rad = math.Pi / 180

// StandardBuilder assembles the admittance matrices from the branch
// pi model with off-nominal taps and phase shifters.
type StandardBuilder struct{}

// Build forms Ybus, Yf and Yt. Out-of-service branches contribute
// structural zeros, and every bus diagonal is structurally present so
// downstream factorizations see a stable pattern regardless of shunt
// values.
func (StandardBuilder) Build(baseMVA float64, buses []model.Bus, branches []model.Branch) (Matrices, error) {
	if err := validate(baseMVA, buses, branches); err != nil {
		return Matrices{}, err
	}
	nb, nl := len(buses), len(branches)

	ybus := cmat.NewCOO(nb, nb)
	yf := cmat.NewCOO(nl, nb)
	yt := cmat.NewCOO(nl, nb)

	for l := range branches {
		br := &branches[l]
		yff, yft, ytf, ytt := branchAdmittances(br)
		f, t := br.From, br.To
		yf.Add(l, f, yff)
		yf.Add(l, t, yft)
		yt.Add(l, f, ytf)
		yt.Add(l, t, ytt)
		ybus.Add(f, f, yff)
		ybus.Add(f, t, yft)
		ybus.Add(t, f, ytf)
		ybus.Add(t, t, ytt)
	}
	for i := range buses {
		ybus.Add(i, i, complex(buses[i].Gs/baseMVA, buses[i].Bs/baseMVA))
	}

	return Matrices{Ybus: ybus.Compress(), Yf: yf.Compress(), Yt: yt.Compress()}, nil
}

// branchAdmittances returns the four pi-model terms for one branch.
// The from side sits behind the tap, so the self term there divides by
// tap*conj(tap) and the transfer terms pick up the tap phase.
func branchAdmittances(br *model.Branch) (yff, yft, ytf, ytt complex128) {
	if !br.InService {
		return 0, 0, 0, 0
	}
	ys := 1 / complex(br.R, br.X)
	bc := complex(0, br.B/2)
	tap := complex(1, 0)
	if br.Tap != 0 {
		tap = complex(br.Tap, 0)
	}
	if br.Shift != 0 {
		tap *= cmplx.Rect(1, br.Shift*deg2rad)
	}
	ytt = ys + bc
	yff = ytt / (tap * cmplx.Conj(tap))
	yft = -ys / cmplx.Conj(tap)
	ytf = -ys / tap
	return yff, yft, ytf, ytt
}
