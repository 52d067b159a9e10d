package admittance

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/signalsfoundry/gridflow/model"
)

const tol = 1e-12

func cEq(t *testing.T, name string, got, want complex128) {
	t.Helper()
	if cmplx.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func twoBus(br model.Branch) ([]model.Bus, []model.Branch) {
	buses := []model.Bus{
		{ID: 0, Type: model.BusRef, Vm: 1},
		{ID: 1, Type: model.BusPQ, Vm: 1},
	}
	return buses, []model.Branch{br}
}

func TestBuildPureReactanceLine(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, B: 0.2, InService: true})
	m, err := StandardBuilder{}.Build(100, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ys := complex(0, -1/0.1)
	ytt := ys + complex(0, 0.1)
	cEq(t, "Ybus[0,0]", m.Ybus.At(0, 0), ytt)
	cEq(t, "Ybus[1,1]", m.Ybus.At(1, 1), ytt)
	cEq(t, "Ybus[0,1]", m.Ybus.At(0, 1), -ys)
	cEq(t, "Ybus[1,0]", m.Ybus.At(1, 0), -ys)
	cEq(t, "Yf[0,0]", m.Yf.At(0, 0), ytt)
	cEq(t, "Yf[0,1]", m.Yf.At(0, 1), -ys)
	cEq(t, "Yt[0,0]", m.Yt.At(0, 0), -ys)
	cEq(t, "Yt[0,1]", m.Yt.At(0, 1), ytt)
}

func TestBuildTapTransformer(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, Tap: 2, InService: true})
	m, err := StandardBuilder{}.Build(100, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// ys = -10i, tap magnitude 2: self term at the from side divides
	// by 4, transfer terms by 2.
	cEq(t, "Ybus[0,0]", m.Ybus.At(0, 0), complex(0, -2.5))
	cEq(t, "Ybus[1,1]", m.Ybus.At(1, 1), complex(0, -10))
	cEq(t, "Ybus[0,1]", m.Ybus.At(0, 1), complex(0, 5))
	cEq(t, "Ybus[1,0]", m.Ybus.At(1, 0), complex(0, 5))
}

func TestBuildPhaseShifterAsymmetry(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, Shift: 90, InService: true})
	m, err := StandardBuilder{}.Build(100, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// t = e^{j*pi/2}: the transfer terms rotate onto the real axis
	// with opposite signs, so Ybus is no longer symmetric.
	cEq(t, "Ybus[0,1]", m.Ybus.At(0, 1), complex(-10, 0))
	cEq(t, "Ybus[1,0]", m.Ybus.At(1, 0), complex(10, 0))
	cEq(t, "Ybus[0,0]", m.Ybus.At(0, 0), complex(0, -10))
}

func TestBuildShuntOnDiagonal(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, InService: true})
	buses[1].Gs = 10
	buses[1].Bs = 20
	m, err := StandardBuilder{}.Build(100, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cEq(t, "Ybus[1,1]", m.Ybus.At(1, 1), complex(0.1, -10+0.2))
}

func TestBuildOutOfServiceBranch(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, InService: false})
	m, err := StandardBuilder{}.Build(100, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cEq(t, "Ybus[0,1]", m.Ybus.At(0, 1), 0)
	cEq(t, "Ybus[0,0]", m.Ybus.At(0, 0), 0)
	cEq(t, "Yf[0,0]", m.Yf.At(0, 0), 0)
	// Structural entries survive so the pattern is status-independent.
	if m.Ybus.NNZ() != 4 {
		t.Errorf("Ybus.NNZ() = %d, want 4 structural entries", m.Ybus.NNZ())
	}
}

// Ybus must equal Cf'*Yf + Ct'*Yt + diag(shunt) by construction; check
// the identity entry by entry on a meshed network.
func TestBuildScatterIdentity(t *testing.T) {
	buses := []model.Bus{
		{ID: 0, Type: model.BusRef, Bs: 4},
		{ID: 1, Type: model.BusPV, Gs: 2},
		{ID: 2, Type: model.BusPQ},
		{ID: 3, Type: model.BusPQ, Bs: -3},
	}
	branches := []model.Branch{
		{From: 0, To: 1, R: 0.01, X: 0.06, B: 0.03, InService: true},
		{From: 0, To: 2, R: 0.05, X: 0.19, Tap: 1.05, InService: true},
		{From: 1, To: 2, R: 0.02, X: 0.11, Shift: 3, InService: true},
		{From: 2, To: 3, R: 0.01, X: 0.04, B: 0.01, InService: true},
		{From: 1, To: 3, R: 0.03, X: 0.2, InService: false},
	}
	const base = 100.0
	m, err := StandardBuilder{}.Build(base, buses, branches)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	nb := len(buses)
	want := make([][]complex128, nb)
	for i := range want {
		want[i] = make([]complex128, nb)
	}
	for l := range branches {
		f, to := branches[l].From, branches[l].To
		for j := 0; j < nb; j++ {
			want[f][j] += m.Yf.At(l, j)
			want[to][j] += m.Yt.At(l, j)
		}
	}
	for i := range buses {
		want[i][i] += complex(buses[i].Gs/base, buses[i].Bs/base)
	}
	for i := 0; i < nb; i++ {
		for j := 0; j < nb; j++ {
			if cmplx.Abs(m.Ybus.At(i, j)-want[i][j]) > tol {
				t.Errorf("Ybus[%d,%d] = %v, want %v", i, j, m.Ybus.At(i, j), want[i][j])
			}
		}
	}
}

func TestBuildValidation(t *testing.T) {
	buses, _ := twoBus(model.Branch{})
	tests := []struct {
		name     string
		baseMVA  float64
		buses    []model.Bus
		branches []model.Branch
	}{
		{"zero baseMVA", 0, buses, nil},
		{"no buses", 100, nil, nil},
		{"endpoint out of range", 100, buses, []model.Branch{{From: 0, To: 5, X: 0.1, InService: true}}},
		{"zero impedance", 100, buses, []model.Branch{{From: 0, To: 1, InService: true}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := StandardBuilder{}.Build(tc.baseMVA, tc.buses, tc.branches)
			if !errors.Is(err, ErrTopology) {
				t.Fatalf("Build error = %v, want ErrTopology", err)
			}
		})
	}
}

func TestNewBuilder(t *testing.T) {
	for _, kind := range []string{"", "standard"} {
		b, err := NewBuilder(kind)
		if err != nil || b == nil {
			t.Fatalf("NewBuilder(%q) = %v, %v", kind, b, err)
		}
	}
	if _, err := NewBuilder("numba"); !errors.Is(err, ErrUnknownBuilder) {
		t.Fatalf("NewBuilder(\"numba\") error = %v, want ErrUnknownBuilder", err)
	}
}

func TestBMatricesVariants(t *testing.T) {
	const r, x, charge = 0.01, 0.1, 0.2
	buses, branches := twoBus(model.Branch{From: 0, To: 1, R: r, X: x, B: charge, InService: true})
	buses[1].Bs = 5

	// Series susceptance with resistance kept, recomputed from scalar
	// arithmetic rather than the complex path under test.
	bSeries := x / (r*r + x*x)

	bp, bpp, err := BMatrices(VariantXB, 100, buses, branches)
	if err != nil {
		t.Fatalf("BMatrices(XB): %v", err)
	}
	// XB: B' ignores resistance, charging and shunts.
	cEq(t, "XB Bp[0,0]", bp.At(0, 0), complex(1/x, 0))
	cEq(t, "XB Bp[0,1]", bp.At(0, 1), complex(-1/x, 0))
	// XB: B'' keeps resistance, charging and the bus shunt.
	cEq(t, "XB Bpp[0,0]", bpp.At(0, 0), complex(bSeries-charge/2, 0))
	cEq(t, "XB Bpp[1,1]", bpp.At(1, 1), complex(bSeries-charge/2-5.0/100, 0))

	bp, bpp, err = BMatrices(VariantBX, 100, buses, branches)
	if err != nil {
		t.Fatalf("BMatrices(BX): %v", err)
	}
	// BX: resistance stays in B', leaves B''.
	cEq(t, "BX Bp[0,0]", bp.At(0, 0), complex(bSeries, 0))
	cEq(t, "BX Bpp[0,0]", bpp.At(0, 0), complex(1/x-charge/2, 0))
}

func TestBMatricesKeepsShiftOnlyInBp(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, Shift: 90, InService: true})
	bp, bpp, err := BMatrices(VariantXB, 100, buses, branches)
	if err != nil {
		t.Fatalf("BMatrices: %v", err)
	}
	// With a 90 degree shift the transfer admittance is real, so B'
	// (which keeps shifts) has zero off-diagonals while B'' (shifts
	// removed) recovers the plain ladder.
	cEq(t, "Bp[0,1]", bp.At(0, 1), 0)
	cEq(t, "Bpp[0,1]", bpp.At(0, 1), complex(-10, 0))
}

func TestDCMatrices(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, X: 0.1, Tap: 2, Shift: 30, InService: true})
	bbus, bf, pbusinj, pfinj, err := DCMatrices(100, buses, branches)
	if err != nil {
		t.Fatalf("DCMatrices: %v", err)
	}
	const b = 5.0 // 1/x/tap
	cEq(t, "Bf[0,0]", bf.At(0, 0), complex(b, 0))
	cEq(t, "Bf[0,1]", bf.At(0, 1), complex(-b, 0))
	cEq(t, "Bbus[0,0]", bbus.At(0, 0), complex(b, 0))
	cEq(t, "Bbus[1,0]", bbus.At(1, 0), complex(-b, 0))

	wantInj := b * (-30 * math.Pi / 180)
	if math.Abs(pfinj[0]-wantInj) > tol {
		t.Errorf("Pfinj[0] = %v, want %v", pfinj[0], wantInj)
	}
	if math.Abs(pbusinj[0]-wantInj) > tol || math.Abs(pbusinj[1]+wantInj) > tol {
		t.Errorf("Pbusinj = %v, want [%v %v]", pbusinj, wantInj, -wantInj)
	}
}

func TestDCMatricesZeroReactance(t *testing.T) {
	buses, branches := twoBus(model.Branch{From: 0, To: 1, R: 0.3, InService: true})
	if _, _, _, _, err := DCMatrices(100, buses, branches); !errors.Is(err, ErrTopology) {
		t.Fatalf("DCMatrices error = %v, want ErrTopology", err)
	}
}
