package model

// Network is the complete case a power-flow run operates on. Runs
// mutate it in place: bus voltages, branch flows and generator outputs
// are written back, and reactive-limit enforcement may retype buses
// and toggle generator status while it works.
type Network struct {
	BaseMVA  float64
	Buses    []Bus
	Gens     []Generator
	Branches []Branch
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	c := &Network{
		BaseMVA:  n.BaseMVA,
		Buses:    make([]Bus, len(n.Buses)),
		Gens:     make([]Generator, len(n.Gens)),
		Branches: make([]Branch, len(n.Branches)),
	}
	copy(c.Buses, n.Buses)
	copy(c.Gens, n.Gens)
	copy(c.Branches, n.Branches)
	return c
}

// GensAtBus returns the indices of generators attached to bus b, in
// declaration order. Status is not filtered.
func (n *Network) GensAtBus(b int) []int {
	var idx []int
	for i := range n.Gens {
		if n.Gens[i].Bus == b {
			idx = append(idx, i)
		}
	}
	return idx
}
