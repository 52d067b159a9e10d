package model

import "fmt"

// BusType classifies a bus for power-flow purposes. The numeric values
// follow the common case-file convention.
type BusType int

const (
	BusPQ       BusType = 1 // load bus: P and Q fixed, voltage solved
	BusPV       BusType = 2 // generator bus: P and |V| fixed, Q and angle solved
	BusRef      BusType = 3 // reference (slack) bus: |V| and angle fixed
	BusIsolated BusType = 4 // disconnected from the solved island
)

func (t BusType) String() string {
	switch t {
	case BusPQ:
		return "PQ"
	case BusPV:
		return "PV"
	case BusRef:
		return "REF"
	case BusIsolated:
		return "ISOLATED"
	default:
		return fmt.Sprintf("BusType(%d)", int(t))
	}
}

// Bus is a node of the network. Buses are addressed by their dense
// index into Network.Buses; ID mirrors that index.
//
// Pd/Qd carry the demand in MW/MVAr, Gs/Bs the shunt injection at
// nominal voltage in MW/MVAr. Vm (per unit) and Va (degrees) start as
// the initial profile and hold the solution after a run.
type Bus struct {
	ID     int
	Type   BusType
	Pd     float64
	Qd     float64
	Gs     float64
	Bs     float64
	Vm     float64
	Va     float64
	BaseKV float64
}
