package model

// Generator is a dispatchable injection at a bus.
//
// Pg/Qg are the scheduled (and, after a run, solved) outputs in
// MW/MVAr. Qmax/Qmin bound the reactive output; reactive-limit
// enforcement clamps Qg to these values. Vg is the voltage magnitude
// setpoint in per unit, used to seed the bus voltage while the unit is
// in service. Out-of-service units inject nothing and do not regulate
// their bus.
type Generator struct {
	Bus       int
	Pg        float64
	Qg        float64
	Qmax      float64
	Qmin      float64
	Vg        float64
	InService bool
}
