package model

// Branch is a transmission line or transformer between two buses.
//
// R, X and the total line charging B are in per unit on the system
// base. Tap is the off-nominal turns ratio at the from side, with 0
// meaning nominal (treated as 1). Shift is the phase shift in degrees.
// Pf/Qf and Pt/Qt receive the solved flows in MW/MVAr at the from and
// to ends; out-of-service branches report zero flow.
type Branch struct {
	From      int
	To        int
	R         float64
	X         float64
	B         float64
	Tap       float64
	Shift     float64
	InService bool

	Pf float64
	Qf float64
	Pt float64
	Qt float64
}
