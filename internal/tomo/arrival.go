package tomo

// Phase identifies a seismic phase.
type Phase string

const (
	PhaseP Phase = "P"
	PhaseS Phase = "S"
)

// Arrival is one observed travel time between an event and a station. The
// arrival set is supplied by the caller and read-only throughout a run.
type Arrival struct {
	EventID  string
	Station  string
	Phase    Phase
	Time     float64 // observed travel time (s)
	Source   Point   // event hypocenter
	Receiver Point   // station position
}

// ArrivalResidual pairs an arrival with its residual (observed minus
// predicted travel time) under the current model's forward fields. Residuals
// are computed once per iteration and shared read-only by its realizations.
type ArrivalResidual struct {
	Arrival  Arrival
	Residual float64
}
