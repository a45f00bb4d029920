package epi

// Trajectory is one simulated epidemic path: susceptible counts S,
// incident infections I, and the expected-infection intensity Lambda, all
// of equal length. The simulation call that produced it owns the buffers;
// consumers treat it as read-only.
type Trajectory struct {
	S      []float64 `json:"s"`
	I      []float64 `json:"i"`
	Lambda []float64 `json:"lambda"`

	Mode Mode `json:"mode"`
	// Extinguished is set when a chain-binomial path stopped because the
	// infection count hit zero before the horizon.
	Extinguished bool `json:"extinguished"`
}

// Len returns the number of simulated steps.
func (tr Trajectory) Len() int {
	return len(tr.I)
}

// Peak returns the step and size of the largest incidence in the path.
// An empty trajectory peaks at step -1.
func (tr Trajectory) Peak() (int, float64) {
	step, size := -1, 0.0
	for t, v := range tr.I {
		if step < 0 || v > size {
			step, size = t, v
		}
	}
	return step, size
}

// FinalSize returns the total number of infections over the path.
func (tr Trajectory) FinalSize() float64 {
	total := 0.0
	for _, v := range tr.I {
		total += v
	}
	return total
}

// Duration returns the number of steps with nonzero incidence.
func (tr Trajectory) Duration() int {
	n := 0
	for _, v := range tr.I {
		if v > 0 {
			n++
		}
	}
	return n
}
