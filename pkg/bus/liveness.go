package bus

// RisingEdge detects a liveness transition from false to true. An
// initial true which was never preceded by an observed false does not
// count, so a node that was already running is not mistaken for a
// freshly booted one.
type RisingEdge struct {
	seenDown bool
}

// Observe feeds a liveness sample and reports whether the edge happened.
func (e *RisingEdge) Observe(live bool) bool {
	if !live {
		e.seenDown = true
		return false
	}
	return e.seenDown
}

// Reset forgets previously observed samples.
func (e *RisingEdge) Reset() {
	e.seenDown = false
}
