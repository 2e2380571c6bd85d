package finder

import "errors"

// Recoverable skip signals. These mark timesteps or search cells that yield
// no result; they are expected during normal operation and never escalate.
var (
	// ErrSkipTimestep means the current timestep has too little data to
	// attempt a search. The previous event estimate stays in place.
	ErrSkipTimestep = errors.New("finder: insufficient data, skip timestep")

	// ErrDegenerateCell means a single correlation cell had size-mismatched
	// inputs; the cell is excluded from the search, nothing else.
	ErrDegenerateCell = errors.New("finder: degenerate correlation cell")
)
