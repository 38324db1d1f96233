package decimate

import "fmt"

// InvalidPointError reports a point whose coordinates are missing or non-finite.
type InvalidPointError struct {
	Index int
	X, Y  float64
}

func (e *InvalidPointError) Error() string {
	return fmt.Sprintf("decimate: invalid point %d (%v, %v): coordinates must be finite", e.Index, e.X, e.Y)
}

// InvalidTierConfigError reports a malformed tier list. Index is the
// position of the offending tier, or -1 when the list as a whole is bad.
type InvalidTierConfigError struct {
	Index  int
	Reason string
}

func (e *InvalidTierConfigError) Error() string {
	if e.Index < 0 {
		return "decimate: invalid tier config: " + e.Reason
	}
	return fmt.Sprintf("decimate: invalid tier config at %d: %s", e.Index, e.Reason)
}
