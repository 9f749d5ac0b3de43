// internal/lifecycle/state.go
package lifecycle

// State is a coin's position in its observation lifecycle.
type State int

const (
	// Detected means the mint was discovered but has no snapshots yet.
	Detected State = iota
	// Observing means snapshots are being collected.
	Observing
	// Qualified is terminal: the entry criteria were met.
	Qualified
	// Rejected is terminal: the entry policy voted an explicit reject.
	Rejected
	// Expired is terminal: the qualification window closed undecided.
	Expired
)

func (s State) String() string {
	switch s {
	case Detected:
		return "detected"
	case Observing:
		return "observing"
	case Qualified:
		return "qualified"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the coin's lifecycle.
func (s State) Terminal() bool {
	return s == Qualified || s == Rejected || s == Expired
}
