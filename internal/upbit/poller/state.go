package poller

// State is the poller's position in its cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Computing
	Publishing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Computing:
		return "computing"
	case Publishing:
		return "publishing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
