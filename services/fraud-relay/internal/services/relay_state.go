package services

// RelayState is the lifecycle state of the relay loop.
type RelayState int32

const (
	StateIdle RelayState = iota
	StateFetching
	StateScoring
	StatePublishing
	StateDraining
	StateStopped
)

func (s RelayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateScoring:
		return "scoring"
	case StatePublishing:
		return "publishing"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
