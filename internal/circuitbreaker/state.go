package circuitbreaker

type State int

const (
	// StateClosed - normal operation, calls go to the durable store
	StateClosed State = iota

	// StateOpen - durable store considered down, calls skip straight to fallback
	StateOpen

	// StateHalfOpen - probing whether the durable store recovered
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
