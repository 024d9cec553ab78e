package source

// State is the supervision state of a Source.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Draining
	RestartDelay
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case RestartDelay:
		return "restart_delay"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var allStates = []string{
	Idle.String(), Starting.String(), Running.String(),
	Draining.String(), RestartDelay.String(), Stopped.String(),
}
