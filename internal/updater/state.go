package updater

// State is the observable position of a Loop in its cycle.
type State int32

const (
	StateIdle State = iota
	StateAcquiringReading
	StateTransforming
	StateCommitting
	StateNotifying
	StateTerminating
)

// String returns a log-friendly name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringReading:
		return "acquiring_reading"
	case StateTransforming:
		return "transforming"
	case StateCommitting:
		return "committing"
	case StateNotifying:
		return "notifying"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}
