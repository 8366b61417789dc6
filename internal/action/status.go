package action

// Status is the workflow state of one request.
type Status int

const (
	Idle Status = iota
	Confirming
	InFlight
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Confirming:
		return "confirming"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is an outcome awaiting Dismiss.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed
}
