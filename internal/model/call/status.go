package call

// Status 表示一次模拟面试通话的进度。
type Status string

const (
	StatusInactive   Status = "INACTIVE"
	StatusConnecting Status = "CONNECTING"
	StatusActive     Status = "ACTIVE"
	StatusFinished   Status = "FINISHED"
)

var transitions = map[Status][]Status{
	StatusInactive:   {StatusConnecting},
	StatusConnecting: {StatusActive, StatusInactive, StatusFinished},
	StatusActive:     {StatusFinished, StatusInactive},
	StatusFinished:   nil,
}

// CanTransition reports whether from -> to is an edge of the call lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusFinished
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
