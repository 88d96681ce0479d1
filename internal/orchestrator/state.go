package orchestrator

// State is a step in the life of a single run
type State int

const (
	// StateInitializing parses arguments, reads the environment and builds the registry
	StateInitializing State = iota
	// StateSelecting looks up the requested shard
	StateSelecting
	// StateRunning executes the shard's task group
	StateRunning
	// StateSucceeded means the run finished without reported failures
	StateSucceeded
	// StateFailed means at least one failure was reported
	StateFailed
	// StateAbortedOnError means the first failure stopped the run
	StateAbortedOnError
	// StateCrashedUnexpectedly means the dispatcher itself broke
	StateCrashedUnexpectedly
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateSelecting:
		return "selecting"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateAbortedOnError:
		return "aborted-on-error"
	case StateCrashedUnexpectedly:
		return "crashed-unexpectedly"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s >= StateSucceeded
}
