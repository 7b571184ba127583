package worker

// State is a worker lifecycle state.
type State int

const (
	// StateNew is a constructed worker that has not started installing.
	StateNew State = iota

	// StateInstalling is precaching critical assets.
	StateInstalling

	// StateInstalled finished precaching and waits for activation.
	StateInstalled

	// StateActivating is pruning stores of previous versions.
	StateActivating

	// StateActivated controls requests.
	StateActivated

	// StateRedundant failed to install or was replaced by a newer worker.
	StateRedundant
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}
