package session

// Navigator receives the navigation side effects of session transitions.
// In the gateway it records a redirect target for the current response; an
// SDK embedding can drive whatever surface it owns.
type Navigator interface {
	// Navigate moves to a path within the running application.
	Navigate(path string)
	// HardNavigate moves to a path discarding all in-memory state from the
	// previous session. Logout uses this so nothing leaks across users.
	HardNavigate(path string)
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string)     {}
func (noopNavigator) HardNavigate(string) {}
