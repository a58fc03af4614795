package driver

import "fmt"

// State represents a stream's state
type State string

const (
	// StateClosed means that the stream has not been opened, or has been
	// released.
	StateClosed State = "closed"
	// StateOpened means that the backend handed out the stream but the
	// Manager has not given it to a caller yet.
	StateOpened State = "opened"
	// StateRunning means that the stream is live and owned by the caller.
	StateRunning State = "running"
)

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	checks := map[State]func() error{
		StateOpened:  s.toOpened,
		StateClosed:  s.toClosed,
		StateRunning: s.toRunning,
	}

	check, ok := checks[next]
	if !ok {
		return fmt.Errorf("invalid state: unknown state %q", next)
	}
	if err := check(); err != nil {
		return err
	}

	if err := f(); err != nil {
		return err
	}
	*s = next
	return nil
}

func (s *State) toOpened() error {
	if *s != StateClosed && *s != "" {
		return fmt.Errorf("invalid state: stream is already opened")
	}
	return nil
}

func (s *State) toClosed() error {
	return nil
}

func (s *State) toRunning() error {
	switch *s {
	case StateOpened:
		return nil
	case StateRunning:
		return fmt.Errorf("invalid state: stream is already running")
	default:
		return fmt.Errorf("invalid state: stream is closed")
	}
}
