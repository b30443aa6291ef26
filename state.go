package messenger

import "time"

// State is the coarse messenger state surfaced to the host.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// OnStateChanged is invoked only on an actual transition (old != new).
type OnStateChanged func(previous, current State)

// setState transitions the messenger and fires the observer exactly
// when old != new, matching the invariant that every transition the
// observer sees is a real one.
func (m *Messenger) setState(s State) {
	if m.state == s {
		return
	}
	old := m.state
	m.state = s
	if m.onStateChanged != nil {
		m.onStateChanged(old, s)
	}
}

// evaluateStatePolicy runs the state-change/timeout evaluation that
// do_work always performs first, so a stale observation never traps the
// machine in a state the transport has already left.
func (m *Messenger) evaluateStatePolicy(now time.Time) {
	switch m.state {
	case StateStarting:
		m.evaluateStarting(now)
	case StateStarted:
		m.evaluateStarted(now)
	}
}

func (m *Messenger) evaluateStarting(now time.Time) {
	if m.sender == nil {
		return
	}
	switch m.sender.observer.current {
	case linkStateOpen:
		m.setState(StateStarted)
	case linkStateError, linkStateClosing, linkStateIdle:
		m.setState(StateError)
	case linkStateOpening:
		if now.Sub(m.sender.observer.lastChangeTime) >= m.senderStateChangeTimeout {
			m.setState(StateError)
		}
	}
}

func (m *Messenger) evaluateStarted(now time.Time) {
	if m.sender == nil || m.sender.observer.current != linkStateOpen {
		m.setState(StateError)
		return
	}

	if m.receiver != nil && m.receiver.observer.current != linkStateOpen {
		switch m.receiver.observer.current {
		case linkStateError, linkStateIdle:
			m.setState(StateError)
			return
		case linkStateOpening:
			if now.Sub(m.receiver.observer.lastChangeTime) >= m.receiverStateChangeTimeout {
				m.setState(StateError)
				return
			}
		}
	}

	if m.sendErrorCount >= m.maxSendErrorCount {
		m.setState(StateError)
	}
}
