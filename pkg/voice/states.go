package voice

import "sync"

// State session lifecycle state
type State int

const (
	// StateIdle pre-start
	StateIdle State = iota
	// StateActive normal conversation
	StateActive
	// StateEmergencyActive emergency detected; superset of Active, one-way
	StateEmergencyActive
	// StateEnded terminal
	StateEnded
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateEmergencyActive:
		return "emergency-active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// StateMachine guards the session lifecycle. Emergency is a one-way
// transition taken at most once, which is what structurally prevents a
// second alerting dispatch for the same session.
type StateMachine struct {
	mu        sync.Mutex
	state     State
	emergency bool
}

// NewStateMachine starts in Idle
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle}
}

// Activate transitions Idle -> Active
func (m *StateMachine) Activate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return false
	}
	m.state = StateActive
	return true
}

// MarkEmergency transitions Active -> EmergencyActive. Returns true only
// on the first successful transition; callers dispatch alerting exactly
// when this returns true.
func (m *StateMachine) MarkEmergency() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return false
	}
	m.state = StateEmergencyActive
	m.emergency = true
	return true
}

// End transitions Active or EmergencyActive -> Ended. Nothing leaves Ended.
func (m *StateMachine) End() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive && m.state != StateEmergencyActive {
		return false
	}
	m.state = StateEnded
	return true
}

// Current returns the current state
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InEmergency reports whether the session is currently in the emergency state
func (m *StateMachine) InEmergency() bool {
	return m.Current() == StateEmergencyActive
}

// EverEmergency reports whether the emergency transition ever fired,
// surviving the transition to Ended.
func (m *StateMachine) EverEmergency() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergency
}

// Ended reports whether the session reached the terminal state
func (m *StateMachine) Ended() bool {
	return m.Current() == StateEnded
}
