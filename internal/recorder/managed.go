package recorder

import (
	"sync"
	"time"
)

// State is the lifecycle position of a ManagedProcess.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateExited
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ManagedProcess binds a camera to its capture process.
//
// Transitions:
//
//	Starting → Running → Exited(code)                (poll)
//	           Running → Terminating → Terminated    (shutdown)
type ManagedProcess struct {
	CameraID  string
	Handle    Handle
	StartedAt time.Time

	mu       sync.Mutex
	state    State
	exitCode int
}

func newManagedProcess(cameraID string, h Handle) *ManagedProcess {
	mp := &ManagedProcess{CameraID: cameraID, Handle: h, state: StateStarting}
	mp.markRunning()
	return mp
}

func (mp *ManagedProcess) State() State {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// ExitCode is meaningful once the state is Exited or Terminated.
func (mp *ManagedProcess) ExitCode() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.exitCode
}

func (mp *ManagedProcess) markRunning() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.state = StateRunning
	mp.StartedAt = time.Now()
}

func (mp *ManagedProcess) markExited(code int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.state = StateExited
	mp.exitCode = code
}

func (mp *ManagedProcess) markTerminating() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.state = StateTerminating
}

func (mp *ManagedProcess) markTerminated(code int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.state = StateTerminated
	mp.exitCode = code
}
