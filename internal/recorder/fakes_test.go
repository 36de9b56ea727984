package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edirooss/camrec/internal/domain/camera"
)

// fakeHandle is a scripted capture process.
type fakeHandle struct {
	pid  int
	diag []string

	// exitAfterPolls > 0 makes the process exit with exitCode on that poll.
	exitAfterPolls int32
	exitCode       int
	ignoreTerm     bool
	exitDelay      time.Duration // delay between Terminate and exit

	polls      atomic.Int32
	terminates atomic.Int32 // requests actually issued
	termCalls  atomic.Int32 // every Terminate call, issued or not
	kills      atomic.Int32

	mu       sync.Mutex
	code     int
	done     chan struct{}
	doneOnce sync.Once
	termOnce sync.Once
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) PID() int                   { return h.pid }
func (h *fakeHandle) Done() <-chan struct{}      { return h.done }
func (h *fakeHandle) Diagnostics() []string      { return h.diag }
func (h *fakeHandle) exited() bool               { return isClosed(h.done) }
func (h *fakeHandle) terminateCount() int        { return int(h.terminates.Load()) }
func (h *fakeHandle) terminateCalls() int        { return int(h.termCalls.Load()) }
func (h *fakeHandle) pollCount() int             { return int(h.polls.Load()) }
func (h *fakeHandle) killCount() int             { return int(h.kills.Load()) }
func (h *fakeHandle) setDiagnostics(l ...string) { h.diag = l }

func (h *fakeHandle) Exited() (int, bool) {
	n := h.polls.Add(1)
	if h.exitAfterPolls > 0 && n >= h.exitAfterPolls {
		h.exit(h.exitCode)
	}
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.code, true
	default:
		return 0, false
	}
}

func (h *fakeHandle) exit(code int) {
	h.doneOnce.Do(func() {
		h.mu.Lock()
		h.code = code
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *fakeHandle) Terminate() bool {
	h.termCalls.Add(1)
	if h.exited() {
		return false
	}
	issued := false
	h.termOnce.Do(func() {
		issued = true
		h.terminates.Add(1)
		switch {
		case h.ignoreTerm:
		case h.exitDelay > 0:
			time.AfterFunc(h.exitDelay, func() { h.exit(143) })
		default:
			h.exit(143)
		}
	})
	return issued
}

func (h *fakeHandle) Kill() {
	h.kills.Add(1)
	h.exit(137)
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// fakeLauncher hands out fakeHandles. Cameras listed in block wait for ctx;
// cameras in fail return the given error.
type fakeLauncher struct {
	block   map[string]bool
	fail    map[string]error
	prepare func(id string, h *fakeHandle)

	mu       sync.Mutex
	attempts []string
	handles  map[string][]*fakeHandle
	nextPID  int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		block:   map[string]bool{},
		fail:    map[string]error{},
		handles: map[string][]*fakeHandle{},
		nextPID: 1000,
	}
}

func (l *fakeLauncher) Launch(ctx context.Context, def camera.Definition, _ camera.Profile) (Handle, error) {
	l.mu.Lock()
	l.attempts = append(l.attempts, def.ID)
	l.mu.Unlock()

	if l.block[def.ID] {
		<-ctx.Done()
		return nil, &LaunchError{CameraID: def.ID, Err: ctx.Err()}
	}
	if err := l.fail[def.ID]; err != nil {
		return nil, &LaunchError{CameraID: def.ID, Err: err}
	}

	l.mu.Lock()
	l.nextPID++
	h := newFakeHandle(l.nextPID)
	l.handles[def.ID] = append(l.handles[def.ID], h)
	l.mu.Unlock()

	if l.prepare != nil {
		l.prepare(def.ID, h)
	}
	return h, nil
}

func (l *fakeLauncher) attempted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.attempts...)
}

func (l *fakeLauncher) launched(id string) []*fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeHandle(nil), l.handles[id]...)
}

func (l *fakeLauncher) all() []*fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*fakeHandle
	for _, hs := range l.handles {
		out = append(out, hs...)
	}
	return out
}

func cam(id string, enabled bool) camera.Definition {
	return camera.Definition{ID: id, Enabled: enabled, Host: "127.0.0.1", Port: 554, FolderName: id}
}
