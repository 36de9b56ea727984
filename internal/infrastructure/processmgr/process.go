//go:build linux

package processmgr

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Options tunes how a child is spawned.
type Options struct {
	Env         []string      // nil inherits the parent environment
	StderrLines int           // diagnostic ring size; 0 = DefaultLogLines
	WaitDelay   time.Duration // bound on stderr draining after exit; 0 = 2s
}

// Process encapsulates one supervised external command.
// Features:
//   - own process group (Setpgid) so signals reach grandchildren
//   - SIGKILL on parent death (Pdeathsig)
//   - stdout discarded, stderr captured line by line into a LogBuffer
//   - a single reaper goroutine; Done() closes once the child is reaped
//   - non-blocking liveness via Exited()
//   - once-only Terminate (SIGTERM) and Kill (SIGKILL)
//
// Canonical usage:
//
//	p → Start() → poll Exited() … → Terminate() → <-Done()
type Process struct {
	log    *zap.Logger
	cmd    *exec.Cmd
	logBuf *LogBuffer
	stderr *lineWriter

	// Closed after the process is fully reaped; exitCode is valid afterwards.
	done     chan struct{}
	exitCode int

	startOnce sync.Once
	termOnce  sync.Once
	killOnce  sync.Once

	started atomic.Bool
	pid     int
}

// New prepares argv for execution without starting it.
func New(log *zap.Logger, argv []string, opts Options) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	if log == nil {
		log = zap.NewNop()
	}

	buf := NewLogBuffer(opts.StderrLines)
	w := &lineWriter{buf: buf}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil  // /dev/null
	cmd.Stdout = nil // /dev/null
	cmd.Stderr = w
	cmd.Env = opts.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	return &Process{
		log:    log,
		cmd:    cmd,
		logBuf: buf,
		stderr: w,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the command exactly once. It does not wait for it.
// A missing executable yields an error matching exec.ErrNotFound or
// fs.ErrNotExist.
func (p *Process) Start() error {
	err := errors.New("process already started")

	p.startOnce.Do(func() {
		if err = p.cmd.Start(); err != nil {
			err = fmt.Errorf("start %s: %w", p.cmd.Path, err)
			return
		}
		p.pid = p.cmd.Process.Pid
		p.started.Store(true)

		p.log.Info("process started", zap.Int("pid", p.pid))
		go p.reap()
	})

	return err
}

// reap performs the single Wait() and publishes the exit status.
func (p *Process) reap() {
	err := p.cmd.Wait()
	p.stderr.flush()

	p.exitCode = exitCode(p.cmd.ProcessState)

	var eerr *exec.ExitError
	switch {
	case err == nil:
		p.log.Info("process exited cleanly", zap.Int("pid", p.pid))
	case errors.As(err, &eerr):
		status, _ := eerr.Sys().(syscall.WaitStatus)
		p.log.Info("process exited with error status",
			zap.Int("pid", p.pid),
			zap.Int("exit_code", p.exitCode),
			zap.Bool("signaled", status.Signaled()))
	default:
		p.log.Warn("process wait returned error", zap.Int("pid", p.pid), zap.Error(err))
	}

	close(p.done)
}

// exitCode follows the shell convention: 128+N for death by signal N.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	status, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return -1
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return status.ExitStatus()
}

// PID returns the OS pid (also the process group id). Zero before Start.
func (p *Process) PID() int { return p.pid }

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited is the non-blocking liveness poll.
func (p *Process) Exited() (code int, exited bool) {
	select {
	case <-p.done:
		return p.exitCode, true
	default:
		return 0, false
	}
}

// Diagnostics returns the captured stderr lines, oldest first.
func (p *Process) Diagnostics() []string { return p.logBuf.Lines() }

// Terminate sends SIGTERM to the process group. Only the first call that
// finds the child alive sends anything; it reports whether it did.
func (p *Process) Terminate() bool {
	issued := false
	p.termOnce.Do(func() {
		if !p.alive() {
			return
		}
		issued = true
		p.signalGroup(syscall.SIGTERM)
	})
	return issued
}

// Kill sends SIGKILL to the process group, once.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		if !p.alive() {
			return
		}
		p.signalGroup(syscall.SIGKILL)
	})
}

func (p *Process) alive() bool {
	if !p.started.Load() {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) signalGroup(sig syscall.Signal) {
	if err := syscall.Kill(-p.pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return
		}
		p.log.Warn("group signal failed; signalling leader only",
			zap.Int("pgid", p.pid), zap.String("signal", sig.String()), zap.Error(err))
		_ = p.cmd.Process.Signal(sig)
		return
	}
	p.log.Info("signal sent to process group", zap.Int("pgid", p.pid), zap.String("signal", sig.String()))
}
