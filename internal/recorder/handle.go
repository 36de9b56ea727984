// Package recorder supervises one capture process per enabled camera: it
// gates each launch on reachability, polls liveness on a fixed interval,
// applies a failure policy to unexpected exits and drains every child on
// shutdown.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"

	"github.com/edirooss/camrec/internal/domain/camera"
)

// ErrUnexpectedExit is returned by Run when a capture process dies on its own
// and the failure policy aborts the whole recorder.
var ErrUnexpectedExit = errors.New("capture process exited unexpectedly")

// LaunchError reports a camera whose capture process could not be started.
type LaunchError struct {
	CameraID string
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch camera %s: %v", e.CameraID, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// MissingExecutable reports whether the capture binary could not be found.
func (e *LaunchError) MissingExecutable() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// Handle is the supervisor's view of a running child. It is implemented by
// *processmgr.Process.
type Handle interface {
	PID() int
	// Exited never blocks.
	Exited() (code int, exited bool)
	Done() <-chan struct{}
	// Terminate requests a graceful stop. It reports whether a request was
	// actually issued; repeated calls issue nothing.
	Terminate() bool
	Kill()
	Diagnostics() []string
}

// Launcher starts the capture process for one camera. Implementations must
// not touch the registry and must return promptly once ctx is done.
type Launcher interface {
	Launch(ctx context.Context, def camera.Definition, profile camera.Profile) (Handle, error)
}

// ExitCode maps Run's result to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
