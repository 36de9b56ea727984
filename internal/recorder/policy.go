package recorder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Failure policy names accepted by ParsePolicy.
const (
	PolicyAbortAll   = "abort-all"
	PolicyRestartOne = "restart-one"
)

// FailurePolicy decides what an unexpected capture exit means for the rest
// of the recorder. All methods run on the supervisor goroutine.
type FailurePolicy interface {
	Name() string
	// OnExit is called after mp has been reaped and removed from the
	// registry. A non-nil error ends Run with that error.
	OnExit(ctx context.Context, s *Supervisor, mp *ManagedProcess) error
	// OnLaunchFailed is called when a relaunch requested by the policy
	// fails.
	OnLaunchFailed(ctx context.Context, s *Supervisor, cameraID string, err error)
	// OnTick runs after every liveness poll.
	OnTick(ctx context.Context, s *Supervisor)
}

// ParsePolicy resolves a policy by name. Empty selects abort-all.
func ParsePolicy(name string, cooldown time.Duration) (FailurePolicy, error) {
	switch name {
	case "", PolicyAbortAll:
		return AbortAll{}, nil
	case PolicyRestartOne:
		return NewRestartOne(cooldown), nil
	default:
		return nil, fmt.Errorf("unknown failure policy %q (want %s or %s)", name, PolicyAbortAll, PolicyRestartOne)
	}
}

// AbortAll ends the recorder on the first unexpected exit so the process
// manager restarts every camera. Siblings receive no termination request.
type AbortAll struct{}

func (AbortAll) Name() string { return PolicyAbortAll }

func (AbortAll) OnExit(_ context.Context, _ *Supervisor, mp *ManagedProcess) error {
	return fmt.Errorf("%w: camera %s exited with code %d", ErrUnexpectedExit, mp.CameraID, mp.ExitCode())
}

func (AbortAll) OnLaunchFailed(context.Context, *Supervisor, string, error) {}

func (AbortAll) OnTick(context.Context, *Supervisor) {}

// RestartOne relaunches only the failed camera after Cooldown and leaves
// its siblings running. Failed relaunches are rescheduled.
type RestartOne struct {
	Cooldown time.Duration

	queue *restartQueue
	now   func() time.Time
}

func NewRestartOne(cooldown time.Duration) *RestartOne {
	if cooldown < 0 {
		cooldown = 0
	}
	return &RestartOne{Cooldown: cooldown, queue: newRestartQueue(), now: time.Now}
}

func (*RestartOne) Name() string { return PolicyRestartOne }

func (p *RestartOne) OnExit(_ context.Context, s *Supervisor, mp *ManagedProcess) error {
	p.schedule(s, mp.CameraID)
	return nil
}

func (p *RestartOne) OnLaunchFailed(_ context.Context, s *Supervisor, cameraID string, _ error) {
	p.schedule(s, cameraID)
}

func (p *RestartOne) OnTick(ctx context.Context, s *Supervisor) {
	for _, id := range p.queue.due(p.now()) {
		s.relaunch(ctx, id)
	}
}

func (p *RestartOne) schedule(s *Supervisor, cameraID string) {
	p.queue.push(cameraID, p.now().Add(p.Cooldown))
	s.log.Info("restart scheduled", zap.String("camera", cameraID), zap.Duration("cooldown", p.Cooldown))
}
