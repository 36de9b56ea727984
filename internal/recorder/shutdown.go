package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/metrics"
)

// Shutdown asks every running capture process to terminate, then waits for
// all of them to exit. With a ShutdownGrace, stragglers are killed once the
// grace period has elapsed. Only the first call does anything; later calls
// block until it has finished.
//
// Run calls Shutdown when its context is cancelled. Calling it concurrently
// with Run is not supported; cancel Run's context instead.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Supervisor) shutdown() {
	s.log.Info("shutting down",
		zap.Int("running", s.registry.Len()),
		zap.Int("launching", s.pending))

	s.drainPending()

	var stopping []*ManagedProcess
	for _, mp := range s.registry.List() {
		if mp.State() != StateRunning {
			continue
		}
		if mp.Handle.Terminate() {
			s.log.Info("termination requested", zap.String("camera", mp.CameraID), zap.Int("pid", mp.Handle.PID()))
		}
		mp.markTerminating()
		stopping = append(stopping, mp)
	}

	var deadline time.Time
	if s.opts.ShutdownGrace > 0 {
		deadline = time.Now().Add(s.opts.ShutdownGrace)
	}
	for _, mp := range stopping {
		code := s.awaitExit(mp, deadline)
		mp.markTerminated(code)
		s.registry.Remove(mp.CameraID)
		s.log.Info("camera stopped", zap.String("camera", mp.CameraID), zap.Int("exit_code", code))
	}

	s.bg.Wait()
	metrics.SetRunning(s.registry.Len())
	s.log.Info("shutdown complete")
}

// drainPending collects launches still in flight. Ones that succeeded are
// registered so they get terminated with the rest.
func (s *Supervisor) drainPending() {
	if s.pending == 0 {
		return
	}
	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	for s.pending > 0 {
		r := <-s.results
		s.pending--
		s.accept(stopped, r)
	}
}

// awaitExit blocks until mp is reaped. A zero deadline waits forever.
func (s *Supervisor) awaitExit(mp *ManagedProcess, deadline time.Time) int {
	if !deadline.IsZero() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()

		select {
		case <-mp.Handle.Done():
		case <-t.C:
			s.log.Warn("capture process ignored termination; killing",
				zap.String("camera", mp.CameraID),
				zap.Int("pid", mp.Handle.PID()),
				zap.Duration("grace", s.opts.ShutdownGrace))
			metrics.ForcedKills.Inc()
			mp.Handle.Kill()
		}
	}

	<-mp.Handle.Done()
	code, _ := mp.Handle.Exited()
	return code
}
