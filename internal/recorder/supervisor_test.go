package recorder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/edirooss/camrec/internal/domain/camera"
)

const testPoll = 5 * time.Millisecond

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

// runAsync starts s.Run and returns a channel with its result.
func runAsync(ctx context.Context, s *Supervisor) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunWithoutEnabledCameras(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	s := New(nil, l, []camera.Definition{cam("camera_b", false)}, camera.Profile{}, Options{PollInterval: testPoll})

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, l.attempted())
	assert.Equal(t, 0, ExitCode(nil))
}

func TestRunRegistersOnlyEnabledCameras(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	s := New(nil, l, []camera.Definition{cam("camera_b", false), cam("camera_a", true)}, camera.Profile{},
		Options{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)

	require.Eventually(t, func() bool { return s.Registry().Len() == 1 }, time.Second, time.Millisecond)
	mp, ok := s.Registry().Get("camera_a")
	require.True(t, ok)
	assert.Equal(t, StateRunning, mp.State())
	_, ok = s.Registry().Get("camera_b")
	assert.False(t, ok)

	cancel()
	require.NoError(t, waitRun(t, errc))
	assert.Equal(t, []string{"camera_a"}, l.attempted())
	assert.Equal(t, 0, s.Registry().Len())
}

func TestRunWhenEveryLaunchFails(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log, logs := observed()
	l := newFakeLauncher()
	l.fail["camera_a"] = errors.New("exec: \"ffmpeg\": executable file not found in $PATH")
	l.fail["camera_b"] = errors.New("fork/exec: resource temporarily unavailable")

	s := New(log, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"camera_a", "camera_b"}, l.attempted(), "a failed launch does not stop the others")
	assert.Equal(t, 2, logs.FilterMessage("launch failed; skipping camera").Len())
	assert.Equal(t, 1, logs.FilterMessage("no camera could be started; nothing to supervise").Len())
}

func TestSequentialStartupBlocksBehindUnreachableCamera(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	l.block["camera_a"] = true
	s := New(nil, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)

	require.Eventually(t, func() bool { return len(l.attempted()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"camera_a"}, l.attempted(), "camera_b waits for camera_a")
	assert.Equal(t, 0, s.Registry().Len())

	cancel()
	require.NoError(t, waitRun(t, errc))
	assert.Equal(t, []string{"camera_a"}, l.attempted())
	assert.Empty(t, l.all())
}

func TestParallelStartupDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	l.block["camera_a"] = true
	s := New(nil, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll, StartupMode: StartupParallel, StartupConcurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)

	require.Eventually(t, func() bool {
		_, ok := s.Registry().Get("camera_b")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, errc))

	hs := l.launched("camera_b")
	require.Len(t, hs, 1)
	assert.Equal(t, 1, hs[0].terminateCount())
	assert.Empty(t, l.launched("camera_a"))
}

func TestUnexpectedExitAbortsWithoutTerminatingSiblings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log, logs := observed()
	l := newFakeLauncher()
	l.prepare = func(id string, h *fakeHandle) {
		if id == "camera_a" {
			h.exitAfterPolls = 3
			h.exitCode = 1
			h.setDiagnostics("rtsp://cam: method DESCRIBE failed: 401 Unauthorized", "Conversion failed!")
		}
	}
	s := New(log, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedExit)
	assert.Contains(t, err.Error(), "camera_a")
	assert.Equal(t, 1, ExitCode(err))

	a := l.launched("camera_a")[0]
	b := l.launched("camera_b")[0]
	assert.Equal(t, 3, a.pollCount(), "detected on the poll where it exited")
	assert.Zero(t, b.terminateCount(), "siblings get no termination request")
	assert.Zero(t, b.killCount())
	assert.False(t, b.exited())

	critical := logs.FilterMessage("CRITICAL: capture process exited unexpectedly").All()
	require.Len(t, critical, 1)
	assert.Equal(t, zapcore.ErrorLevel, critical[0].Level)
	assert.Equal(t, "camera_a", critical[0].ContextMap()["camera"])
	assert.Equal(t, int64(1), critical[0].ContextMap()["exit_code"])

	stderr := logs.FilterMessage("capture stderr").All()
	require.Len(t, stderr, 2)
	assert.Equal(t, "Conversion failed!", stderr[1].ContextMap()["line"])

	_, ok := s.Registry().Get("camera_a")
	assert.False(t, ok, "exited entry is removed")
	_, ok = s.Registry().Get("camera_b")
	assert.True(t, ok)
}

func TestShutdownTerminatesEachProcessOnceAndWaits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	l.prepare = func(_ string, h *fakeHandle) { h.exitDelay = 30 * time.Millisecond }
	defs := []camera.Definition{cam("camera_a", true), cam("camera_b", true), cam("camera_c", true)}
	s := New(nil, l, defs, camera.Profile{}, Options{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)
	require.Eventually(t, func() bool { return s.Registry().Len() == 3 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, errc))

	hs := l.all()
	require.Len(t, hs, 3)
	for _, h := range hs {
		assert.True(t, h.exited(), "Run returns only after every child exited")
		assert.Equal(t, 1, h.terminateCount())
		assert.Zero(t, h.killCount())
	}
	assert.Equal(t, 0, s.Registry().Len())

	// a second request is a no-op
	s.Shutdown()
	for _, h := range hs {
		assert.Equal(t, 1, h.terminateCount())
	}
}

func TestRepeatedShutdownRequestsDuringDrain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	l.prepare = func(_ string, h *fakeHandle) { h.exitDelay = 200 * time.Millisecond }
	defs := []camera.Definition{cam("camera_a", true), cam("camera_b", true)}
	s := New(nil, l, defs, camera.Profile{}, Options{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)
	require.Eventually(t, func() bool { return s.Registry().Len() == 2 }, time.Second, time.Millisecond)

	cancel()
	hs := l.all()
	require.Len(t, hs, 2)
	require.Eventually(t, func() bool {
		for _, h := range hs {
			if h.terminateCount() == 0 {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	// children are still exiting; ask again twice
	cancel()
	second := make(chan struct{})
	go func() {
		s.Shutdown()
		close(second)
	}()
	select {
	case <-second:
		t.Fatal("second Shutdown returned before the first finished")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, waitRun(t, errc))
	<-second

	for _, h := range hs {
		assert.True(t, h.exited())
		assert.Equal(t, 1, h.terminateCalls(), "termination is requested exactly once")
		assert.Equal(t, 1, h.terminateCount())
		assert.Zero(t, h.killCount())
	}
}

func TestShutdownGraceKillsStragglers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log, logs := observed()
	l := newFakeLauncher()
	l.prepare = func(id string, h *fakeHandle) { h.ignoreTerm = id == "camera_a" }
	s := New(log, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll, ShutdownGrace: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)
	require.Eventually(t, func() bool { return s.Registry().Len() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, errc))

	a := l.launched("camera_a")[0]
	b := l.launched("camera_b")[0]
	assert.Equal(t, 1, a.killCount())
	assert.Zero(t, b.killCount())

	warn := logs.FilterMessage("capture process ignored termination; killing").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
	assert.Equal(t, "camera_a", warn[0].ContextMap()["camera"])
}

func TestCancelDuringSequentialStartup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := newFakeLauncher()
	l.block["camera_b"] = true
	s := New(nil, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true), cam("camera_c", true)},
		camera.Profile{}, Options{PollInterval: testPoll})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)
	require.Eventually(t, func() bool { return len(l.attempted()) == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, errc))

	assert.Equal(t, []string{"camera_a", "camera_b"}, l.attempted())
	a := l.launched("camera_a")[0]
	assert.Equal(t, 1, a.terminateCount(), "already running cameras are drained")
}

func TestRestartOneRelaunchesOnlyFailedCamera(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var aLaunches atomic.Int32
	l := newFakeLauncher()
	l.prepare = func(id string, h *fakeHandle) {
		if id == "camera_a" && aLaunches.Add(1) == 1 {
			h.exitAfterPolls = 2
			h.exitCode = 1
		}
	}
	s := New(nil, l, []camera.Definition{cam("camera_a", true), cam("camera_b", true)}, camera.Profile{},
		Options{PollInterval: testPoll, Policy: NewRestartOne(0)})

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)

	require.Eventually(t, func() bool {
		mp, ok := s.Registry().Get("camera_a")
		return len(l.launched("camera_a")) == 2 && ok && mp.State() == StateRunning
	}, 2*time.Second, time.Millisecond)

	b := l.launched("camera_b")
	require.Len(t, b, 1, "siblings are not relaunched")
	assert.Zero(t, b[0].terminateCount())

	cancel()
	require.NoError(t, waitRun(t, errc))

	a := l.launched("camera_a")
	assert.Zero(t, a[0].terminateCount(), "the failed process exited on its own")
	assert.Equal(t, 1, a[1].terminateCount())
	assert.Equal(t, 1, b[0].terminateCount())
}

func TestParseOptions(t *testing.T) {
	p, err := ParsePolicy("", time.Second)
	require.NoError(t, err)
	assert.Equal(t, PolicyAbortAll, p.Name())

	p, err = ParsePolicy(PolicyRestartOne, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.(*RestartOne).Cooldown)

	_, err = ParsePolicy("restart-everything", 0)
	assert.Error(t, err)

	m, err := ParseStartupMode("parallel")
	require.NoError(t, err)
	assert.Equal(t, StartupParallel, m)
	_, err = ParseStartupMode("eventually")
	assert.Error(t, err)
}
