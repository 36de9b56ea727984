package recorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/camrec/internal/domain/camera"
	"github.com/edirooss/camrec/internal/metrics"
)

// StartupMode selects how the initial launches are performed.
type StartupMode string

const (
	// StartupSequential launches cameras one at a time in ID order; a camera
	// that is slow to come online delays the ones after it.
	StartupSequential StartupMode = "sequential"
	// StartupParallel gives every camera its own launch goroutine.
	StartupParallel StartupMode = "parallel"
)

func ParseStartupMode(s string) (StartupMode, error) {
	switch StartupMode(s) {
	case "", StartupSequential:
		return StartupSequential, nil
	case StartupParallel:
		return StartupParallel, nil
	default:
		return "", fmt.Errorf("unknown startup mode %q", s)
	}
}

const DefaultPollInterval = 10 * time.Second

type Options struct {
	PollInterval       time.Duration // liveness poll period; 0 = DefaultPollInterval
	ShutdownGrace      time.Duration // 0 = wait forever for children to exit
	StartupMode        StartupMode
	StartupConcurrency int // parallel mode only; 0 = unlimited
	Policy             FailurePolicy
}

// launchResult carries a finished launch back to the supervisor goroutine.
type launchResult struct {
	def     camera.Definition
	handle  Handle
	err     error
	startup bool
}

// Supervisor owns the registry for one run of the recorder.
type Supervisor struct {
	log      *zap.Logger
	launcher Launcher
	profile  camera.Profile
	opts     Options

	cameras  []camera.Definition // enabled, sorted by ID
	byID     map[string]camera.Definition
	registry *Registry

	// Asynchronous launches report here; only the Run goroutine reads it.
	results     chan launchResult
	inflight    map[string]bool
	pending     int
	everStarted bool
	bg          sync.WaitGroup

	shutdownOnce sync.Once
}

// New builds a supervisor for the enabled cameras in defs.
func New(log *zap.Logger, launcher Launcher, defs []camera.Definition, profile camera.Profile, opts Options) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StartupMode == "" {
		opts.StartupMode = StartupSequential
	}
	if opts.Policy == nil {
		opts.Policy = AbortAll{}
	}

	s := &Supervisor{
		log:      log.Named("recorder"),
		launcher: launcher,
		profile:  profile,
		opts:     opts,
		byID:     make(map[string]camera.Definition),
		registry: NewRegistry(),
		inflight: make(map[string]bool),
	}
	for _, d := range defs {
		if d.Enabled {
			s.cameras = append(s.cameras, d)
			s.byID[d.ID] = d
		}
	}
	sort.Slice(s.cameras, func(i, j int) bool { return s.cameras[i].ID < s.cameras[j].ID })
	s.results = make(chan launchResult, len(s.cameras))
	return s
}

// Registry exposes the live registry for read-only inspection.
func (s *Supervisor) Registry() *Registry { return s.registry }

// Run starts every enabled camera, then polls until ctx is cancelled or the
// failure policy gives up. Cancellation triggers Shutdown and a nil return.
// Having nothing to supervise is also a clean return.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.cameras) == 0 {
		s.log.Info("no enabled cameras; nothing to supervise")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.Info("starting cameras",
		zap.Int("cameras", len(s.cameras)),
		zap.String("mode", string(s.opts.StartupMode)),
		zap.String("policy", s.opts.Policy.Name()))

	s.startup(runCtx)
	if ctx.Err() != nil {
		s.Shutdown()
		return nil
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if !s.everStarted && s.pending == 0 {
			s.log.Info("no camera could be started; nothing to supervise")
			return nil
		}

		select {
		case <-ctx.Done():
			s.Shutdown()
			return nil

		case r := <-s.results:
			s.pending--
			s.accept(runCtx, r)

		case <-ticker.C:
			if err := s.pollOnce(runCtx); err != nil {
				cancel()
				s.abandonPending()
				return err
			}
			s.opts.Policy.OnTick(runCtx, s)
		}
	}
}

func (s *Supervisor) startup(ctx context.Context) {
	if s.opts.StartupMode == StartupParallel {
		s.startParallel(ctx)
		return
	}
	for _, def := range s.cameras {
		if ctx.Err() != nil {
			return
		}
		s.accept(ctx, s.launchOne(ctx, def, true))
	}
}

// startParallel hands every camera to its own goroutine, bounded by
// StartupConcurrency. Results come back through s.results.
func (s *Supervisor) startParallel(ctx context.Context) {
	defs := append([]camera.Definition(nil), s.cameras...)
	for _, def := range defs {
		s.inflight[def.ID] = true
	}
	s.pending += len(defs)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		var g errgroup.Group
		if s.opts.StartupConcurrency > 0 {
			g.SetLimit(s.opts.StartupConcurrency)
		}
		for _, def := range defs {
			def := def
			g.Go(func() error {
				s.results <- s.launchOne(ctx, def, true)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// relaunch starts cameraID again in the background unless it is already
// registered or launching.
func (s *Supervisor) relaunch(ctx context.Context, cameraID string) {
	def, ok := s.byID[cameraID]
	if !ok || s.inflight[cameraID] {
		return
	}
	if _, running := s.registry.Get(cameraID); running {
		return
	}

	s.log.Info("restarting camera", zap.String("camera", cameraID))
	s.inflight[cameraID] = true
	s.pending++
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.results <- s.launchOne(ctx, def, false)
	}()
}

func (s *Supervisor) launchOne(ctx context.Context, def camera.Definition, startup bool) launchResult {
	h, err := s.launcher.Launch(ctx, def, s.profile)
	if err == nil && h == nil {
		err = &LaunchError{CameraID: def.ID, Err: errors.New("launcher returned no handle")}
	}
	return launchResult{def: def, handle: h, err: err, startup: startup}
}

// accept registers a successful launch or logs a failed one.
func (s *Supervisor) accept(ctx context.Context, r launchResult) {
	delete(s.inflight, r.def.ID)
	log := s.log.With(zap.String("camera", r.def.ID))

	if r.err != nil {
		metrics.IncLaunch(r.def.ID, false)
		if ctx.Err() != nil {
			log.Info("launch abandoned", zap.Error(r.err))
			return
		}
		var le *LaunchError
		if errors.As(r.err, &le) && le.MissingExecutable() {
			log.Error("capture executable not found; skipping camera", zap.Error(r.err))
		} else {
			log.Error("launch failed; skipping camera", zap.Error(r.err))
		}
		if !r.startup {
			s.opts.Policy.OnLaunchFailed(ctx, s, r.def.ID, r.err)
		}
		return
	}

	mp := newManagedProcess(r.def.ID, r.handle)
	if err := s.registry.Put(mp); err != nil {
		log.Error("duplicate launch; killing the newer process", zap.Error(err))
		r.handle.Kill()
		return
	}
	s.everStarted = true
	metrics.IncLaunch(r.def.ID, true)
	metrics.SetRunning(s.registry.Len())
	log.Info("camera started", zap.Int("pid", r.handle.PID()))
}

// pollOnce checks every entry without blocking, in camera ID order.
func (s *Supervisor) pollOnce(ctx context.Context) error {
	for _, mp := range s.registry.List() {
		code, exited := mp.Handle.Exited()
		if !exited {
			continue
		}

		mp.markExited(code)
		s.registry.Remove(mp.CameraID)
		metrics.IncExit(mp.CameraID)
		metrics.SetRunning(s.registry.Len())

		log := s.log.With(zap.String("camera", mp.CameraID))
		log.Error("CRITICAL: capture process exited unexpectedly",
			zap.Int("pid", mp.Handle.PID()),
			zap.Int("exit_code", code),
			zap.Duration("uptime", time.Since(mp.StartedAt)))
		for _, line := range mp.Handle.Diagnostics() {
			log.Error("capture stderr", zap.String("line", line))
		}

		if err := s.opts.Policy.OnExit(ctx, s, mp); err != nil {
			return err
		}
	}
	return nil
}

// abandonPending waits for in-flight launches after an abort and kills any
// process that came up in the meantime; it was never registered.
func (s *Supervisor) abandonPending() {
	for s.pending > 0 {
		r := <-s.results
		s.pending--
		if r.handle != nil {
			s.log.Warn("launch completed after abort; killing", zap.String("camera", r.def.ID), zap.Int("pid", r.handle.PID()))
			r.handle.Kill()
		}
	}
	s.bg.Wait()
}
