//go:build linux

package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/domain/camera"
	"github.com/edirooss/camrec/internal/infrastructure/processmgr"
	"github.com/edirooss/camrec/internal/metrics"
	"github.com/edirooss/camrec/pkg/avurl"
	"github.com/edirooss/camrec/pkg/capturecmd"
)

// ReachabilityWaiter blocks until a camera endpoint accepts connections.
// *netprobe.Prober satisfies it.
type ReachabilityWaiter interface {
	WaitUntilReachable(ctx context.Context, host string, port int) error
}

type LauncherOptions struct {
	FFmpegPath    string
	BaseOutputDir string
	StderrLines   int
	Env           []string
}

// CaptureLauncher probes a camera, prepares its output directory and spawns
// ffmpeg for it.
type CaptureLauncher struct {
	log    *zap.Logger
	prober ReachabilityWaiter
	opts   LauncherOptions
}

func NewCaptureLauncher(log *zap.Logger, prober ReachabilityWaiter, opts LauncherOptions) *CaptureLauncher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &CaptureLauncher{log: log.Named("launcher"), prober: prober, opts: opts}
}

// Launch blocks until def is reachable, then starts its capture process and
// returns without waiting for it.
func (l *CaptureLauncher) Launch(ctx context.Context, def camera.Definition, profile camera.Profile) (Handle, error) {
	log := l.log.With(zap.String("camera", def.ID))

	log.Info("waiting for camera", zap.String("addr", def.Addr()))
	if err := l.prober.WaitUntilReachable(ctx, def.Host, def.Port); err != nil {
		metrics.IncProbe(def.ID, false)
		return nil, &LaunchError{CameraID: def.ID, Err: fmt.Errorf("wait for %s: %w", def.Addr(), err)}
	}
	metrics.IncProbe(def.ID, true)

	src := avurl.EmbeddUserinfo(avurl.RTSP(def.Host, def.Port, def.Path), def.Username, def.Password)

	dir := filepath.Join(l.opts.BaseOutputDir, def.FolderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &LaunchError{CameraID: def.ID, Err: fmt.Errorf("create output dir: %w", err)}
	}

	cmd := capturecmd.FromCamera(l.opts.FFmpegPath, def, profile, src, dir)
	log.Info("starting capture",
		zap.String("source", src.Redacted()),
		zap.String("output", dir),
		zap.String("cmd", cmd.BuildString()))

	p, err := processmgr.New(log.Named("process"), cmd.BuildArgv(), processmgr.Options{
		Env:         l.opts.Env,
		StderrLines: l.opts.StderrLines,
	})
	if err != nil {
		return nil, &LaunchError{CameraID: def.ID, Err: err}
	}
	if err := p.Start(); err != nil {
		return nil, &LaunchError{CameraID: def.ID, Err: err}
	}
	return p, nil
}
