package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/config"
	"github.com/edirooss/camrec/internal/domain/camera"
	"github.com/edirooss/camrec/internal/metrics"
	"github.com/edirooss/camrec/pkg/capturecmd"
)

// ErrOffloadConfig means the document lacks what the upload job needs.
var ErrOffloadConfig = errors.New("offload misconfigured")

const DefaultRclonePath = "/usr/bin/rclone"

// SegmentSettleMargin is added to the segment length when deciding that a
// file is no longer being written.
const SegmentSettleMargin = 60 * time.Second

type OffloadOptions struct {
	RclonePath string
	Timeout    time.Duration // 0 = no limit
}

// Offloader moves finished segments from the recorder's output directory to
// the rclone remote named in the camera document.
type Offloader struct {
	log  *zap.Logger
	opts OffloadOptions
}

func NewOffloader(log *zap.Logger, opts OffloadOptions) *Offloader {
	if opts.RclonePath == "" {
		opts.RclonePath = DefaultRclonePath
	}
	return &Offloader{log: log.Named("offload"), opts: opts}
}

// Command builds the rclone invocation for doc:
//
//	rclone move <base_output_dir> <drive>:<upload_dir> --include *.<ext>
//	       --min-age <segment_time+margin>s --delete-empty-src-dirs --log-level INFO
//
// The open segment is modified continuously, so --min-age keeps it out of
// the transfer.
func (o *Offloader) Command(doc *config.Document) (*capturecmd.Builder, error) {
	var missing []string
	for key, v := range map[string]string{
		"base_output_dir": doc.BaseOutputDir,
		"log_file":        doc.LogFile,
		"upload_dir":      doc.UploadDir,
		"drive":           doc.Drive,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrOffloadConfig, strings.Join(missing, ", "))
	}

	profile := doc.Profile.WithDefaults()
	return capturecmd.NewBuilder(o.opts.RclonePath).
		WithString("move").
		WithString(doc.BaseOutputDir).
		WithString(doc.Drive+":"+doc.UploadDir).
		WithStringFlag("--include", "*."+profile.SegmentFormat).
		WithStringFlag("--min-age", minAge(profile.SegmentTime)).
		WithString("--delete-empty-src-dirs").
		WithStringFlag("--log-level", "INFO"), nil
}

// Run performs one upload pass and logs its outcome. A missing source
// directory, a missing rclone binary and a failed transfer are all returned
// as errors after being logged.
func (o *Offloader) Run(ctx context.Context, doc *config.Document) (err error) {
	defer func() { metrics.IncUpload(err == nil) }()

	o.log.Info("--- upload started ---")
	defer func() {
		if err != nil {
			o.log.Info("--- upload finished with error ---")
		} else {
			o.log.Info("--- upload finished ---")
		}
	}()

	b, err := o.Command(doc)
	if err != nil {
		o.log.Error("cannot upload", zap.Error(err))
		return err
	}
	if info, statErr := os.Stat(doc.BaseOutputDir); statErr != nil || !info.IsDir() {
		err = fmt.Errorf("%w: source directory %q not found", ErrOffloadConfig, doc.BaseOutputDir)
		o.log.Error("cannot upload", zap.Error(err))
		return err
	}

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	argv := b.BuildArgv()
	o.log.Info("executing", zap.String("cmd", b.BuildString()))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	var eerr *exec.ExitError
	switch {
	case err == nil:
		o.log.Info("rclone completed successfully")
		if out := strings.TrimSpace(stdout.String()); out != "" {
			o.log.Info("rclone output", zap.String("stdout", out))
		}
		if out := strings.TrimSpace(stderr.String()); out != "" {
			o.log.Info("rclone log", zap.String("stderr", out))
		}
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		o.log.Error("rclone not found; is it installed?", zap.String("path", o.opts.RclonePath), zap.Error(err))
	case errors.As(err, &eerr):
		o.log.Error("rclone failed",
			zap.Int("exit_code", eerr.ExitCode()),
			zap.String("stdout", strings.TrimSpace(stdout.String())),
			zap.String("stderr", strings.TrimSpace(stderr.String())))
	default:
		o.log.Error("rclone could not run", zap.Error(err))
	}
	return err
}

// minAge is the rclone --min-age of a completed segment: one full segment
// plus SegmentSettleMargin, in whole seconds.
func minAge(segment camera.Seconds) string {
	return fmt.Sprintf("%ds", int(segment)+int(SegmentSettleMargin/time.Second))
}
