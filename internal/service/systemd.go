package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// SystemctlUnits drives systemd through the systemctl binary.
type SystemctlUnits struct {
	systemctl string
	useSudo   bool
	timeout   time.Duration
	mu        sync.Mutex
}

// NewSystemctlUnits returns a systemctl-backed UnitManager. With useSudo,
// state-changing commands run through sudo (status queries never do).
func NewSystemctlUnits(useSudo bool) *SystemctlUnits {
	return &SystemctlUnits{systemctl: "systemctl", useSudo: useSudo, timeout: 10 * time.Second}
}

// withCritical serializes state-changing commands on this instance.
func (s *SystemctlUnits) withCritical(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *SystemctlUnits) Restart(ctx context.Context, unit string) error {
	return s.withCritical(func() error {
		if _, err := s.execSystemctl(ctx, s.useSudo, "restart", unitName(unit)); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		return nil
	})
}

// ActiveState runs `systemctl is-active`. Its non-zero exit for inactive
// units is not an error; the state word on stdout is the answer.
func (s *SystemctlUnits) ActiveState(ctx context.Context, unit string) (string, error) {
	out, err := s.execSystemctl(ctx, false, "is-active", unitName(unit))
	state := strings.TrimSpace(out)

	var eerr *exec.ExitError
	if err != nil && !(errors.As(err, &eerr) && state != "") {
		return "", fmt.Errorf("is-active: %w", err)
	}
	return state, nil
}

// execSystemctl runs systemctl and returns stdout.
// No locking here; callers that mutate enter via withCritical.
func (s *SystemctlUnits) execSystemctl(ctx context.Context, sudo bool, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, argv := s.systemctl, args
	if sudo {
		name, argv = "sudo", append([]string{"-n", s.systemctl}, args...)
	}
	cmd := exec.CommandContext(ctx, name, argv...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		return stdoutBuf.String(), fmt.Errorf("systemd (command=%q): %w: %s",
			name+" "+strings.Join(argv, " "), err, strings.TrimSpace(stderrBuf.String()))
	}
	return stdoutBuf.String(), nil
}
