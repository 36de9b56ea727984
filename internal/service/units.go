package service

import (
	"context"
	"fmt"
	"strings"
)

// UnitManager controls the host-level service unit running the recorder.
type UnitManager interface {
	Restart(ctx context.Context, unit string) error
	// ActiveState returns systemd's ActiveState ("active", "inactive",
	// "failed", "activating", ...).
	ActiveState(ctx context.Context, unit string) (string, error)
}

// NewUnitManager picks a backend by name: "systemctl" (default) or "dbus".
func NewUnitManager(backend string, useSudo bool) (UnitManager, func() error, error) {
	switch backend {
	case "", "systemctl":
		return NewSystemctlUnits(useSudo), func() error { return nil }, nil
	case "dbus":
		m, err := ConnectSystemdManager()
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown unit backend %q", backend)
	}
}

// unitName appends ".service" when no unit suffix is present.
func unitName(name string) string {
	for _, suffix := range []string{".service", ".timer", ".socket", ".target", ".path"} {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return name + ".service"
}
