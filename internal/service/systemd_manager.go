package service

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// SystemdManager is a client for the systemd Manager D-Bus interface.
//
// It binds to the well-known bus name "org.freedesktop.systemd1" at the
// object path "/org/freedesktop/systemd1", which exports the
// org.freedesktop.systemd1.Manager interface.
type SystemdManager struct {
	conn *dbus.Conn
	obj  dbus.BusObject // Proxy object bound to /org/freedesktop/systemd1.
}

const (
	systemdDest     = "org.freedesktop.systemd1"
	systemdPath     = "/org/freedesktop/systemd1"
	managerIface    = "org.freedesktop.systemd1.Manager"
	unitIface       = "org.freedesktop.systemd1.Unit"
	propertiesIface = "org.freedesktop.DBus.Properties"
)

// ConnectSystemdManager opens a private connection to the system bus.
func ConnectSystemdManager() (*SystemdManager, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return NewSystemdManager(conn), nil
}

// NewSystemdManager returns a SystemdManager bound to the systemd Manager
// interface on conn (typically the system bus).
func NewSystemdManager(conn *dbus.Conn) *SystemdManager {
	return &SystemdManager{
		conn: conn,
		obj:  conn.Object(systemdDest, systemdPath),
	}
}

func (m *SystemdManager) Close() error { return m.conn.Close() }

// RestartUnit queues a restart job for unit.
//
//	RestartUnit(in s name, in s mode, out o job)
//
// The call is asynchronous: it returns once the job is queued, not when
// the unit is back up. Poll ActiveState to observe the outcome.
func (m *SystemdManager) RestartUnit(ctx context.Context, unit string) (dbus.ObjectPath, error) {
	var jobPath dbus.ObjectPath
	call := m.obj.CallWithContext(ctx, managerIface+".RestartUnit", 0, unit, "replace")
	if call.Err != nil {
		return jobPath, fmt.Errorf("RestartUnit %q call: %w", unit, call.Err)
	}
	if err := call.Store(&jobPath); err != nil {
		return jobPath, fmt.Errorf("RestartUnit %q store: %w", unit, err)
	}
	return jobPath, nil
}

// LoadUnit resolves the object path of unit, loading it if needed.
//
//	LoadUnit(in s name, out o unit)
func (m *SystemdManager) LoadUnit(ctx context.Context, unit string) (dbus.ObjectPath, error) {
	var unitPath dbus.ObjectPath
	call := m.obj.CallWithContext(ctx, managerIface+".LoadUnit", 0, unit)
	if call.Err != nil {
		return unitPath, fmt.Errorf("LoadUnit %q call: %w", unit, call.Err)
	}
	if err := call.Store(&unitPath); err != nil {
		return unitPath, fmt.Errorf("LoadUnit %q store: %w", unit, err)
	}
	return unitPath, nil
}

// Restart implements UnitManager.
func (m *SystemdManager) Restart(ctx context.Context, unit string) error {
	_, err := m.RestartUnit(ctx, unitName(unit))
	return err
}

// ActiveState implements UnitManager by reading the unit's ActiveState
// property.
func (m *SystemdManager) ActiveState(ctx context.Context, unit string) (string, error) {
	path, err := m.LoadUnit(ctx, unitName(unit))
	if err != nil {
		return "", err
	}

	var v dbus.Variant
	call := m.conn.Object(systemdDest, path).CallWithContext(ctx, propertiesIface+".Get", 0, unitIface, "ActiveState")
	if call.Err != nil {
		return "", fmt.Errorf("get ActiveState of %q: %w", unit, call.Err)
	}
	if err := call.Store(&v); err != nil {
		return "", fmt.Errorf("get ActiveState of %q store: %w", unit, err)
	}
	state, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("ActiveState of %q has type %s", unit, v.Signature())
	}
	return state, nil
}
