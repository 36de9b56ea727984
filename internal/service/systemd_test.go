package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSystemctl writes a script that logs its argv to a file and answers
// is-active with state (exit 3 unless the state is "active").
func fakeSystemctl(t *testing.T, state string, restartExit string) (*SystemctlUnits, string) {
	t.Helper()
	dir := t.TempDir()
	log := filepath.Join(dir, "calls")
	bin := filepath.Join(dir, "systemctl")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> " + log + "\n" +
		"case \"$1\" in\n" +
		"  is-active) echo " + state + "; [ \"" + state + "\" = active ] && exit 0; exit 3 ;;\n" +
		"  restart) exit " + restartExit + " ;;\n" +
		"esac\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return &SystemctlUnits{systemctl: bin, timeout: 5 * time.Second}, log
}

func TestSystemctlActiveState(t *testing.T) {
	s, _ := fakeSystemctl(t, "active", "0")
	state, err := s.ActiveState(context.Background(), "rtsp-recorder")
	require.NoError(t, err)
	assert.Equal(t, "active", state)

	s, calls := fakeSystemctl(t, "inactive", "0")
	state, err = s.ActiveState(context.Background(), "rtsp-recorder")
	require.NoError(t, err, "non-zero exit with a state word is an answer")
	assert.Equal(t, "inactive", state)

	raw, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Equal(t, "is-active rtsp-recorder.service\n", string(raw))
}

func TestSystemctlRestart(t *testing.T) {
	s, calls := fakeSystemctl(t, "active", "0")
	require.NoError(t, s.Restart(context.Background(), "rtsp-recorder.service"))

	raw, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Equal(t, "restart rtsp-recorder.service\n", string(raw))

	s, _ = fakeSystemctl(t, "active", "1")
	err = s.Restart(context.Background(), "rtsp-recorder")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart rtsp-recorder.service")
}

func TestSystemctlMissingBinary(t *testing.T) {
	s := &SystemctlUnits{systemctl: filepath.Join(t.TempDir(), "nope"), timeout: time.Second}
	_, err := s.ActiveState(context.Background(), "x")
	assert.Error(t, err)
}

func TestUnitName(t *testing.T) {
	assert.Equal(t, "rtsp-recorder.service", unitName("rtsp-recorder"))
	assert.Equal(t, "camrec-upload.timer", unitName("camrec-upload.timer"))

	_, _, err := NewUnitManager("upstart", false)
	assert.Error(t, err)
}
