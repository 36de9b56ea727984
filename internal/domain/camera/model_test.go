package camera

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondsAcceptsStringAndNumber(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"rtsp_transport":"tcp","segment_time":"600"}`), &p))
	assert.Equal(t, Seconds(600), p.SegmentTime)

	require.NoError(t, json.Unmarshal([]byte(`{"segment_time":120}`), &p))
	assert.Equal(t, Seconds(120), p.SegmentTime)

	assert.Error(t, json.Unmarshal([]byte(`{"segment_time":"ten"}`), &p))
}

func TestProfileDefaults(t *testing.T) {
	p := Profile{}.WithDefaults()
	assert.Equal(t, "tcp", p.RTSPTransport)
	assert.Equal(t, DefaultSegmentTime, p.SegmentTime)
	assert.Equal(t, "mp4", p.SegmentFormat)
	assert.False(t, p.Reencode())
	require.NoError(t, p.Validate())

	p.RTSPTransport = "carrier-pigeon"
	assert.Error(t, p.Validate())
}

func TestDefinitionValidate(t *testing.T) {
	ok := Definition{ID: "camera_1", Enabled: true, Host: "192.168.1.20", Port: 554, FolderName: "cam1"}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "192.168.1.20:554", ok.Addr())

	cases := map[string]Definition{
		"missing host":   {ID: "c", Enabled: true, Port: 554, FolderName: "x"},
		"bad ip":         {ID: "c", Enabled: true, Host: "300.1.1.1", Port: 554, FolderName: "x"},
		"bad port":       {ID: "c", Enabled: true, Host: "cam.local", Port: 0, FolderName: "x"},
		"escaping dir":   {ID: "c", Enabled: true, Host: "cam.local", Port: 554, FolderName: "../etc"},
		"missing folder": {ID: "c", Enabled: true, Host: "cam.local", Port: 554},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, def.Validate())
		})
	}

	// disabled entries may be half-filled
	require.NoError(t, Definition{ID: "camera_9"}.Validate())
}

func TestAddrBracketsIPv6(t *testing.T) {
	d := Definition{Host: "fe80::1", Port: 8554}
	assert.Equal(t, "[fe80::1]:8554", d.Addr())
}
