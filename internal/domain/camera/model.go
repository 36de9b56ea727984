package camera

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultRTSPPort is used when a camera entry carries no explicit port.
const DefaultRTSPPort = 554

// Definition describes one video source and where its recordings go.
// It is immutable once loaded for a run.
type Definition struct {
	ID         string // document key, e.g. "camera_1"; unique within a run
	Enabled    bool
	Host       string
	Port       int
	Path       string // RTSP path without the leading slash
	Username   string
	Password   string
	FolderName string // per-camera directory under the base output dir
}

// Addr returns host:port in a form suitable for net.Dial.
func (d Definition) Addr() string {
	return joinHostPort(d.Host, d.Port)
}

// Profile holds the encoding options shared by every camera of a run
// ("common_ffmpeg_options" in the document). Read-only during a run.
type Profile struct {
	RTSPTransport string  `json:"rtsp_transport"`
	SegmentTime   Seconds `json:"segment_time"`
	Bitrate       string  `json:"bitrate,omitempty"`        // empty => stream copy
	SegmentFormat string  `json:"segment_format,omitempty"` // container / file extension
}

const (
	DefaultRTSPTransport = "tcp"
	DefaultSegmentTime   = Seconds(300)
	DefaultSegmentFormat = "mp4"
)

// WithDefaults returns a copy of p with zero fields filled in.
func (p Profile) WithDefaults() Profile {
	if p.RTSPTransport == "" {
		p.RTSPTransport = DefaultRTSPTransport
	}
	if p.SegmentTime == 0 {
		p.SegmentTime = DefaultSegmentTime
	}
	if p.SegmentFormat == "" {
		p.SegmentFormat = DefaultSegmentFormat
	}
	return p
}

// Reencode reports whether the video stream is transcoded instead of copied.
func (p Profile) Reencode() bool { return strings.TrimSpace(p.Bitrate) != "" }

// Seconds is a whole number of seconds. Operators write it both as a JSON
// number and as a string ("300"), so both decode.
type Seconds int

func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("seconds: %q is not a whole number", raw)
	}
	*s = Seconds(n)
	return nil
}

func (s Seconds) String() string { return strconv.Itoa(int(s)) }

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}
