package capturecmd

import (
	"path/filepath"

	"github.com/edirooss/camrec/internal/domain/camera"
	"github.com/edirooss/camrec/pkg/avurl"
)

// ConnectTimeoutMicros bounds how long the capture binary waits for the
// camera's RTSP handshake (ffmpeg -timeout, microseconds).
const ConnectTimeoutMicros = 5_000_000

// OutputPattern is the strftime pattern of the segment files of one camera:
//
//	<dir>/<camera-id>-%Y%m%d-%H%M%S.<ext>
func OutputPattern(dir, cameraID, ext string) string {
	return filepath.Join(dir, cameraID+"-%Y%m%d-%H%M%S."+ext)
}

// FromCamera materializes the ffmpeg invocation that records one camera:
//
//	ffmpeg -hide_banner -nostdin -loglevel warning
//	       -rtsp_transport <t> -timeout <µs> -i <src>
//	       (-c copy | -c:v libx264 -b:v <bitrate> -c:a copy) -map 0
//	       -f segment -segment_time <s> -segment_format <fmt>
//	       -reset_timestamps 1 -strftime 1 <pattern>
//
// Ordering is stable to minimize operational surprises when diffing commands.
//
// NOTE: This function does *not* validate domain fields; it encodes them.
// Validation belongs in the domain layer.
func FromCamera(binary string, def camera.Definition, profile camera.Profile, src avurl.URL, outputDir string) *Builder {
	profile = profile.WithDefaults()
	b := NewBuilder(binary)

	// --- Global flags ---
	b.WithString("-hide_banner").
		WithString("-nostdin").
		WithStringFlag("-loglevel", "warning")

	// --- Input ---
	b.WithStringFlag("-rtsp_transport", profile.RTSPTransport).
		WithIntFlag("-timeout", ConnectTimeoutMicros).
		WithSecretFlag("-i", src.String(), src.Redacted())

	// --- Codec: stream copy unless a bitrate asks for re-encoding ---
	if profile.Reencode() {
		b.WithStringFlag("-c:v", "libx264").
			WithStringFlag("-b:v", profile.Bitrate).
			WithStringFlag("-c:a", "copy")
	} else {
		b.WithStringFlag("-c", "copy")
	}
	b.WithStringFlag("-map", "0")

	// --- Segmented output ---
	b.WithStringFlag("-f", "segment").
		WithStringFlag("-segment_time", profile.SegmentTime.String()).
		WithStringFlag("-segment_format", profile.SegmentFormat).
		WithIntFlag("-reset_timestamps", 1).
		WithIntFlag("-strftime", 1).
		WithString(OutputPattern(outputDir, def.ID, profile.SegmentFormat))

	return b
}
