package camera

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edirooss/camrec/pkg/hostutil"
)

var transports = map[string]struct{}{
	"tcp":           {},
	"udp":           {},
	"udp_multicast": {},
	"http":          {},
	"https":         {},
}

// Validate checks the fields the capture command depends on.
// Disabled cameras are never launched and are not validated.
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("missing camera id")
	}
	if !d.Enabled {
		return nil
	}
	if d.Host == "" {
		return fmt.Errorf("%s: missing ip_address", d.ID)
	}
	if err := hostutil.ValidateHost(strings.Trim(d.Host, "[]")); err != nil {
		return fmt.Errorf("%s: %w", d.ID, err)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%s: bad port: %d", d.ID, d.Port)
	}
	if err := validateFolderName(d.FolderName); err != nil {
		return fmt.Errorf("%s: %w", d.ID, err)
	}
	return nil
}

// Validate checks a profile after defaults were applied.
func (p Profile) Validate() error {
	if _, ok := transports[p.RTSPTransport]; !ok {
		return fmt.Errorf("unsupported rtsp_transport: '%s'", p.RTSPTransport)
	}
	if p.SegmentTime <= 0 {
		return fmt.Errorf("segment_time must be positive, got %d", p.SegmentTime)
	}
	if strings.ContainsAny(p.SegmentFormat, "/\\ ") {
		return fmt.Errorf("bad segment_format: '%s'", p.SegmentFormat)
	}
	return nil
}

// validateFolderName keeps recordings inside the base output directory.
func validateFolderName(name string) error {
	switch {
	case name == "":
		return errors.New("missing folder_name")
	case name == "." || name == "..":
		return fmt.Errorf("bad folder_name: '%s'", name)
	case strings.ContainsAny(name, "/\\"):
		return fmt.Errorf("folder_name must be a single path element: '%s'", name)
	}
	return nil
}
