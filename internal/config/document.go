package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/edirooss/camrec/internal/domain/camera"
	"github.com/edirooss/camrec/pkg/hostutil"
)

// ErrConfig marks a camera document that is missing or cannot be used.
// It is fatal at recorder startup.
var ErrConfig = errors.New("config error")

// Document keys. Every key with CameraKeyPrefix is a camera entry; the
// remaining keys are shared settings. Unknown keys are ignored here and kept
// verbatim by the control API.
const (
	CameraKeyPrefix  = "camera_"
	keyCommonOptions = "common_ffmpeg_options"
	keyBaseOutputDir = "base_output_dir"
	keyLogFile       = "log_file"
	keyUploadDir     = "upload_dir"
	keyDrive         = "drive"
	keyAllowedUsers  = "allowed_users"

	DefaultBaseOutputDir = "/tmp"
)

// Document is the parsed camera configuration shared by the recorder, the
// control API and the upload job.
type Document struct {
	Cameras       []camera.Definition // sorted by ID
	Profile       camera.Profile      // defaults applied
	BaseOutputDir string
	LogFile       string
	UploadDir     string
	Drive         string
	AllowedUsers  []string
}

// cameraEntry is the on-disk shape of one camera.
type cameraEntry struct {
	Enabled    bool   `json:"enabled"`
	IPAddress  string `json:"ip_address"`
	Port       int    `json:"port"`
	RTSPPath   string `json:"rtsp_path"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	FolderName string `json:"folder_name"`
}

// LoadDocument reads and validates the camera document at path.
// Every failure wraps ErrConfig.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return doc, nil
}

// ParseDocument decodes a camera document. It checks shape only; call
// Validate for field-level rules.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if top == nil {
		return nil, errors.New("parse: document must be a JSON object")
	}

	doc := &Document{BaseOutputDir: DefaultBaseOutputDir}
	for key, raw := range top {
		var err error
		switch {
		case strings.HasPrefix(key, CameraKeyPrefix):
			var def camera.Definition
			def, err = decodeCamera(key, raw)
			if err == nil {
				doc.Cameras = append(doc.Cameras, def)
			}
		case key == keyCommonOptions:
			err = json.Unmarshal(raw, &doc.Profile)
		case key == keyBaseOutputDir:
			err = json.Unmarshal(raw, &doc.BaseOutputDir)
		case key == keyLogFile:
			err = json.Unmarshal(raw, &doc.LogFile)
		case key == keyUploadDir:
			err = json.Unmarshal(raw, &doc.UploadDir)
		case key == keyDrive:
			err = json.Unmarshal(raw, &doc.Drive)
		case key == keyAllowedUsers:
			err = json.Unmarshal(raw, &doc.AllowedUsers)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", key, err)
		}
	}

	sort.Slice(doc.Cameras, func(i, j int) bool { return doc.Cameras[i].ID < doc.Cameras[j].ID })
	doc.Profile = doc.Profile.WithDefaults()
	if doc.BaseOutputDir == "" {
		doc.BaseOutputDir = DefaultBaseOutputDir
	}
	return doc, nil
}

func decodeCamera(id string, raw json.RawMessage) (camera.Definition, error) {
	var e cameraEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return camera.Definition{}, err
	}

	def := camera.Definition{
		ID:         id,
		Enabled:    e.Enabled,
		Path:       strings.TrimPrefix(e.RTSPPath, "/"),
		Username:   e.Username,
		Password:   e.Password,
		FolderName: e.FolderName,
	}
	if def.FolderName == "" {
		def.FolderName = id
	}

	if e.IPAddress != "" {
		host, port, err := hostutil.SplitHostPort(e.IPAddress, camera.DefaultRTSPPort)
		switch {
		case err == nil:
			def.Host, def.Port = host, port
		case e.Enabled:
			return camera.Definition{}, err
		default:
			// disabled entries may hold placeholders; kept as written
			def.Host = e.IPAddress
		}
	}
	if e.Port != 0 {
		def.Port = e.Port
	}
	if def.Port == 0 {
		def.Port = camera.DefaultRTSPPort
	}
	return def, nil
}

// Validate applies field rules to the profile and every enabled camera.
func (d *Document) Validate() error {
	if err := d.Profile.Validate(); err != nil {
		return fmt.Errorf("%s: %w", keyCommonOptions, err)
	}
	var errs []error
	for _, c := range d.Cameras {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enabled returns the enabled cameras in ID order.
func (d *Document) Enabled() []camera.Definition {
	out := make([]camera.Definition, 0, len(d.Cameras))
	for _, c := range d.Cameras {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Allows reports whether id is on the control-plane allow-list.
// An empty list allows nobody.
func (d *Document) Allows(id string) bool {
	for _, u := range d.AllowedUsers {
		if u != "" && u == id {
			return true
		}
	}
	return false
}
