package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/config"
	"github.com/edirooss/camrec/internal/metrics"
)

// ErrInvalidDocument wraps validation failures of a proposed camera
// document. Handlers map it to 400.
var ErrInvalidDocument = errors.New("invalid camera document")

// ConfigStore reads and replaces the camera document the recorder consumes.
// Unknown top-level keys are kept as they are.
type ConfigStore struct {
	log  *zap.Logger
	path string
	mu   sync.RWMutex
}

func NewConfigStore(log *zap.Logger, path string) *ConfigStore {
	return &ConfigStore{log: log.Named("configstore"), path: path}
}

func (s *ConfigStore) Path() string { return s.path }

// Raw returns the stored document as a key → raw JSON map.
func (s *ConfigStore) Raw() (map[string]json.RawMessage, error) {
	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("parse %s: not a JSON object", s.path)
	}
	return obj, nil
}

// Document returns the parsed and validated document.
func (s *ConfigStore) Document() (*config.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.LoadDocument(s.path)
}

// Replace validates obj as a camera document and atomically writes it,
// indented by two spaces. The previous file stays intact on any error.
func (s *ConfigStore) Replace(obj map[string]json.RawMessage) (err error) {
	defer func() { metrics.IncConfigWrite(err == nil) }()

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	doc, err := config.ParseDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			s.log.Debug("cleanup pending config file", zap.Error(cerr))
		}
	}()

	if _, err := pending.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config: %w", err)
	}

	s.log.Info("camera document replaced",
		zap.String("path", s.path),
		zap.Int("cameras", len(doc.Cameras)),
		zap.Int("enabled", len(doc.Enabled())))
	return nil
}

// AllowedUsers returns the control-plane allow-list. It reads only the
// allowed_users key so a document with a broken camera entry can still be
// fixed through the API.
func (s *ConfigStore) AllowedUsers() ([]string, error) {
	obj, err := s.Raw()
	if err != nil {
		return nil, err
	}
	raw, ok := obj["allowed_users"]
	if !ok {
		return nil, nil
	}
	var users []string
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("parse allowed_users: %w", err)
	}
	return users, nil
}
