package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/service"
	"github.com/edirooss/camrec/pkg/jsonx"
)

// MaxConfigBody caps POST /api/config bodies.
const MaxConfigBody = 1 << 20

// ConfigHandler serves the camera document.
//
//   - GET  /api/config → the stored document, unknown keys included
//   - POST /api/config → validate and atomically replace the document
type ConfigHandler struct {
	log   *zap.Logger
	store *service.ConfigStore
}

func NewConfigHandler(log *zap.Logger, store *service.ConfigStore) *ConfigHandler {
	return &ConfigHandler{log: log.Named("config"), store: store}
}

// GetConfig handles GET /api/config.
//
// Status Codes:
//   - 200 OK → the document
//   - 500 Internal Server Error → file missing or not a JSON object
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	obj, err := h.store.Raw()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to load configuration."})
		return
	}
	c.JSON(http.StatusOK, obj)
}

// SaveConfig handles POST /api/config.
//
// The body must be exactly one JSON object. It is parsed as a camera
// document and validated before anything is written; the recorder picks the
// change up on its next start.
//
// Status Codes:
//   - 200 OK → saved
//   - 400 Bad Request → malformed body or invalid document
//   - 413 Request Entity Too Large
//   - 500 Internal Server Error → write failed
func (h *ConfigHandler) SaveConfig(c *gin.Context) {
	obj, err := jsonx.ParseStrictJSONObject(c.Request.Body, MaxConfigBody)
	if err != nil {
		c.Error(err)
		var mbe *http.MaxBytesError
		if errors.Is(err, jsonx.ErrTooLarge) || errors.As(err, &mbe) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "error", "message": "Configuration too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if err := h.store.Replace(obj); err != nil {
		c.Error(err)
		if errors.Is(err, service.ErrInvalidDocument) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to save configuration."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Configuration saved."})
}
