package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/service"
	"github.com/edirooss/camrec/pkg/avurl"
)

// RecorderHandler exposes the recorder service unit and a read-only view of
// what it records.
type RecorderHandler struct {
	log     *zap.Logger
	units   service.UnitManager
	unit    string
	store   *service.ConfigStore
	hostnet *service.HostNetwork
}

func NewRecorderHandler(log *zap.Logger, units service.UnitManager, unit string, store *service.ConfigStore, hostnet *service.HostNetwork) *RecorderHandler {
	return &RecorderHandler{log: log.Named("recorder"), units: units, unit: unit, store: store, hostnet: hostnet}
}

// Restart handles POST /api/recorder/restart.
func (h *RecorderHandler) Restart(c *gin.Context) {
	if err := h.units.Restart(c.Request.Context(), h.unit); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	h.log.Info("recorder restarted", zap.String("unit", h.unit))
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Service '" + h.unit + "' restarted."})
}

// Status handles GET /api/recorder/status. The status field carries the
// unit's ActiveState verbatim.
func (h *RecorderHandler) Status(c *gin.Context) {
	state, err := h.units.ActiveState(c.Request.Context(), h.unit)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": h.unit, "status": state})
}

type cameraSummary struct {
	ID        string `json:"id"`
	Source    string `json:"source"` // password redacted
	OutputDir string `json:"output_dir"`
	Interface string `json:"interface,omitempty"` // local NIC on the camera's subnet
}

// Cameras handles GET /api/recorder/cameras: the enabled cameras of the
// stored document in ID order, each with the host interface that reaches it
// directly when there is one.
func (h *RecorderHandler) Cameras(c *gin.Context) {
	doc, err := h.store.Document()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	enabled := doc.Enabled()
	out := make([]cameraSummary, 0, len(enabled))
	for _, def := range enabled {
		src := avurl.EmbeddUserinfo(avurl.RTSP(def.Host, def.Port, def.Path), def.Username, def.Password)
		out = append(out, cameraSummary{
			ID:        def.ID,
			Source:    src.Redacted(),
			OutputDir: filepath.Join(doc.BaseOutputDir, def.FolderName),
			Interface: h.hostnet.InterfaceFor(c.Request.Context(), def.Host),
		})
	}
	c.Header("X-Total-Count", strconv.Itoa(len(out)))
	c.JSON(http.StatusOK, out)
}
