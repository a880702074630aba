package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmcale/go-incident-dispatch/internal/importer"
)

type importFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// importUnits bulk-registers a fleet roster from an uploaded CSV file.
// Parsing is all-or-nothing; registration failures are reported per row.
func (h *Handler) importUnits(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	units, err := importer.ParseUnits(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var failed []importFailure
	imported := 0
	for _, u := range units {
		if err := h.registry.Register(u); err != nil {
			failed = append(failed, importFailure{ID: u.ID, Error: err.Error()})
			continue
		}
		imported++
	}
	if imported > 0 {
		h.engine.Nudge()
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported, "failed": failed})
}

func (h *Handler) importIncidents(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	incidents, err := importer.ParseIncidents(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var failed []importFailure
	imported := 0
	for _, inc := range incidents {
		if err := h.queue.Enqueue(inc); err != nil {
			failed = append(failed, importFailure{ID: inc.ID, Error: err.Error()})
			continue
		}
		imported++
	}
	if imported > 0 {
		h.engine.Nudge()
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported, "failed": failed})
}
