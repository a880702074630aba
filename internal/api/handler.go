package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmcale/go-incident-dispatch/internal/broadcast"
	"github.com/jmcale/go-incident-dispatch/internal/costmodel"
	"github.com/jmcale/go-incident-dispatch/internal/engine"
	"github.com/jmcale/go-incident-dispatch/internal/ledger"
	"github.com/jmcale/go-incident-dispatch/internal/models"
	"github.com/jmcale/go-incident-dispatch/internal/planner"
	"github.com/jmcale/go-incident-dispatch/internal/queue"
	"github.com/jmcale/go-incident-dispatch/internal/registry"

	"github.com/google/uuid"
)

type Handler struct {
	registry *registry.Registry
	queue    *queue.Queue
	engine   *engine.Engine
	store    ledger.Store
	events   *broadcast.Broadcaster
	costs    *costmodel.Model
	planning planner.Params
}

func NewHandler(reg *registry.Registry, q *queue.Queue, eng *engine.Engine, store ledger.Store, events *broadcast.Broadcaster, costs *costmodel.Model, planning planner.Params) *Handler {
	return &Handler{
		registry: reg,
		queue:    q,
		engine:   eng,
		store:    store,
		events:   events,
		costs:    costs,
		planning: planning,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api/v1")

	// Ingestion boundary
	api.POST("/incidents", h.createIncident)
	api.POST("/incidents/:id/escalate", h.escalateIncident)
	api.POST("/incidents/:id/resolve", h.resolveIncident)
	api.POST("/incidents/:id/cancel", h.cancelIncident)
	api.POST("/import/incidents", h.importIncidents)

	// Fleet boundary
	api.POST("/units", h.registerUnit)
	api.PATCH("/units/:id/status", h.setUnitStatus)
	api.PATCH("/units/:id/location", h.setUnitLocation)
	api.POST("/import/units", h.importUnits)

	// Reporting boundary (read-only)
	api.GET("/incidents", h.listOpenIncidents)
	api.GET("/units", h.listUnits)
	api.GET("/assignments", h.listLedger)
	api.GET("/assignments/active", h.activeAssignments)
	api.GET("/assignments/stream", h.streamAssignments)
	api.GET("/queue/stats", h.queueStats)

	// Advisory planning
	api.POST("/plan", h.planBoard)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createIncidentRequest struct {
	ID          string  `json:"id"`
	Severity    string  `json:"severity" binding:"required"`
	UnitType    string  `json:"unit_type" binding:"required"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ReportedAt  string  `json:"reported_at"`
}

func (h *Handler) createIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sev, err := models.ParseSeverity(req.Severity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	utype, err := models.ParseUnitType(req.UnitType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc := models.Incident{
		ID:          req.ID,
		Severity:    sev,
		UnitType:    utype,
		Description: req.Description,
		Status:      models.IncidentOpen,
		Location:    models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if req.ReportedAt != "" {
		if inc.ReportedAt, err = time.Parse(time.RFC3339, req.ReportedAt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reported_at, want RFC 3339"})
			return
		}
	}

	if err := h.queue.Enqueue(inc); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.engine.Nudge()

	created, _ := h.queue.Get(inc.ID)
	c.JSON(http.StatusCreated, created)
}

type escalateRequest struct {
	Severity string `json:"severity" binding:"required"`
}

func (h *Handler) escalateIncident(c *gin.Context) {
	var req escalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sev, err := models.ParseSeverity(req.Severity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queue.Escalate(c.Param("id"), sev); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.engine.Nudge()

	inc, _ := h.queue.Get(c.Param("id"))
	c.JSON(http.StatusOK, inc)
}

func (h *Handler) resolveIncident(c *gin.Context) {
	if err := h.engine.Resolve(c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (h *Handler) cancelIncident(c *gin.Context) {
	if err := h.engine.Cancel(c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type registerUnitRequest struct {
	ID         string  `json:"id"`
	Type       string  `json:"type" binding:"required"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Capability float64 `json:"capability"`
	HourlyRate float64 `json:"hourly_rate"`
}

func (h *Handler) registerUnit(c *gin.Context) {
	var req registerUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	utype, err := models.ParseUnitType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u := models.Unit{
		ID:         req.ID,
		Type:       utype,
		Status:     models.UnitAvailable,
		Location:   models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		Capability: req.Capability,
		HourlyRate: req.HourlyRate,
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	if err := h.registry.Register(u); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.engine.Nudge()

	created, _ := h.registry.Get(u.ID)
	c.JSON(http.StatusCreated, created)
}

type setStatusRequest struct {
	Status       string   `json:"status" binding:"required"`
	HoursOnShift *float64 `json:"hours_on_shift"`
}

func (h *Handler) setUnitStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := parseUnitStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unitID := c.Param("id")

	// A unit bound to an open assignment leaves it only through incident
	// resolution or cancellation, never a raw fleet status change.
	if incidentID, bound := h.engine.AssignmentForUnit(unitID); bound &&
		(status == models.UnitAvailable || status == models.UnitOutOfService) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "unit has an active assignment; resolve or cancel the incident first",
			"incident_id": incidentID,
		})
		return
	}

	if err := h.registry.SetStatus(unitID, status); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if req.HoursOnShift != nil {
		if err := h.registry.UpdateShiftHours(unitID, *req.HoursOnShift); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
	}
	if status == models.UnitAvailable {
		h.engine.Nudge()
	}

	u, _ := h.registry.Get(unitID)
	c.JSON(http.StatusOK, u)
}

type setLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) setUnitLocation(c *gin.Context) {
	var req setLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loc := models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := h.registry.UpdateLocation(c.Param("id"), loc); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	u, _ := h.registry.Get(c.Param("id"))
	c.JSON(http.StatusOK, u)
}

func (h *Handler) listUnits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"units": h.registry.ListUnits()})
}

func (h *Handler) listOpenIncidents(c *gin.Context) {
	fc := toGeoJSON(h.queue.OpenIncidents())
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) listLedger(c *gin.Context) {
	filter := ledger.Filter{
		Limit:      50,
		IncidentID: c.Query("incident_id"),
		UnitID:     c.Query("unit_id"),
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if ev := c.Query("event"); ev != "" {
		e := ledger.EventType(ev)
		filter.Event = &e
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}

	entries, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ledger entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) activeAssignments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assignments": h.engine.ActiveAssignments()})
}

func (h *Handler) queueStats(c *gin.Context) {
	depths := h.queue.Depths()
	bySeverity := make(map[string]int, len(depths))
	total := 0
	for sev, n := range depths {
		bySeverity[sev.String()] = n
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"open_by_severity":   bySeverity,
		"open_total":         total,
		"active_assignments": len(h.engine.ActiveAssignments()),
	})
}

func (h *Handler) planBoard(c *gin.Context) {
	params := h.planning
	if v := c.Query("trials"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Trials = n
		}
	}
	if v := c.Query("refine_iters"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			params.RefineIters = n
		}
	}
	if v := c.Query("seed"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Seed = n
		}
	}

	plan := planner.Solve(h.registry.ListUnits(), h.queue.OpenIncidents(), h.costs, params)
	c.JSON(http.StatusOK, plan)
}

func parseUnitStatus(raw string) (models.UnitStatus, error) {
	switch models.UnitStatus(raw) {
	case models.UnitAvailable, models.UnitEnRoute, models.UnitOnScene, models.UnitOutOfService:
		return models.UnitStatus(raw), nil
	default:
		return "", errors.New("unknown unit status " + strconv.Quote(raw))
	}
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNoActiveAssignment):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidSeverity):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAlreadyHandled),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrDuplicateID),
		errors.Is(err, models.ErrConcurrentClaim):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
