package template

import (
	"log/slog"
	"net/http"
	"strconv"

	"tmplhub/internal/common"

	"github.com/gin-gonic/gin"
)

// MigrationEnqueuer schedules legacy-store migration jobs.
type MigrationEnqueuer interface {
	EnqueueMigrateLegacy(payload MigrateLegacyPayload) (string, error)
}

// Handler handles HTTP requests for template management.
type Handler struct {
	service  *Service
	enqueuer MigrationEnqueuer
}

// NewHandler creates a new template handler. A nil enqueuer disables the
// migration endpoint.
func NewHandler(service *Service, enqueuer MigrationEnqueuer) *Handler {
	return &Handler{service: service, enqueuer: enqueuer}
}

// TemplateRequest is the body of PUT .../templates/:locale. The display name
// and locale come from the path.
type TemplateRequest struct {
	ContentType string `json:"content_type"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Footer      string `json:"footer"`
}

// TypeRequest is the body of POST .../types.
type TypeRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// MigrationRequest is the body of POST /tenants/:tenant/migrations.
type MigrationRequest struct {
	Channel string   `json:"channel" binding:"required"`
	AppIDs  []string `json:"app_ids"`
}

// scope carries the path and query values shared by every channel route.
type scope struct {
	tenant  string
	channel Channel
	appID   string
	resolve bool
}

func (h *Handler) scope(c *gin.Context) (scope, bool) {
	channel, err := ParseChannel(c.Param("channel"))
	if err != nil {
		common.HandleError(c, err)
		return scope{}, false
	}
	s := scope{
		tenant:  c.Param("tenant"),
		channel: channel,
		appID:   c.Query("app"),
	}
	if raw := c.Query("resolve"); raw != "" {
		s.resolve, err = strconv.ParseBool(raw)
		if err != nil {
			common.Error(c, http.StatusBadRequest, "invalid resolve query parameter: "+err.Error())
			return scope{}, false
		}
	}
	if err := validateAppID(s.appID); err != nil {
		common.HandleError(c, err)
		return scope{}, false
	}
	return s, true
}

func (s scope) typeRef(c *gin.Context) TypeRef {
	return TypeRef{Channel: s.channel, DisplayName: c.Param("type"), Tenant: s.tenant}
}

func (s scope) templateRef(c *gin.Context) TemplateRef {
	return TemplateRef{TypeRef: s.typeRef(c), Locale: c.Param("locale"), AppID: s.appID}
}

// AddType handles POST .../types
func (h *Handler) AddType(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	var req TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.service.AddTemplateType(c.Request.Context(), s.channel, req.DisplayName, s.tenant); err != nil {
		h.fail(c, "add template type failed", err)
		return
	}
	common.Success(c, http.StatusCreated, gin.H{"display_name": req.DisplayName})
}

// ListTypes handles GET .../types
func (h *Handler) ListTypes(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	names, err := h.service.ListTemplateTypes(c.Request.Context(), s.channel, s.tenant, s.resolve)
	if err != nil {
		h.fail(c, "list template types failed", err)
		return
	}
	common.Success(c, http.StatusOK, names)
}

// TypeExists handles HEAD .../types/:type
func (h *Handler) TypeExists(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	ref := s.typeRef(c)
	exists, err := h.service.TemplateTypeExists(c.Request.Context(), ref.Channel, ref.DisplayName, ref.Tenant, s.resolve)
	if err != nil {
		h.fail(c, "template type lookup failed", err)
		return
	}
	c.Status(existsStatus(exists))
}

// DeleteType handles DELETE .../types/:type
func (h *Handler) DeleteType(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	ref := s.typeRef(c)
	if err := h.service.DeleteTemplateType(c.Request.Context(), ref.Channel, ref.DisplayName, ref.Tenant); err != nil {
		h.fail(c, "delete template type failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOfType handles GET .../types/:type/templates
func (h *Handler) ListOfType(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	templates, err := h.service.ListTemplatesOfType(c.Request.Context(), s.typeRef(c), s.appID, s.resolve)
	if err != nil {
		h.fail(c, "list templates of type failed", err)
		return
	}
	common.Success(c, http.StatusOK, templates)
}

// DeleteOfType handles DELETE .../types/:type/templates
func (h *Handler) DeleteOfType(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAllOfType(c.Request.Context(), s.typeRef(c), s.appID); err != nil {
		h.fail(c, "delete templates of type failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PutTemplate handles PUT .../types/:type/templates/:locale
func (h *Handler) PutTemplate(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t := &Template{
		DisplayName: c.Param("type"),
		Channel:     s.channel,
		Locale:      c.Param("locale"),
		ContentType: req.ContentType,
		Subject:     req.Subject,
		Body:        req.Body,
		Footer:      req.Footer,
	}
	if err := h.service.AddOrUpdateTemplate(c.Request.Context(), t, s.appID, s.tenant); err != nil {
		h.fail(c, "store template failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTemplate handles GET .../types/:type/templates/:locale
func (h *Handler) GetTemplate(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	t, err := h.service.GetTemplate(c.Request.Context(), s.templateRef(c), s.resolve)
	if err != nil {
		h.fail(c, "get template failed", err)
		return
	}
	common.Success(c, http.StatusOK, t)
}

// TemplateExists handles HEAD .../types/:type/templates/:locale
func (h *Handler) TemplateExists(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	exists, err := h.service.TemplateExists(c.Request.Context(), s.templateRef(c), s.resolve)
	if err != nil {
		h.fail(c, "template lookup failed", err)
		return
	}
	c.Status(existsStatus(exists))
}

// DeleteTemplate handles DELETE .../types/:type/templates/:locale
func (h *Handler) DeleteTemplate(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteTemplate(c.Request.Context(), s.templateRef(c)); err != nil {
		h.fail(c, "delete template failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListAll handles GET .../templates
func (h *Handler) ListAll(c *gin.Context) {
	s, ok := h.scope(c)
	if !ok {
		return
	}
	templates, err := h.service.ListAllTemplates(c.Request.Context(), s.channel, s.appID, s.tenant, s.resolve)
	if err != nil {
		h.fail(c, "list templates failed", err)
		return
	}
	common.Success(c, http.StatusOK, templates)
}

// EnqueueMigration handles POST /tenants/:tenant/migrations
// Schedules a copy of the tenant's legacy templates and returns 202 Accepted.
func (h *Handler) EnqueueMigration(c *gin.Context) {
	var req MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	channel, err := ParseChannel(req.Channel)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	for _, app := range req.AppIDs {
		if err := validateAppID(app); err != nil {
			common.HandleError(c, err)
			return
		}
	}

	payload := MigrateLegacyPayload{Tenant: c.Param("tenant"), Channel: channel, AppIDs: req.AppIDs}
	taskID, err := h.enqueuer.EnqueueMigrateLegacy(payload)
	if err != nil {
		h.fail(c, "enqueue legacy migration failed", err)
		return
	}
	common.Success(c, http.StatusAccepted, gin.H{"task_id": taskID})
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	if common.StatusOf(err) >= http.StatusInternalServerError {
		slog.Error(msg,
			"error", err,
			"tenant", c.Param("tenant"),
			"channel", c.Param("channel"),
			"type", c.Param("type"),
			"locale", c.Param("locale"),
		)
	}
	if c.Request.Method == http.MethodHead {
		c.Status(common.StatusOf(err))
		return
	}
	common.HandleError(c, err)
}

func existsStatus(exists bool) int {
	if exists {
		return http.StatusOK
	}
	return http.StatusNotFound
}

// RegisterRoutes registers template routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ch := rg.Group("/tenants/:tenant/channels/:channel")
	ch.POST("/types", h.AddType)
	ch.GET("/types", h.ListTypes)
	ch.HEAD("/types/:type", h.TypeExists)
	ch.DELETE("/types/:type", h.DeleteType)
	ch.GET("/types/:type/templates", h.ListOfType)
	ch.DELETE("/types/:type/templates", h.DeleteOfType)
	ch.PUT("/types/:type/templates/:locale", h.PutTemplate)
	ch.GET("/types/:type/templates/:locale", h.GetTemplate)
	ch.HEAD("/types/:type/templates/:locale", h.TemplateExists)
	ch.DELETE("/types/:type/templates/:locale", h.DeleteTemplate)
	ch.GET("/templates", h.ListAll)

	if h.enqueuer != nil {
		rg.POST("/tenants/:tenant/migrations", h.EnqueueMigration)
	}
}
