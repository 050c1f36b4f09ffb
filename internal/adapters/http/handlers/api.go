package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/dto"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// RegisterAPIRoutes registers the JSON API on the given group:
//   - GET /widget                - current widget state
//   - PATCH /widget/style        - change style options
//   - POST /widget/refresh       - fetch a new quote; ?wait=true blocks until it settles
//   - POST /widget/theme/toggle, /widget/panel/toggle
//   - GET /options               - option tables for building controls
func (h *WidgetHandler) RegisterAPIRoutes(rg *gin.RouterGroup) {
	rg.GET("/widget", h.GetWidget)
	rg.PATCH("/widget/style", h.PatchStyle)
	rg.POST("/widget/refresh", h.RefreshWidget)
	rg.POST("/widget/theme/toggle", h.ToggleThemeAPI)
	rg.POST("/widget/panel/toggle", h.TogglePanelAPI)
	rg.GET("/options", h.Options)
}

// GetWidget handles GET /api/v1/widget. The response carries an ETag of its
// body and answers 304 when the client already has it.
func (h *WidgetHandler) GetWidget(c *gin.Context) {
	snap, err := h.open(c)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	writeWidget(c, http.StatusOK, snap)
}

// PatchStyle handles PATCH /api/v1/widget/style. All options in the body
// are applied together or not at all.
func (h *WidgetHandler) PatchStyle(c *gin.Context) {
	snap, err := h.open(c)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	var req dto.StyleRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		if domain.IsValidation(err) {
			dto.HandleError(c, err)
			return
		}

		dto.HandleValidationErrors(c, err)

		return
	}

	snap, err = h.widgets.Apply(c.Request.Context(), snap.ID, changes(req.Options())...)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	writeWidget(c, http.StatusOK, snap)
}

// RefreshWidget handles POST /api/v1/widget/refresh. Without ?wait it
// answers 202 while the fetch runs. With ?wait=true it answers once the
// fetch settles, or with the loading state when the request deadline hits.
func (h *WidgetHandler) RefreshWidget(c *gin.Context) {
	var query dto.RefreshQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleValidationErrors(c, err)
		return
	}

	snap, err := h.open(c)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()

	if !snap.Opened {
		snap, err = h.widgets.Refresh(ctx, snap.ID)
		if err != nil {
			dto.HandleError(c, err)
			return
		}
	}

	if query.Wait {
		snap, err = h.widgets.Wait(ctx, snap.ID)
		if err != nil && ctx.Err() == nil {
			dto.HandleError(c, err)
			return
		}
	}

	status := http.StatusOK
	if snap.Loading() {
		status = http.StatusAccepted
	}

	writeWidget(c, status, snap)
}

// ToggleThemeAPI handles POST /api/v1/widget/theme/toggle.
func (h *WidgetHandler) ToggleThemeAPI(c *gin.Context) {
	h.actJSON(c, h.widgets.ToggleDarkMode)
}

// TogglePanelAPI handles POST /api/v1/widget/panel/toggle.
func (h *WidgetHandler) TogglePanelAPI(c *gin.Context) {
	h.actJSON(c, h.widgets.TogglePanel)
}

// Options handles GET /api/v1/options.
func (h *WidgetHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewOptionsResponse())
}

func (h *WidgetHandler) actJSON(c *gin.Context, action widgetAction) {
	snap, err := h.open(c)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	snap, err = action(c.Request.Context(), snap.ID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	writeWidget(c, http.StatusOK, snap)
}

// writeWidget writes the snapshot as JSON with an ETag of the body.
func writeWidget(c *gin.Context, status int, snap app.Snapshot) {
	body, err := json.Marshal(dto.NewWidgetResponse(snap))
	if err != nil {
		dto.HandleError(c, fmt.Errorf("encode widget: %w", err))
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 10) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")

	if status == http.StatusOK && c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(status, "application/json; charset=utf-8", body)
}
