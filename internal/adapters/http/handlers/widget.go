package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/dto"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
)

// WidgetHandler serves the widget page, its stylesheet and the JSON API.
// Every route acts on the session named by the session cookie; a missing
// or expired session is replaced by a new one.
type WidgetHandler struct {
	widgets     *app.WidgetService
	cookie      SessionCookie
	footer      views.Footer
	prefersDark bool
}

// WidgetHandlerConfig contains configuration for the widget handler.
type WidgetHandlerConfig struct {
	Widgets *app.WidgetService
	Cookie  SessionCookie
	Footer  views.Footer

	// PrefersDark seeds dark mode when the browser sends no color scheme hint.
	PrefersDark bool
}

// NewWidgetHandler creates a widget handler. Panics if Widgets is nil.
func NewWidgetHandler(cfg WidgetHandlerConfig) *WidgetHandler {
	if cfg.Widgets == nil {
		panic("WidgetHandler: Widgets is required")
	}

	return &WidgetHandler{
		widgets:     cfg.Widgets,
		cookie:      cfg.Cookie,
		footer:      cfg.Footer,
		prefersDark: cfg.PrefersDark,
	}
}

// RegisterRoutes registers the page routes on the given group:
//   - GET /            - the widget page
//   - POST /style      - apply the settings form
//   - POST /refresh    - fetch a new quote
//   - POST /theme/toggle, /panel/toggle
//   - GET /style.css   - the card stylesheet
func (h *WidgetHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.Page)
	rg.POST("/style", h.ApplyStyle)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/theme/toggle", h.ToggleTheme)
	rg.POST("/panel/toggle", h.TogglePanel)
	rg.GET("/style.css", h.Stylesheet)
}

// open resolves the request's session, creating one if needed, and renews
// the cookie.
func (h *WidgetHandler) open(c *gin.Context) (app.Snapshot, error) {
	dark, ok := middleware.PrefersDark(c)
	if !ok {
		dark = h.prefersDark
	}

	snap, err := h.widgets.Open(c.Request.Context(), h.cookie.Read(c), dark)
	if err != nil {
		return app.Snapshot{}, err
	}

	h.cookie.Write(c, snap.ID)
	c.Request = c.Request.WithContext(logging.WithSessionID(c.Request.Context(), snap.ID))

	return snap, nil
}

// Page handles GET /.
func (h *WidgetHandler) Page(c *gin.Context) {
	snap, err := h.open(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.render(c, http.StatusOK, views.NewPage(snap, h.footer))
}

// ApplyStyle handles POST /style. A rejected form re-renders the page with
// the error and leaves the style unchanged.
func (h *WidgetHandler) ApplyStyle(c *gin.Context) {
	snap, err := h.open(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req dto.StyleRequest
	if err := dto.BindFormAndValidate(c, &req); err != nil {
		h.rejectForm(c, snap, err)
		return
	}

	next, err := h.widgets.Apply(c.Request.Context(), snap.ID, changes(req.Options())...)
	if err != nil {
		if domain.IsValidation(err) {
			h.rejectForm(c, next, err)
			return
		}

		h.fail(c, err)

		return
	}

	h.backToPage(c)
}

// Refresh handles POST /refresh. A session opened by this request is
// already fetching and is not refreshed again.
func (h *WidgetHandler) Refresh(c *gin.Context) {
	snap, err := h.open(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if !snap.Opened {
		if _, err := h.widgets.Refresh(c.Request.Context(), snap.ID); err != nil {
			h.fail(c, err)
			return
		}
	}

	h.backToPage(c)
}

// ToggleTheme handles POST /theme/toggle.
func (h *WidgetHandler) ToggleTheme(c *gin.Context) {
	h.act(c, h.widgets.ToggleDarkMode)
}

// TogglePanel handles POST /panel/toggle.
func (h *WidgetHandler) TogglePanel(c *gin.Context) {
	h.act(c, h.widgets.TogglePanel)
}

// Stylesheet handles GET /style.css. Requests without a live session get
// the default style so a stale page still renders.
func (h *WidgetHandler) Stylesheet(c *gin.Context) {
	var style domain.Style

	snap, err := h.widgets.Get(c.Request.Context(), h.cookie.Read(c))
	switch {
	case err == nil:
		style = snap.Style
	case domain.IsNotFound(err):
		dark, ok := middleware.PrefersDark(c)
		if !ok {
			dark = h.prefersDark
		}
		style = h.widgets.DefaultStyle(dark)
	default:
		h.fail(c, err)
		return
	}

	etag := views.StyleETag(style)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	c.Writer.Header().Add("Vary", "Cookie")

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	var buf bytes.Buffer
	if err := views.RenderStylesheet(&buf, style); err != nil {
		h.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "text/css; charset=utf-8", buf.Bytes())
}

type widgetAction func(ctx context.Context, sessionID string) (app.Snapshot, error)

func (h *WidgetHandler) act(c *gin.Context, action widgetAction) {
	snap, err := h.open(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if _, err := action(c.Request.Context(), snap.ID); err != nil {
		h.fail(c, err)
		return
	}

	h.backToPage(c)
}

// backToPage redirects a form post to the page (post/redirect/get).
func (h *WidgetHandler) backToPage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WidgetHandler) rejectForm(c *gin.Context, snap app.Snapshot, err error) {
	page := views.NewPage(snap, h.footer)
	page.Error = formError(err)

	h.render(c, http.StatusBadRequest, page)
}

func (h *WidgetHandler) render(c *gin.Context, status int, page views.Page) {
	c.Header("Cache-Control", "no-store")
	c.HTML(status, views.PageTemplate, page)
}

// fail answers with a plain text error. Page routes have no JSON client to
// read an error envelope.
func (h *WidgetHandler) fail(c *gin.Context, err error) {
	status, resp := dto.MapDomainError(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("widget request failed", "error", err.Error())
	}

	c.String(status, resp.Error.Message)
}

// formError turns a binding or validation failure into one line for the page.
func formError(err error) string {
	if details := dto.ValidationErrors(err); len(details) > 0 {
		fields := make([]string, 0, len(details))
		for field := range details {
			fields = append(fields, field)
		}
		slices.Sort(fields)

		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, field+": "+details[field])
		}

		return strings.Join(parts, "; ")
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		if validation.Field == "" {
			return validation.Message
		}

		return validation.Field + ": " + validation.Message
	}

	return "invalid settings"
}

func changes(options []dto.OptionValue) []app.Change {
	out := make([]app.Change, 0, len(options))
	for _, o := range options {
		out = append(out, app.Change{Option: o.Option, Value: o.Value})
	}

	return out
}
