package dto

import (
	"strconv"
	"time"

	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// StyleRequest carries style changes from the settings form or the JSON
// API. Only fields that are present are applied.
type StyleRequest struct {
	FontFamily   *string `json:"font_family"   form:"font_family"   validate:"omitempty,font_family"`
	FontSize     *string `json:"font_size"     form:"font_size"     validate:"omitempty,font_size"`
	Gradient     *string `json:"gradient"      form:"gradient"      validate:"omitempty,gradient"`
	TextColor    *string `json:"text_color"    form:"text_color"    validate:"omitempty,hexcolor"`
	BorderColor  *string `json:"border_color"  form:"border_color"  validate:"omitempty,hexcolor"`
	ShadowColor  *string `json:"shadow_color"  form:"shadow_color"  validate:"omitempty,hexcolor"`
	BorderRadius *int    `json:"border_radius" form:"border_radius" validate:"omitempty,min=0,max=32"`
	DarkMode     *bool   `json:"dark_mode"     form:"dark_mode"`
	PanelOpen    *bool   `json:"panel_open"    form:"panel_open"`
	Category     *string `json:"category"      form:"category"      validate:"omitempty,category"`
}

// Validate rejects a request that changes nothing.
func (r *StyleRequest) Validate() error {
	if len(r.Options()) == 0 {
		return domain.NewValidationError("", "at least one option is required")
	}

	return nil
}

// Options returns the present fields as option/value pairs in display order.
func (r *StyleRequest) Options() []OptionValue {
	var out []OptionValue

	add := func(o domain.Option, v *string) {
		if v != nil {
			out = append(out, OptionValue{Option: o, Value: *v})
		}
	}
	flag := func(o domain.Option, v *bool) {
		if v != nil {
			out = append(out, OptionValue{Option: o, Value: strconv.FormatBool(*v)})
		}
	}

	add(domain.OptionFontFamily, r.FontFamily)
	add(domain.OptionFontSize, r.FontSize)
	add(domain.OptionGradient, r.Gradient)
	add(domain.OptionTextColor, r.TextColor)
	add(domain.OptionBorderColor, r.BorderColor)
	add(domain.OptionShadowColor, r.ShadowColor)
	if r.BorderRadius != nil {
		out = append(out, OptionValue{Option: domain.OptionBorderRadius, Value: strconv.Itoa(*r.BorderRadius)})
	}
	flag(domain.OptionDarkMode, r.DarkMode)
	flag(domain.OptionPanelOpen, r.PanelOpen)
	add(domain.OptionCategory, r.Category)

	return out
}

// OptionValue is one requested option change.
type OptionValue struct {
	Option domain.Option
	Value  string
}

// RefreshQuery holds the refresh endpoint's query parameters.
type RefreshQuery struct {
	// Wait blocks the response until the new quote has settled.
	Wait bool `form:"wait"`
}

// QuoteResponse is a quote as returned by the API.
type QuoteResponse struct {
	ID          int       `json:"id"`
	UUID        string    `json:"uuid"`
	Text        string    `json:"hitokoto"`
	Category    string    `json:"type"`
	From        string    `json:"from"`
	FromWho     *string   `json:"from_who"`
	Attribution string    `json:"attribution"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	Length      int       `json:"length"`
}

// StyleResponse is the resolved style. Symbolic options carry their CSS.
type StyleResponse struct {
	FontFamily   domain.Variant `json:"font_family"`
	FontSize     domain.Variant `json:"font_size"`
	Gradient     domain.Variant `json:"gradient"`
	TextColor    string         `json:"text_color"`
	BorderColor  string         `json:"border_color"`
	ShadowColor  string         `json:"shadow_color"`
	BorderRadius int            `json:"border_radius"`
	DarkMode     bool           `json:"dark_mode"`
	PanelOpen    bool           `json:"panel_open"`
	Category     string         `json:"category"`
}

// WidgetResponse is the JSON view of one widget session.
type WidgetResponse struct {
	Session   string         `json:"session"`
	Status    string         `json:"status"`
	Loading   bool           `json:"loading"`
	Quote     *QuoteResponse `json:"quote"`
	Message   string         `json:"message,omitempty"`
	Style     StyleResponse  `json:"style"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewWidgetResponse converts a widget snapshot. The quote is nil while
// loading and after a failure; a failure also sets Message.
func NewWidgetResponse(snap app.Snapshot) WidgetResponse {
	return WidgetResponse{
		Session:   snap.ID,
		Status:    string(snap.Status),
		Loading:   snap.Loading(),
		Quote:     NewQuoteResponse(snap.Quote),
		Message:   snap.FailureMessage(),
		Style:     NewStyleResponse(snap.Style),
		UpdatedAt: snap.UpdatedAt,
	}
}

// NewQuoteResponse converts a domain quote. A nil quote yields nil.
func NewQuoteResponse(q *domain.Quote) *QuoteResponse {
	if q == nil {
		return nil
	}

	resp := &QuoteResponse{
		ID:          q.ID,
		UUID:        q.UUID,
		Text:        q.Text,
		Category:    string(q.Category),
		From:        q.From,
		Attribution: q.Attribution(),
		Creator:     q.Creator,
		CreatedAt:   q.CreatedAt,
		Length:      q.Length,
	}
	if q.FromWho != "" {
		who := q.FromWho
		resp.FromWho = &who
	}

	return resp
}

// NewStyleResponse converts a domain style.
func NewStyleResponse(s domain.Style) StyleResponse {
	return StyleResponse{
		FontFamily:   s.Font.Variant,
		FontSize:     s.Size.Variant,
		Gradient:     s.Gradient.Variant,
		TextColor:    string(s.TextColor),
		BorderColor:  string(s.BorderColor),
		ShadowColor:  string(s.ShadowColor),
		BorderRadius: s.BorderRadius,
		DarkMode:     s.DarkMode,
		PanelOpen:    s.PanelOpen,
		Category:     string(s.Category),
	}
}

// OptionsResponse lists every option table, for building controls.
type OptionsResponse struct {
	FontFamilies    []domain.Variant        `json:"font_families"`
	FontSizes       []domain.Variant        `json:"font_sizes"`
	Gradients       []domain.Variant        `json:"gradients"`
	Categories      []domain.CategoryOption `json:"categories"`
	MinBorderRadius int                     `json:"min_border_radius"`
	MaxBorderRadius int                     `json:"max_border_radius"`
}

// NewOptionsResponse builds the option tables.
func NewOptionsResponse() OptionsResponse {
	resp := OptionsResponse{
		Categories:      domain.Categories(),
		MinBorderRadius: domain.MinBorderRadius,
		MaxBorderRadius: domain.MaxBorderRadius,
	}

	for _, f := range domain.FontFamilies() {
		resp.FontFamilies = append(resp.FontFamilies, f.Variant)
	}
	for _, s := range domain.FontSizes() {
		resp.FontSizes = append(resp.FontSizes, s.Variant)
	}
	for _, g := range domain.Gradients() {
		resp.Gradients = append(resp.Gradients, g.Variant)
	}

	return resp
}
