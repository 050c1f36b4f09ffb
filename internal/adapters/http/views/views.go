// Package views renders the widget page and its per-session stylesheet from
// embedded templates.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/mitchellh/hashstructure"

	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// Template names.
const (
	PageTemplate  = "page.html.tmpl"
	StyleTemplate = "style.css.tmpl"
)

// LoadingRefreshSeconds is how often a loading page reloads itself.
const LoadingRefreshSeconds = 1

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates parses the HTML templates, for gin's SetHTMLTemplate.
func Templates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}

	return tmpl, nil
}

// Footer is the page footer text, rendered verbatim.
type Footer struct {
	Project string
	Version string
	Author  string
}

// Choice is one <option> of a select control.
type Choice struct {
	Value    string
	Label    string
	Selected bool
}

// Page is the data behind the widget page.
type Page struct {
	Loading        bool
	RefreshSeconds int
	Quote          *domain.Quote
	FailureMessage string

	// Error is a rejected settings change, shown above the panel.
	Error string

	Style domain.Style

	// StyleVersion busts the stylesheet cache when the style changes.
	StyleVersion string

	Fonts      []Choice
	Sizes      []Choice
	Gradients  []Choice
	Categories []Choice

	MinBorderRadius int
	MaxBorderRadius int

	Footer Footer
}

// NewPage builds page data from a widget snapshot.
func NewPage(snap app.Snapshot, footer Footer) Page {
	st := snap.Style

	p := Page{
		Loading:         snap.Loading(),
		Quote:           snap.Quote,
		FailureMessage:  snap.FailureMessage(),
		Style:           st,
		StyleVersion:    strings.Trim(StyleETag(st), `"`),
		MinBorderRadius: domain.MinBorderRadius,
		MaxBorderRadius: domain.MaxBorderRadius,
		Footer:          footer,
	}

	if p.Loading {
		p.RefreshSeconds = LoadingRefreshSeconds
	}

	for _, f := range domain.FontFamilies() {
		p.Fonts = append(p.Fonts, Choice{f.Key, f.Label, f.Key == st.Font.Key})
	}
	for _, s := range domain.FontSizes() {
		p.Sizes = append(p.Sizes, Choice{s.Key, s.Label, s.Key == st.Size.Key})
	}
	for _, g := range domain.Gradients() {
		p.Gradients = append(p.Gradients, Choice{g.Key, g.Label, g.Key == st.Gradient.Key})
	}
	for _, c := range domain.Categories() {
		p.Categories = append(p.Categories, Choice{string(c.Category), c.Label, c.Category == st.Category})
	}

	return p
}

// Stylesheet is the data behind style.css.
type Stylesheet struct {
	FontFamily   string
	FontSize     string
	Gradient     string
	TextColor    string
	BorderColor  string
	BorderRadius int

	// Shadow layers use the shadow color at 50% and 25% alpha.
	ShadowStrong string
	ShadowSoft   string
}

var styleTemplate = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/"+StyleTemplate))

// NewStylesheet resolves a style into CSS values. Every value comes from an
// option table or a validated color, so nothing here needs escaping.
func NewStylesheet(st domain.Style) Stylesheet {
	return Stylesheet{
		FontFamily:   st.Font.CSS,
		FontSize:     st.Size.CSS,
		Gradient:     st.Gradient.CSS,
		TextColor:    string(st.TextColor),
		BorderColor:  string(st.BorderColor),
		BorderRadius: st.BorderRadius,
		ShadowStrong: st.ShadowColor.WithAlpha("80"),
		ShadowSoft:   st.ShadowColor.WithAlpha("40"),
	}
}

// RenderStylesheet writes the card CSS for st.
func RenderStylesheet(w io.Writer, st domain.Style) error {
	return styleTemplate.ExecuteTemplate(w, StyleTemplate, NewStylesheet(st))
}

// StyleETag fingerprints the rendered parts of a style. Dark mode and panel
// state are page concerns and do not change the stylesheet.
func StyleETag(st domain.Style) string {
	hash, err := hashstructure.Hash(NewStylesheet(st), nil)
	if err != nil {
		// Stylesheet holds only strings and ints.
		panic("views: hashing stylesheet: " + err.Error())
	}

	return `"` + strconv.FormatUint(hash, 10) + `"`
}
