package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Option names one user-adjustable setting of the widget.
type Option string

// Option keys. Each is bound to exactly one control.
const (
	OptionFontFamily   Option = "font_family"
	OptionFontSize     Option = "font_size"
	OptionGradient     Option = "gradient"
	OptionTextColor    Option = "text_color"
	OptionBorderColor  Option = "border_color"
	OptionShadowColor  Option = "shadow_color"
	OptionBorderRadius Option = "border_radius"
	OptionDarkMode     Option = "dark_mode"
	OptionPanelOpen    Option = "panel_open"
	OptionCategory     Option = "category"
)

// Options lists every option key in display order.
func Options() []Option {
	return []Option{
		OptionFontFamily,
		OptionFontSize,
		OptionGradient,
		OptionTextColor,
		OptionBorderColor,
		OptionShadowColor,
		OptionBorderRadius,
		OptionDarkMode,
		OptionPanelOpen,
		OptionCategory,
	}
}

// Border radius bounds in pixels.
const (
	MinBorderRadius = 0
	MaxBorderRadius = 32
)

// Variant is a symbolic option value together with its resolved CSS.
// Carrying both in one value keeps them from drifting apart.
type Variant struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	CSS   string `json:"css"`
}

// FontFamily is a font option.
type FontFamily struct{ Variant }

// FontSize is a text size option.
type FontSize struct{ Variant }

// Gradient is a text gradient option. The "none" gradient has empty CSS.
type Gradient struct{ Variant }

var fontFamilies = []FontFamily{
	{Variant{"font-sans", "无衬线", `ui-sans-serif, system-ui, sans-serif, "Apple Color Emoji", "Segoe UI Emoji"`}},
	{Variant{"font-serif", "衬线", `ui-serif, Georgia, Cambria, "Times New Roman", Times, serif`}},
	{Variant{"font-mono", "等宽", `ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", monospace`}},
}

var fontSizes = []FontSize{
	{Variant{"text-base", "默认", "1rem"}},
	{Variant{"text-lg", "大", "1.125rem"}},
	{Variant{"text-xl", "特大", "1.25rem"}},
	{Variant{"text-2xl", "超大", "1.5rem"}},
	{Variant{"text-3xl", "极大", "1.875rem"}},
}

var gradients = []Gradient{
	{Variant{"none", "无", ""}},
	{Variant{"purple-blue", "紫蓝", "linear-gradient(to right, #a855f7, #3b82f6)"}},
	{Variant{"pink-orange", "粉橙", "linear-gradient(to right, #ec4899, #f97316)"}},
	{Variant{"green-teal", "青绿", "linear-gradient(to right, #22c55e, #14b8a6)"}},
	{Variant{"red-yellow", "红黄", "linear-gradient(to right, #ef4444, #eab308)"}},
}

// FontFamilies returns the font option table.
func FontFamilies() []FontFamily { return append([]FontFamily(nil), fontFamilies...) }

// FontSizes returns the font size option table.
func FontSizes() []FontSize { return append([]FontSize(nil), fontSizes...) }

// Gradients returns the gradient option table.
func Gradients() []Gradient { return append([]Gradient(nil), gradients...) }

// VariantKeys returns the keys an enumerated option accepts, in table
// order. Options that are not enumerated yield nil.
func VariantKeys(o Option) []string {
	var keys []string

	switch o {
	case OptionFontFamily:
		for _, f := range fontFamilies {
			keys = append(keys, f.Key)
		}
	case OptionFontSize:
		for _, sz := range fontSizes {
			keys = append(keys, sz.Key)
		}
	case OptionGradient:
		for _, g := range gradients {
			keys = append(keys, g.Key)
		}
	}

	return keys
}

// ParseFontFamily resolves a font key against the option table.
func ParseFontFamily(key string) (FontFamily, error) {
	for _, f := range fontFamilies {
		if f.Key == key {
			return f, nil
		}
	}

	return FontFamily{}, NewValidationErrorWithValue(string(OptionFontFamily), "unknown font family", key)
}

// ParseFontSize resolves a font size key against the option table.
func ParseFontSize(key string) (FontSize, error) {
	for _, s := range fontSizes {
		if s.Key == key {
			return s, nil
		}
	}

	return FontSize{}, NewValidationErrorWithValue(string(OptionFontSize), "unknown font size", key)
}

// ParseGradient resolves a gradient key against the option table.
func ParseGradient(key string) (Gradient, error) {
	for _, g := range gradients {
		if g.Key == key {
			return g, nil
		}
	}

	return Gradient{}, NewValidationErrorWithValue(string(OptionGradient), "unknown gradient", key)
}

// None reports whether the gradient paints plain text.
func (g Gradient) None() bool {
	return g.CSS == ""
}

// Color is a normalized #rrggbb color.
type Color string

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ParseColor accepts #rgb or #rrggbb and normalizes to lowercase #rrggbb.
func ParseColor(option Option, s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !hexColorPattern.MatchString(s) {
		return "", NewValidationErrorWithValue(string(option), "must be a #rgb or #rrggbb color", s)
	}

	s = strings.ToLower(s)
	if len(s) == 4 {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}

	return Color(s), nil
}

// WithAlpha appends a two-digit hex alpha, e.g. "80".
func (c Color) WithAlpha(alpha string) string {
	return string(c) + alpha
}

// Settings is the raw, symbolic form of a Style: what a form posts and what
// config files carry.
type Settings struct {
	FontFamily   string `json:"font_family"   koanf:"font_family"`
	FontSize     string `json:"font_size"     koanf:"font_size"`
	Gradient     string `json:"gradient"      koanf:"gradient"`
	TextColor    string `json:"text_color"    koanf:"text_color"`
	BorderColor  string `json:"border_color"  koanf:"border_color"`
	ShadowColor  string `json:"shadow_color"  koanf:"shadow_color"`
	BorderRadius int    `json:"border_radius" koanf:"border_radius"`
	DarkMode     bool   `json:"dark_mode"     koanf:"dark_mode"`
	PanelOpen    bool   `json:"panel_open"    koanf:"panel_open"`
	Category     string `json:"category"      koanf:"category"`
}

// DefaultSettings mirrors the widget's initial look.
func DefaultSettings() Settings {
	return Settings{
		FontFamily:   "font-sans",
		FontSize:     "text-xl",
		Gradient:     "purple-blue",
		TextColor:    "#1a202c",
		BorderColor:  "#e2e8f0",
		ShadowColor:  "#cbd5e0",
		BorderRadius: 12,
		PanelOpen:    true,
	}
}

// Style is the validated widget configuration. Construct it with NewStyle;
// every field is guaranteed to hold a member of its option table.
type Style struct {
	Font         FontFamily
	Size         FontSize
	Gradient     Gradient
	TextColor    Color
	BorderColor  Color
	ShadowColor  Color
	BorderRadius int
	DarkMode     bool
	PanelOpen    bool
	Category     Category
}

// NewStyle validates settings and resolves every symbolic value.
func NewStyle(s Settings) (Style, error) {
	var (
		st  Style
		err error
	)

	if st.Font, err = ParseFontFamily(s.FontFamily); err != nil {
		return Style{}, err
	}
	if st.Size, err = ParseFontSize(s.FontSize); err != nil {
		return Style{}, err
	}
	if st.Gradient, err = ParseGradient(s.Gradient); err != nil {
		return Style{}, err
	}
	if st.TextColor, err = ParseColor(OptionTextColor, s.TextColor); err != nil {
		return Style{}, err
	}
	if st.BorderColor, err = ParseColor(OptionBorderColor, s.BorderColor); err != nil {
		return Style{}, err
	}
	if st.ShadowColor, err = ParseColor(OptionShadowColor, s.ShadowColor); err != nil {
		return Style{}, err
	}
	if st.BorderRadius, err = checkRadius(s.BorderRadius); err != nil {
		return Style{}, err
	}
	if st.Category, err = ParseCategory(s.Category); err != nil {
		return Style{}, err
	}

	st.DarkMode = s.DarkMode
	st.PanelOpen = s.PanelOpen

	return st, nil
}

// DefaultStyle returns the style built from DefaultSettings.
func DefaultStyle() Style {
	st, err := NewStyle(DefaultSettings())
	if err != nil {
		panic("domain: default settings are invalid: " + err.Error())
	}

	return st
}

// Settings returns the symbolic form of the style.
func (s Style) Settings() Settings {
	return Settings{
		FontFamily:   s.Font.Key,
		FontSize:     s.Size.Key,
		Gradient:     s.Gradient.Key,
		TextColor:    string(s.TextColor),
		BorderColor:  string(s.BorderColor),
		ShadowColor:  string(s.ShadowColor),
		BorderRadius: s.BorderRadius,
		DarkMode:     s.DarkMode,
		PanelOpen:    s.PanelOpen,
		Category:     string(s.Category),
	}
}

// Set returns a copy of s with one option changed. On error s is returned
// unchanged alongside the error.
func (s Style) Set(option Option, value string) (Style, error) {
	next := s

	var err error

	switch option {
	case OptionFontFamily:
		next.Font, err = ParseFontFamily(value)
	case OptionFontSize:
		next.Size, err = ParseFontSize(value)
	case OptionGradient:
		next.Gradient, err = ParseGradient(value)
	case OptionTextColor:
		next.TextColor, err = ParseColor(option, value)
	case OptionBorderColor:
		next.BorderColor, err = ParseColor(option, value)
	case OptionShadowColor:
		next.ShadowColor, err = ParseColor(option, value)
	case OptionBorderRadius:
		next.BorderRadius, err = parseRadius(value)
	case OptionDarkMode:
		next.DarkMode, err = parseFlag(option, value)
	case OptionPanelOpen:
		next.PanelOpen, err = parseFlag(option, value)
	case OptionCategory:
		next.Category, err = ParseCategory(value)
	default:
		err = NewValidationErrorWithValue("option", "unknown option", string(option))
	}

	if err != nil {
		return s, err
	}

	return next, nil
}

// ParseOption validates an option key.
func ParseOption(key string) (Option, error) {
	for _, o := range Options() {
		if string(o) == key {
			return o, nil
		}
	}

	return "", NewValidationErrorWithValue("option", "unknown option", key)
}

func parseRadius(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, NewValidationErrorWithValue(string(OptionBorderRadius), "must be an integer", value)
	}

	return checkRadius(n)
}

func checkRadius(n int) (int, error) {
	if n < MinBorderRadius || n > MaxBorderRadius {
		return 0, NewValidationErrorWithValue(string(OptionBorderRadius),
			"must be between "+strconv.Itoa(MinBorderRadius)+" and "+strconv.Itoa(MaxBorderRadius), n)
	}

	return n, nil
}

func parseFlag(option Option, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0", "":
		return false, nil
	default:
		return false, NewValidationErrorWithValue(string(option), "must be a boolean", value)
	}
}
