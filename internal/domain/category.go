package domain

// Category is the single-letter classifier the quote service filters on.
// The zero value selects all categories.
type Category string

// Known categories.
const (
	CategoryAll        Category = ""
	CategoryAnime      Category = "a"
	CategoryComic      Category = "b"
	CategoryGame       Category = "c"
	CategoryLiterature Category = "d"
	CategoryOriginal   Category = "e"
	CategoryInternet   Category = "f"
	CategoryOther      Category = "g"
	CategoryFilm       Category = "h"
	CategoryPoetry     Category = "i"
	CategoryNetEase    Category = "j"
	CategoryPhilosophy Category = "k"
	CategoryWitty      Category = "l"
)

// CategoryOption pairs a category with its display label.
type CategoryOption struct {
	Category Category `json:"code"`
	Label    string   `json:"label"`
}

var categoryTable = []CategoryOption{
	{CategoryAll, "全部"},
	{CategoryAnime, "动画"},
	{CategoryComic, "漫画"},
	{CategoryGame, "游戏"},
	{CategoryLiterature, "文学"},
	{CategoryOriginal, "原创"},
	{CategoryInternet, "网络"},
	{CategoryOther, "其他"},
	{CategoryFilm, "影视"},
	{CategoryPoetry, "诗词"},
	{CategoryNetEase, "网易云"},
	{CategoryPhilosophy, "哲学"},
	{CategoryWitty, "抖机灵"},
}

// Categories returns the option table, all-categories first.
func Categories() []CategoryOption {
	out := make([]CategoryOption, len(categoryTable))
	copy(out, categoryTable)

	return out
}

// ParseCategory validates a category code.
func ParseCategory(code string) (Category, error) {
	for _, opt := range categoryTable {
		if string(opt.Category) == code {
			return opt.Category, nil
		}
	}

	return CategoryAll, NewValidationErrorWithValue(string(OptionCategory), "unknown category code", code)
}

// IsAll reports whether c selects every category.
func (c Category) IsAll() bool {
	return c == CategoryAll
}

// Label returns the display label, or the raw code when unknown.
func (c Category) Label() string {
	for _, opt := range categoryTable {
		if opt.Category == c {
			return opt.Label
		}
	}

	return string(c)
}
