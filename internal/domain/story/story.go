package story

import (
	"fmt"
	"strings"
)

// Category groups stories into the sections a listener can switch between.
type Category int

const (
	Sleep Category = iota
	Fun
	Educational
	Adventure

	numCategories
)

// categoryInfo is indexed by Category. The array length is tied to
// numCategories, so adding a category without a row fails to compile.
var categoryInfo = [numCategories]struct {
	id    string // stable identifier used in catalogs and config
	label string // spoken section name
	title string // heading shown in listings
}{
	Sleep:       {id: "sleep", label: "dormir", title: "Para Dormir"},
	Fun:         {id: "fun", label: "diversión", title: "Diversión"},
	Educational: {id: "educational", label: "educativo", title: "Educativos"},
	Adventure:   {id: "adventure", label: "aventuras", title: "Aventuras"},
}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// String returns the catalog identifier ("sleep", "fun", ...).
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryInfo[c].id
}

// Label is the Spanish section name used in spoken feedback.
func (c Category) Label() string {
	if !c.Valid() {
		return ""
	}
	return categoryInfo[c].label
}

// Title is the heading used when rendering a section.
func (c Category) Title() string {
	if !c.Valid() {
		return ""
	}
	return categoryInfo[c].title
}

// ParseCategory accepts either the identifier or the Spanish label.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c := Category(0); c < numCategories; c++ {
		if s == categoryInfo[c].id || s == categoryInfo[c].label {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown story category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid story category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Story is a narratable text. Stories are owned by the catalog and treated as
// immutable values everywhere else.
type Story struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Author   string   `json:"author,omitempty" yaml:"author,omitempty"`
	Content  string   `json:"content" yaml:"content"`
	Category Category `json:"category" yaml:"category"`
}

// WordCount reports the number of whitespace-separated words in the content.
func (s Story) WordCount() int {
	return len(strings.Fields(s.Content))
}
