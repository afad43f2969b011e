package library

import (
	"errors"
	"fmt"
	"strings"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/textnorm"
)

// ErrLookupMiss is returned when a title search matches nothing. It is an
// expected outcome of a spoken request, not a failure.
var ErrLookupMiss = errors.New("story not found")

// StoryLibrary is a named, ordered collection of stories.
type StoryLibrary struct {
	Name    string        `json:"name" yaml:"name"`
	URL     string        `json:"url,omitempty" yaml:"url,omitempty"`
	Stories []story.Story `json:"stories" yaml:"stories"`
}

// Catalog is the ordered set of stories available for narration. The order
// is the listing order used for next/previous navigation.
type Catalog struct {
	stories []story.Story
}

// NewCatalog merges libraries in order. Stories with an ID already seen are
// skipped.
func NewCatalog(libraries ...StoryLibrary) *Catalog {
	c := &Catalog{}
	seen := make(map[string]bool)
	for _, lib := range libraries {
		for _, s := range lib.Stories {
			if s.ID != "" {
				if seen[s.ID] {
					continue
				}
				seen[s.ID] = true
			}
			c.stories = append(c.stories, s)
		}
	}
	return c
}

// All returns a copy of every story in catalog order.
func (c *Catalog) All() []story.Story {
	out := make([]story.Story, len(c.stories))
	copy(out, c.stories)
	return out
}

func (c *Catalog) Len() int {
	return len(c.stories)
}

// ByCategory returns the stories whose category equals cat, in order.
func (c *Catalog) ByCategory(cat story.Category) []story.Story {
	var out []story.Story
	for _, s := range c.stories {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

// Filter returns the visible list for an optional category selection. A nil
// selection means every story.
func (c *Catalog) Filter(cat *story.Category) []story.Story {
	if cat == nil {
		return c.All()
	}
	return c.ByCategory(*cat)
}

// FindByTitle returns the first story in scope whose title contains fragment,
// ignoring case and accents. A nil scope searches the whole catalog. An empty
// fragment matches the first story in scope.
func (c *Catalog) FindByTitle(fragment string, scope *story.Category) (story.Story, error) {
	fragment = strings.TrimSpace(fragment)
	for _, s := range c.Filter(scope) {
		if textnorm.Contains(s.Title, fragment) {
			return s, nil
		}
	}
	return story.Story{}, fmt.Errorf("%q: %w", fragment, ErrLookupMiss)
}

// FindByID looks a story up by its identifier.
func (c *Catalog) FindByID(id string) (story.Story, error) {
	for _, s := range c.stories {
		if s.ID == id {
			return s, nil
		}
	}
	return story.Story{}, fmt.Errorf("id %q: %w", id, ErrLookupMiss)
}

// Neighbour returns the story offset positions away from the one titled
// current within the visible list. ok is false when current is not listed or
// the neighbour would fall outside the list.
func (c *Catalog) Neighbour(current string, offset int, scope *story.Category) (story.Story, bool) {
	list := c.Filter(scope)
	for i, s := range list {
		if s.Title != current {
			continue
		}
		j := i + offset
		if j < 0 || j >= len(list) {
			return story.Story{}, false
		}
		return list[j], true
	}
	return story.Story{}, false
}
