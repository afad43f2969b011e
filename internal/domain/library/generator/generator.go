package generator

import (
	"context"

	"cuentacuentos/internal/domain/library"
)

// StoryGenerator produces a story library from some backing source: the
// built-in collection, a local catalog file or a remote catalog.
type StoryGenerator interface {
	Name() string
	Load(ctx context.Context) (*library.StoryLibrary, error)
}
