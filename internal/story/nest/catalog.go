package nest

import (
	"context"

	"cuentacuentos/internal/domain/library"
	"cuentacuentos/internal/domain/library/generator"

	"github.com/sirupsen/logrus"
)

// LoadCatalog merges the libraries of every source in order. A source that
// fails is skipped so a missing file or an offline catalog never hides the
// others.
func LoadCatalog(ctx context.Context, sources ...generator.StoryGenerator) *library.Catalog {
	libraries := make([]library.StoryLibrary, 0, len(sources))

	for _, src := range sources {
		lib, err := src.Load(ctx)
		if err != nil {
			logrus.WithError(err).WithField("source", src.Name()).Warn("Could not load stories")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"source":  src.Name(),
			"library": lib.Name,
			"stories": len(lib.Stories),
		}).Debug("Loaded story library")
		libraries = append(libraries, *lib)
	}

	return library.NewCatalog(libraries...)
}
