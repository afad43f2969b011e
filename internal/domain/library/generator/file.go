package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cuentacuentos/internal/domain/library"

	"gopkg.in/yaml.v3"
)

// FileSource reads a story library from a YAML (or JSON) file.
type FileSource struct {
	path string
}

var _ StoryGenerator = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string {
	return "file:" + f.path
}

func (f *FileSource) Load(_ context.Context) (*library.StoryLibrary, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var lib library.StoryLibrary
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", f.path, err)
	}

	if lib.Name == "" {
		lib.Name = filepath.Base(f.path)
	}
	for i, s := range lib.Stories {
		if s.ID == "" {
			lib.Stories[i].ID = fmt.Sprintf("%s-%d", lib.Name, i+1)
		}
	}

	return &lib, nil
}
