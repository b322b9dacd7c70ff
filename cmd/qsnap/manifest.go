package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/delaneyj/resumeparty/lazy/jsloader"
)

// manifest maps the chunk names used in lazy references to JavaScript files.
// Relative paths resolve against the manifest's directory.
//
//	chunks:
//	  ./counter.js: dist/counter.js
type manifest struct {
	Chunks map[string]string `yaml:"chunks"`

	dir string
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &manifest{dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if len(m.Chunks) == 0 {
		return nil, fmt.Errorf("manifest %s: no chunks", path)
	}
	return m, nil
}

func (m *manifest) Loader() (*jsloader.Loader, error) {
	l := jsloader.New()
	for chunk, file := range m.Chunks {
		if !filepath.IsAbs(file) {
			file = filepath.Join(m.dir, file)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk, err)
		}
		if err := l.AddChunk(chunk, string(src)); err != nil {
			return nil, err
		}
	}
	return l, nil
}
