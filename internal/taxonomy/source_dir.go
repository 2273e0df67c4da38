package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extensions a DirSource reads, in lookup order. JSON is a YAML subset so
// both go through the YAML decoder, which also accepts numeric unit numbers.
var dirExtensions = []string{".json", ".yaml", ".yml"}

// DirSource reads taxonomies from "<EXAM>_<Subject>.json" (or .yaml/.yml)
// files in a single directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource rooted at dir. The directory is not
// required to exist.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir returns the directory the source reads from.
func (s *DirSource) Dir() string {
	return s.dir
}

func (s *DirSource) Read(_ context.Context, key Key) (Taxonomy, error) {
	for _, ext := range dirExtensions {
		path := filepath.Join(s.dir, key.String()+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var t Taxonomy
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return t, nil
	}
	return nil, ErrNotFound
}

func (s *DirSource) List(_ context.Context) ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	seen := make(map[Key]bool)
	var keys []Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !hasDirExtension(ext) {
			continue
		}
		key, ok := ParseKey(strings.TrimSuffix(e.Name(), ext))
		if !ok {
			slog.Debug("skipping reference file without exam prefix", "file", e.Name())
			continue
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Write stores t as "<dir>/<key>.json", creating the directory if needed.
func (s *DirSource) Write(_ context.Context, key Key, t Taxonomy) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	if t == nil {
		t = Taxonomy{}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	path := filepath.Join(s.dir, key.String()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func hasDirExtension(ext string) bool {
	for _, e := range dirExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
