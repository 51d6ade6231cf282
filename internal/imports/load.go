package imports

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPattern selects module files in LoadDir.
const DefaultPattern = "**/*.js"

var ErrUnsupportedFormat = errors.New("unsupported file format")

// LoadImportMap reads an ordered import map. YAML files may hold a mapping
// (name: module) or a list of {name, module}; TOML files hold [[import]]
// tables; JSON files hold a list.
func LoadImportMap(path string) (ImportMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m ImportMap
	switch format(path) {
	case "yaml":
		m, err = parseYAMLImportMap(data)
	case "toml":
		var doc struct {
			Import ImportMap `toml:"import"`
		}
		err = toml.Unmarshal(data, &doc)
		m = doc.Import
	case "json":
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse import map %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("import map %s: %w", path, err)
	}
	return m, nil
}

func parseYAMLImportMap(data []byte) (ImportMap, error) {
	var probe any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, isList := probe.([]any); isList {
		var m ImportMap
		err := yaml.Unmarshal(data, &m)
		return m, err
	}

	var ordered yaml.MapSlice
	if err := yaml.Unmarshal(data, &ordered); err != nil {
		return nil, err
	}
	m := make(ImportMap, 0, len(ordered))
	for _, item := range ordered {
		m = append(m, Import{Name: fmt.Sprint(item.Key), Module: fmt.Sprint(item.Value)})
	}
	return m, nil
}

// LoadDir builds a table from the module files under root matching pattern.
// A module id is the slash separated path relative to root without its
// extension.
func LoadDir(root, pattern string) (MapTable, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid module pattern %q", pattern)
	}

	var (
		mu    sync.Mutex
		table = make(MapTable)
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		matched, err := doublestar.Match(pattern, rel)
		if err != nil || !matched {
			return err
		}

		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		mu.Lock()
		table[strings.TrimSuffix(rel, filepath.Ext(rel))] = string(src)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan modules in %s: %w", root, err)
	}
	return table, nil
}

type manifest struct {
	Modules map[string]string `json:"modules" yaml:"modules" toml:"modules"`
}

// LoadManifest reads a {modules: {id: factory}} manifest in YAML, TOML or
// JSON. Gzip and zstd compressed manifests are recognised by content; the
// format is taken from the file name without the compression suffix.
func LoadManifest(path string) (MapTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data, err = decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress manifest %s: %w", path, err)
	}

	var doc manifest
	switch format(path) {
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	case "json":
		err = sonic.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	table := make(MapTable, len(doc.Modules))
	for id, src := range doc.Modules {
		table[id] = src
	}
	return table, nil
}

func decompress(data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("application/gzip"):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case mtype.Is("application/zstd"):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

func format(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".gz", ".zst", ".zstd"} {
		name = strings.TrimSuffix(name, suffix)
	}

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
