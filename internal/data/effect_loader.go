package data

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/statusfx/internal/game/status"
)

// ParseFile decodes one YAML content file. Unknown keys are rejected so
// typos in content surface at load time.
func ParseFile(raw []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, err
	}
	return f, nil
}

// LoadDir reads every *.yaml and *.yml file in dir in lexical order.
func LoadDir(dir string) (File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return File{}, fmt.Errorf("reading content dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var all File
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("reading %s: %w", path, err)
		}
		f, err := ParseFile(raw)
		if err != nil {
			return File{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		all.Attributes = append(all.Attributes, f.Attributes...)
		all.Definitions = append(all.Definitions, f.Definitions...)
	}

	slog.Info("loaded effect content",
		"dir", dir,
		"files", len(names),
		"attributes", len(all.Attributes),
		"definitions", len(all.Definitions))
	return all, nil
}

// Load reads dir, registers its attributes and compiles its definitions.
func Load(dir string, attrs *status.AttributeRegistry) (*status.Catalog, error) {
	f, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	catalog, warnings, err := CompileFile(attrs, f)
	if err != nil {
		return nil, err
	}
	LogWarnings(warnings)
	return catalog, nil
}

// CompileFile registers the file's attributes and compiles its definitions.
// Content read from PostgreSQL goes through the same path as YAML.
func CompileFile(attrs *status.AttributeRegistry, f File) (*status.Catalog, []status.Warning, error) {
	if err := RegisterAttributes(attrs, f.Attributes); err != nil {
		return nil, nil, err
	}
	return Compile(attrs, f.Definitions)
}

// LogWarnings reports authoring warnings.
func LogWarnings(warnings []status.Warning) {
	for _, w := range warnings {
		slog.Warn("effect content warning", "definition", w.Definition, "warning", w.Message)
	}
}
