package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateRule indicates two rule files define the same rule name.
var ErrDuplicateRule = errors.New("duplicate rule name")

// ruleFileExtensions are the file types read from a rules directory.
// JSON documents are valid YAML, so one decoder serves both.
var ruleFileExtensions = map[string]bool{
	".yml":  true,
	".yaml": true,
	".json": true,
}

// LoadSpec reads a rule specification from a file, or merges every rule file
// found under a directory.
func LoadSpec(path string) (Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules path: %w", err)
	}

	if !info.IsDir() {
		return loadSpecFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ruleFileExtensions[strings.ToLower(filepath.Ext(p))] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rules directory: %w", err)
	}
	sort.Strings(files)

	merged := make(Spec)
	for _, file := range files {
		spec, err := loadSpecFile(file)
		if err != nil {
			return nil, err
		}
		for name, rs := range spec {
			if _, exists := merged[name]; exists {
				return nil, fmt.Errorf("%w %q in %s", ErrDuplicateRule, name, file)
			}
			merged[name] = rs
		}
	}

	return merged, nil
}

func loadSpecFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	spec := make(Spec)
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return spec, nil
}

// Load reads and compiles the rules at path.
func Load(path string, opts ...Option) (*RuleSet, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return Compile(spec, opts...)
}
