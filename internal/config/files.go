package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// sourcePatterns select the SystemC sources of a modules folder
var sourcePatterns = []string{"**/*.h", "**/*.hpp", "**/*.cpp", "**/*.cc"}

// SourceFiles expands the configured modules folder into the sorted list of
// SystemC source files. The top-level header and payload file are always
// included, even when they live outside the folder.
func (c *Config) SourceFiles() ([]string, error) {
	fileSet := make(map[string]bool)

	if folder := c.ModulesFolder(); folder != "" {
		root := c.Resolve(folder)
		for _, pattern := range sourcePatterns {
			matches, err := expandGlob(filepath.Join(root, pattern))
			if err != nil {
				// Silently skip invalid patterns
				continue
			}
			for _, match := range matches {
				fileSet[filepath.Clean(match)] = true
			}
		}
	}

	extras := []string{c.RTL.HeaderFile, c.RTL.SourceFile}
	if c.Type == TypeTLM {
		extras = []string{c.TLM.HeaderFile, c.TLM.PayloadFile}
	}
	for _, extra := range extras {
		if extra == "" {
			continue
		}
		path := filepath.Clean(c.Resolve(extra))
		if _, err := os.Stat(path); err == nil {
			fileSet[path] = true
		}
	}

	result := make([]string, 0, len(fileSet))
	for f := range fileSet {
		result = append(result, f)
	}
	sort.Strings(result)
	return result, nil
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return filepath.Glob(pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	err := filepath.WalkDir(baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // keep walking past unreadable entries
		}
		if d.IsDir() {
			if path != baseDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	// Try the pattern against every trailing run of path components
	for {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		i := strings.IndexRune(path, filepath.Separator)
		if i < 0 {
			return false
		}
		path = path[i+1:]
	}
}
