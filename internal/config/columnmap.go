package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseColumnMap turns "source=target" pairs into a column map. Both sides
// are trimmed. Pairs without '=' are returned in skipped so the caller can
// warn about them; later pairs for the same source win.
func ParseColumnMap(pairs []string) (columns map[string]string, skipped []string) {
	columns = make(map[string]string, len(pairs))
	for _, pair := range pairs {
		src, dst, ok := strings.Cut(pair, "=")
		if !ok {
			skipped = append(skipped, pair)
			continue
		}
		columns[strings.TrimSpace(src)] = strings.TrimSpace(dst)
	}
	return columns, skipped
}

// columnMapFile is the wrapped form of a column map file:
//
//	columns:
//	  user_id: id
type columnMapFile struct {
	Columns map[string]string `yaml:"columns"`
}

// LoadColumnMap reads a YAML column map from path. The file is either a
// plain source: target mapping or a document with a top-level columns key.
func LoadColumnMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("column map: %w", err)
	}

	var wrapped columnMapFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && wrapped.Columns != nil {
		return cleanColumnMap(wrapped.Columns)
	}

	var plain map[string]string
	if err := yaml.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("column map %s: %w", path, err)
	}
	return cleanColumnMap(plain)
}

func cleanColumnMap(in map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for src, dst := range in {
		src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
		if src == "" || dst == "" {
			return nil, errors.New("column map: empty source or target column")
		}
		out[src] = dst
	}
	return out, nil
}

// MergeColumnMaps layers maps left to right; later entries win.
func MergeColumnMaps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
