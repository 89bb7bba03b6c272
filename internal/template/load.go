package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir reads campaign templates from a directory of JSON files, one
// template per file, keyed by campaign ref. Non-JSON entries are
// skipped; an empty directory setting yields an empty source so callers
// can treat the template set as optional.
func LoadDir(dir string) (StaticSource, error) {
	src := StaticSource{}
	if strings.TrimSpace(dir) == "" {
		return src, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read campaign directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read campaign %s: %w", entry.Name(), err)
		}
		var tpl Template
		if err := json.Unmarshal(data, &tpl); err != nil {
			return nil, fmt.Errorf("parse campaign %s: %w", entry.Name(), err)
		}
		if err := tpl.Validate(); err != nil {
			return nil, fmt.Errorf("campaign %s: %w", entry.Name(), err)
		}
		if _, exists := src[tpl.CampaignRef]; exists {
			return nil, fmt.Errorf("campaign %s: ref %s is already defined", entry.Name(), tpl.CampaignRef)
		}
		src[tpl.CampaignRef] = &tpl
	}
	return src, nil
}
