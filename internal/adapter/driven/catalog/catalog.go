// Package catalog loads the static achievement and link definitions.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

//go:embed achievements.yaml
var defaultCatalog []byte

type fileCatalog struct {
	Links        []fileLink        `yaml:"links"`
	Achievements []fileAchievement `yaml:"achievements"`
}

type fileLink struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
}

type fileAchievement struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Condition   struct {
		Kind      string   `yaml:"kind"`
		EditTypes []string `yaml:"edit_types"`
	} `yaml:"condition"`
	Thresholds []int            `yaml:"thresholds"`
	Links      map[int][]string `yaml:"links"`
}

// Default returns the embedded catalog.
func Default() (model.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path. An empty path selects the embedded default.
func Load(path string) (model.Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}

	cat, err := Parse(data)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (model.Catalog, error) {
	var raw fileCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	cat := model.Catalog{
		Links:        make([]model.Link, 0, len(raw.Links)),
		Achievements: make([]model.Achievement, 0, len(raw.Achievements)),
	}

	linkIDs := make(map[string]struct{}, len(raw.Links))
	for _, l := range raw.Links {
		if l.ID == "" {
			return model.Catalog{}, errors.New("link has empty id")
		}
		if l.URL == "" {
			return model.Catalog{}, fmt.Errorf("link %q has empty url", l.ID)
		}
		if _, dup := linkIDs[l.ID]; dup {
			return model.Catalog{}, fmt.Errorf("duplicate link id %q", l.ID)
		}
		linkIDs[l.ID] = struct{}{}
		cat.Links = append(cat.Links, model.Link{ID: l.ID, URL: l.URL, Title: l.Title, Category: l.Category})
	}

	achievementIDs := make(map[string]struct{}, len(raw.Achievements))
	for _, a := range raw.Achievements {
		def := model.Achievement{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Condition: model.Condition{
				Kind:      model.ConditionKind(a.Condition.Kind),
				EditTypes: a.Condition.EditTypes,
			},
			Thresholds: a.Thresholds,
			Links:      a.Links,
		}
		if err := def.Validate(); err != nil {
			return model.Catalog{}, err
		}
		if _, dup := achievementIDs[def.ID]; dup {
			return model.Catalog{}, fmt.Errorf("duplicate achievement id %q", def.ID)
		}
		achievementIDs[def.ID] = struct{}{}

		for rank, ids := range def.Links {
			for _, id := range ids {
				if _, ok := linkIDs[id]; !ok {
					return model.Catalog{}, fmt.Errorf("achievement %q rank %d references unknown link %q", def.ID, rank, id)
				}
			}
		}
		cat.Achievements = append(cat.Achievements, def)
	}

	return cat, nil
}
