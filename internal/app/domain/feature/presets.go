package feature

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset names recognised by ApplyPreset.
const (
	PresetEssential = "essential"
	PresetBalanced  = "balanced"
	PresetFull      = "full"
)

// defaultPresets is the compiled-in preset table. A yaml file may override it
// at startup.
var defaultPresets = map[string][]Feature{
	PresetEssential: {},
	PresetBalanced: {
		FeatureMoodTracking,
		FeaturePhotoAlbums,
		FeatureRewardStore,
	},
	PresetFull: {
		FeatureMoodTracking,
		FeatureMoodHistory,
		FeaturePhotoAlbums,
		FeaturePhotoVoting,
		FeatureRewardStore,
		FeatureTreeGarden,
		FeatureFamilyGoals,
	},
}

// Presets holds a named preset table.
type Presets struct {
	table map[string][]Feature
}

// DefaultPresets returns the compiled-in table.
func DefaultPresets() *Presets {
	return &Presets{table: defaultPresets}
}

// LoadPresets reads a preset table from a yaml file of the form:
//
//	presets:
//	  balanced: [moodTracking, photoAlbums]
func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	var doc struct {
		Presets map[string][]string `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	table := make(map[string][]Feature, len(doc.Presets))
	for name, raw := range doc.Presets {
		features := make([]Feature, 0, len(raw))
		for _, value := range raw {
			f, err := Parse(value)
			if err != nil {
				return nil, fmt.Errorf("preset %s: %w", name, err)
			}
			features = append(features, f)
		}
		table[name] = features
	}
	return &Presets{table: table}, nil
}

// LoadPresetsOrDefault falls back to the compiled-in table when the file is
// absent or unreadable.
func LoadPresetsOrDefault(path string) *Presets {
	if path == "" {
		return DefaultPresets()
	}
	p, err := LoadPresets(path)
	if err != nil {
		return DefaultPresets()
	}
	return p
}

// Names lists the available preset names.
func (p *Presets) Names() []string {
	out := make([]string, 0, len(p.table))
	for name := range p.table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the enabled set a preset expands to, with the dependency
// closure applied.
func (p *Presets) Resolve(name string) (Set, bool) {
	features, ok := p.table[name]
	if !ok {
		return nil, false
	}
	return Closure(features), true
}
