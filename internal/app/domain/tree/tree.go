// Package tree defines the growth progression model: points buy water, water
// grows a tree through fixed stages, and fully grown trees are archived into
// a per-owner collection that gates which tree types can be planted next.
package tree

import (
	"fmt"
	"sort"
	"time"
)

// WaterPerPoint is the fixed conversion rate: one point buys five water units.
const WaterPerPoint = 5

// Type identifies a plantable tree species.
type Type string

const (
	TypeOak       Type = "oak"
	TypeCherry    Type = "cherry"
	TypeMaple     Type = "maple"
	TypeWillow    Type = "willow"
	TypeJacaranda Type = "jacaranda"
	TypeBaobab    Type = "baobab"
)

// Spec fixes the growth parameters of a tree type. WaterRequired values are
// multiples of WaterPerPoint so a tree can always be filled exactly.
type Spec struct {
	WaterRequired int64
	UnlockLevel   int
}

var catalog = map[Type]Spec{
	TypeOak:       {WaterRequired: 100, UnlockLevel: 1},
	TypeCherry:    {WaterRequired: 150, UnlockLevel: 1},
	TypeMaple:     {WaterRequired: 250, UnlockLevel: 2},
	TypeWillow:    {WaterRequired: 400, UnlockLevel: 3},
	TypeJacaranda: {WaterRequired: 600, UnlockLevel: 4},
	TypeBaobab:    {WaterRequired: 1000, UnlockLevel: 5},
}

// ParseType decodes a stored tree type.
func ParseType(raw string) (Type, error) {
	if _, ok := catalog[Type(raw)]; !ok {
		return "", fmt.Errorf("unknown tree type %q", raw)
	}
	return Type(raw), nil
}

// SpecFor returns the fixed growth parameters for a type.
func SpecFor(t Type) (Spec, error) {
	spec, ok := catalog[t]
	if !ok {
		return Spec{}, fmt.Errorf("unknown tree type %q", t)
	}
	return spec, nil
}

// Types returns the full catalog in a stable order.
func Types() []Type {
	out := make([]Type, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := catalog[out[i]], catalog[out[j]]
		if si.UnlockLevel != sj.UnlockLevel {
			return si.UnlockLevel < sj.UnlockLevel
		}
		return out[i] < out[j]
	})
	return out
}

// TypesForLevel returns the types unlocked at or below the given level.
func TypesForLevel(level int) []Type {
	var out []Type
	for _, t := range Types() {
		if catalog[t].UnlockLevel <= level {
			out = append(out, t)
		}
	}
	return out
}

// Stage buckets the water fill ratio. Water never decreases, so the stage of
// a given tree is non-decreasing over time.
type Stage string

const (
	StageSeed      Stage = "seed"
	StageSprout    Stage = "sprout"
	StageSapling   Stage = "sapling"
	StageYoungTree Stage = "youngTree"
	StageFullGrown Stage = "fullGrown"
)

// StageFor maps current water to a growth stage.
func StageFor(current, required int64) Stage {
	if required <= 0 || current >= required {
		return StageFullGrown
	}
	switch ratio := float64(current) / float64(required); {
	case ratio < 0.25:
		return StageSeed
	case ratio < 0.5:
		return StageSprout
	case ratio < 0.75:
		return StageSapling
	default:
		return StageYoungTree
	}
}

// Tree is the active plant in an owner's pot. A fully grown tree is archived
// into the collection and never watered again; a fresh Tree is planted in its
// place.
type Tree struct {
	ID           string
	OwnerID      string
	Type         Type
	CurrentWater int64
	FullyGrown   bool
	PlantedAt    time.Time
	UpdatedAt    time.Time
}

// Stage returns the current growth stage.
func (t Tree) Stage() Stage {
	spec, err := SpecFor(t.Type)
	if err != nil {
		return StageSeed
	}
	if t.FullyGrown {
		return StageFullGrown
	}
	return StageFor(t.CurrentWater, spec.WaterRequired)
}

// CollectionEntry counts how many trees of one type an owner has grown.
type CollectionEntry struct {
	Type       Type
	TimesGrown int
}

// Collection is the per-owner archive of grown trees. Level is derived from
// the total count and gates which types may be planted.
type Collection struct {
	OwnerID   string
	Entries   []CollectionEntry
	Level     int
	UpdatedAt time.Time
}

// TotalGrown sums the archive.
func (c Collection) TotalGrown() int {
	total := 0
	for _, e := range c.Entries {
		total += e.TimesGrown
	}
	return total
}

// LevelFor derives a collection level from the number of trees grown: every
// three grown trees advance the owner one level, starting at level 1.
func LevelFor(totalGrown int) int {
	if totalGrown < 0 {
		totalGrown = 0
	}
	return 1 + totalGrown/3
}

// Record adds one grown tree of the given type and recomputes the level.
// It returns the types newly unlocked by any level change.
func (c *Collection) Record(t Type, now time.Time) []Type {
	found := false
	for i := range c.Entries {
		if c.Entries[i].Type == t {
			c.Entries[i].TimesGrown++
			found = true
			break
		}
	}
	if !found {
		c.Entries = append(c.Entries, CollectionEntry{Type: t, TimesGrown: 1})
	}

	prev := c.Level
	c.Level = LevelFor(c.TotalGrown())
	c.UpdatedAt = now

	var unlocked []Type
	if c.Level > prev {
		for _, candidate := range Types() {
			spec := catalog[candidate]
			if spec.UnlockLevel > prev && spec.UnlockLevel <= c.Level {
				unlocked = append(unlocked, candidate)
			}
		}
	}
	return unlocked
}
