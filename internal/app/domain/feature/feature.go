// Package feature defines the entitlement model: a fixed feature catalog with
// a static dependency graph, per-family enabled sets, named presets, and
// time-bound subscription grants.
package feature

import (
	"fmt"
	"sort"
	"time"
)

// Feature identifies a toggleable capability of the app.
type Feature string

const (
	// Core features are always available and cannot be toggled.
	FeatureChat     Feature = "chat"
	FeatureCalendar Feature = "calendar"
	FeatureTasks    Feature = "tasks"

	FeatureMoodTracking Feature = "moodTracking"
	FeatureMoodHistory  Feature = "moodHistory"
	FeaturePhotoAlbums  Feature = "photoAlbums"
	FeaturePhotoVoting  Feature = "photoVoting"
	FeatureRewardStore  Feature = "rewardStore"
	FeatureTreeGarden   Feature = "treeGarden"
	FeatureFamilyGoals  Feature = "familyGoals"
)

var core = map[Feature]bool{
	FeatureChat:     true,
	FeatureCalendar: true,
	FeatureTasks:    true,
}

// dependencies is the static prerequisite list per feature. Enabling a
// feature enables everything here transitively; disabling a feature disables
// every enabled feature that (transitively) lists it.
var dependencies = map[Feature][]Feature{
	FeatureMoodTracking: nil,
	FeatureMoodHistory:  {FeatureMoodTracking},
	FeaturePhotoAlbums:  nil,
	FeaturePhotoVoting:  {FeaturePhotoAlbums},
	FeatureRewardStore:  nil,
	FeatureTreeGarden:   {FeatureRewardStore},
	FeatureFamilyGoals:  nil,
}

// All returns the catalog in a stable order, core features first.
func All() []Feature {
	out := make([]Feature, 0, len(core)+len(dependencies))
	for f := range core {
		out = append(out, f)
	}
	for f := range dependencies {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := core[out[i]], core[out[j]]
		if ci != cj {
			return ci
		}
		return out[i] < out[j]
	})
	return out
}

// Parse decodes a stored feature value.
func Parse(raw string) (Feature, error) {
	f := Feature(raw)
	if core[f] {
		return f, nil
	}
	if _, ok := dependencies[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", raw)
}

// IsCore reports whether the feature is always on.
func IsCore(f Feature) bool { return core[f] }

// Dependencies returns the direct prerequisites of a feature.
func Dependencies(f Feature) []Feature {
	return append([]Feature(nil), dependencies[f]...)
}

// Set is an enabled-feature set.
type Set map[Feature]bool

// NewSet builds a set from a list.
func NewSet(features ...Feature) Set {
	s := make(Set, len(features))
	for _, f := range features {
		s[f] = true
	}
	return s
}

// List returns the set's members in a stable order.
func (s Set) List() []Feature {
	out := make([]Feature, 0, len(s))
	for f, on := range s {
		if on {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone copies the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for f, on := range s {
		if on {
			out[f] = true
		}
	}
	return out
}

// EnableWithDependencies turns a feature on together with its transitive
// prerequisites. Core features are ignored: they are always on.
func (s Set) EnableWithDependencies(f Feature) {
	if IsCore(f) {
		return
	}
	s[f] = true
	for _, dep := range dependencies[f] {
		s.EnableWithDependencies(dep)
	}
}

// DisableWithDependents turns a feature off together with every enabled
// feature that transitively depends on it.
func (s Set) DisableWithDependents(f Feature) {
	if IsCore(f) {
		return
	}
	delete(s, f)
	for dependent, deps := range dependencies {
		if !s[dependent] {
			continue
		}
		for _, dep := range deps {
			if dep == f {
				s.DisableWithDependents(dependent)
				break
			}
		}
	}
}

// Closure expands a list of features into a set with all dependencies
// enabled. Used when applying presets so a preset can never name an
// inconsistent set.
func Closure(features []Feature) Set {
	s := make(Set)
	for _, f := range features {
		s.EnableWithDependencies(f)
	}
	return s
}

// Settings is a family's persisted entitlement state.
type Settings struct {
	FamilyID  string
	Enabled   Set
	Preset    string
	UpdatedAt time.Time
}

// Grant unlocks one feature until an expiration instant.
type Grant struct {
	Feature   Feature
	ExpiresAt time.Time
}

// Active reports whether the grant still applies.
func (g Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// Subscription is a family's set of time-bound feature grants. TestMode makes
// every feature available regardless of grants and expirations.
type Subscription struct {
	FamilyID  string
	Grants    []Grant
	TestMode  bool
	UpdatedAt time.Time
}

// Unlocks reports whether the subscription makes a feature available at the
// given instant.
func (s Subscription) Unlocks(f Feature, now time.Time) bool {
	if s.TestMode {
		return true
	}
	for _, g := range s.Grants {
		if g.Feature == f && g.Active(now) {
			return true
		}
	}
	return false
}

// RequestStatus tracks the feature-request workflow.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// ParseRequestStatus decodes a stored request status.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	switch RequestStatus(raw) {
	case RequestPending, RequestApproved, RequestDenied:
		return RequestStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown request status %q", raw)
	}
}

// Request is a member's ask for a feature to be enabled.
type Request struct {
	ID          string
	FamilyID    string
	RequestedBy string
	Feature     Feature
	Reason      string
	Status      RequestStatus
	CreatedAt   time.Time
	ResolvedAt  time.Time
}
