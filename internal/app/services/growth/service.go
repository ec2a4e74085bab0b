// Package growth implements the tree progression loop: plant one tree at a
// time, spend points to water it at a fixed rate, and archive fully grown
// trees into a collection whose level unlocks further tree types.
package growth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/tree"
	"github.com/familygrove/engine/internal/app/events"
	ledgersvc "github.com/familygrove/engine/internal/app/services/ledger"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Service manages active trees and grown-tree collections.
type Service struct {
	members storage.MemberStore
	store   storage.Store
	ledger  *ledgersvc.Service
	bus     *events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New constructs a growth service.
func New(members storage.MemberStore, store storage.Store, ledger *ledgersvc.Service, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("growth")
	}
	return &Service{
		members: members,
		store:   store,
		ledger:  ledger,
		bus:     bus,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WaterResult reports the outcome of a watering.
type WaterResult struct {
	Tree          tree.Tree
	PointsSpent   int64
	WaterAdded    int64
	Grown         bool
	Level         int
	UnlockedTypes []tree.Type
}

// Plant starts a new tree for the owner. Each owner tends at most one active
// tree, and the type must be unlocked at the owner's collection level.
func (s *Service) Plant(ctx context.Context, ownerID string, treeType tree.Type) (tree.Tree, error) {
	if s.members != nil {
		if _, err := s.members.GetMember(ctx, ownerID); err != nil {
			return tree.Tree{}, err
		}
	}

	spec, err := tree.SpecFor(treeType)
	if err != nil {
		return tree.Tree{}, apperr.Validation("%v", err)
	}

	collection, err := s.store.GetCollection(ctx, ownerID)
	if err != nil {
		return tree.Tree{}, err
	}
	if spec.UnlockLevel > collection.Level {
		return tree.Tree{}, apperr.Validation("tree type %s unlocks at level %d, owner is level %d",
			treeType, spec.UnlockLevel, collection.Level)
	}

	if _, err := s.store.ActiveTree(ctx, ownerID); err == nil {
		return tree.Tree{}, apperr.Validation("owner %s already has an active tree", ownerID)
	} else if !apperr.IsCode(err, apperr.CodeNotFound) {
		return tree.Tree{}, err
	}

	now := s.now()
	t, err := s.store.CreateTree(ctx, tree.Tree{
		OwnerID:   ownerID,
		Type:      treeType,
		PlantedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return tree.Tree{}, err
	}

	s.log.WithField("tree_id", t.ID).
		WithField("owner_id", ownerID).
		WithField("type", string(treeType)).
		Info("tree planted")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.TypeTreePlanted,
			AccountID: ownerID,
			EntityID:  t.ID,
			Payload:   map[string]string{"type": string(treeType)},
		})
	}
	return t, nil
}

// Water spends up to requestedPoints on the owner's active tree. The spend is
// clamped so the tree never holds more water than its type requires; the tree
// is read and the clamp computed inside the atomic block under the account
// lock, so racing waterers never spend against a stale water level. A tree
// that reaches its requirement is archived into the collection, freeing the
// slot.
func (s *Service) Water(ctx context.Context, ownerID string, requestedPoints int64) (WaterResult, error) {
	if requestedPoints <= 0 {
		return WaterResult{}, apperr.Validation("requested points must be positive")
	}

	now := s.now()
	var result WaterResult
	err := s.ledger.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			t, err := st.ActiveTree(ctx, ownerID)
			if err != nil {
				return err
			}
			spec, err := tree.SpecFor(t.Type)
			if err != nil {
				return err
			}

			remaining := spec.WaterRequired - t.CurrentWater
			points := requestedPoints
			if points*tree.WaterPerPoint > remaining {
				points = remaining / tree.WaterPerPoint
			}
			if points <= 0 {
				return apperr.Validation("tree %s needs no more water", t.ID)
			}
			water := points * tree.WaterPerPoint
			result = WaterResult{PointsSpent: points, WaterAdded: water}

			if _, err := ledgersvc.Append(ctx, st, ledger.Transaction{
				AccountID: ownerID,
				Kind:      ledger.KindSpent,
				Amount:    -points,
				Reason:    "Watered: " + string(t.Type),
			}); err != nil {
				return err
			}

			t.CurrentWater += water
			t.UpdatedAt = now
			if t.CurrentWater >= spec.WaterRequired {
				t.FullyGrown = true
				result.Grown = true
			}

			updated, err := st.UpdateTree(ctx, t)
			if err != nil {
				return err
			}
			result.Tree = updated

			collection, err := st.GetCollection(ctx, ownerID)
			if err != nil {
				return err
			}
			result.Level = collection.Level
			if !result.Grown {
				return nil
			}

			result.UnlockedTypes = collection.Record(t.Type, now)
			collection, err = st.SaveCollection(ctx, collection)
			if err != nil {
				return err
			}
			result.Level = collection.Level
			return nil
		})
	}, ownerID)
	if err != nil {
		return WaterResult{}, err
	}

	s.log.WithField("tree_id", result.Tree.ID).
		WithField("owner_id", ownerID).
		WithField("points", result.PointsSpent).
		WithField("water", result.Tree.CurrentWater).
		Info("tree watered")
	s.publishWaterEvents(ownerID, result)
	return result, nil
}

func (s *Service) publishWaterEvents(ownerID string, result WaterResult) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(events.Event{
		Type:      events.TypeTreeWatered,
		AccountID: ownerID,
		EntityID:  result.Tree.ID,
		Payload:   map[string]string{"stage": string(result.Tree.Stage())},
	})
	if !result.Grown {
		return
	}

	s.bus.Publish(events.Event{
		Type:      events.TypeTreeGrown,
		AccountID: ownerID,
		EntityID:  result.Tree.ID,
		Payload:   map[string]string{"type": string(result.Tree.Type)},
	})
	if len(result.UnlockedTypes) > 0 {
		unlocked := make([]string, len(result.UnlockedTypes))
		for i, t := range result.UnlockedTypes {
			unlocked[i] = string(t)
		}
		s.bus.Publish(events.Event{
			Type:      events.TypeLevelChanged,
			AccountID: ownerID,
			Payload: map[string]string{
				"level":    strconv.Itoa(result.Level),
				"unlocked": strings.Join(unlocked, ","),
			},
		})
	}
}

// ActiveTree returns the owner's current tree.
func (s *Service) ActiveTree(ctx context.Context, ownerID string) (tree.Tree, error) {
	return s.store.ActiveTree(ctx, ownerID)
}

// Collection returns the owner's grown-tree archive.
func (s *Service) Collection(ctx context.Context, ownerID string) (tree.Collection, error) {
	return s.store.GetCollection(ctx, ownerID)
}

// History lists every tree the owner planted, grown or not.
func (s *Service) History(ctx context.Context, ownerID string) ([]tree.Tree, error) {
	return s.store.ListTrees(ctx, ownerID)
}

// AvailableTypes returns the tree types unlocked at the owner's level.
func (s *Service) AvailableTypes(ctx context.Context, ownerID string) ([]tree.Type, error) {
	collection, err := s.store.GetCollection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return tree.TypesForLevel(collection.Level), nil
}
