// Package entitlements manages which features a family can use: direct
// toggles with dependency cascades, named presets, time-bound subscription
// grants, and the child-initiated request workflow.
package entitlements

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/events"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Service manages per-family feature availability.
type Service struct {
	members storage.MemberStore
	store   storage.Store
	presets *feature.Presets
	bus     *events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New constructs an entitlements service. A nil presets table falls back to
// the compiled-in presets.
func New(members storage.MemberStore, store storage.Store, presets *feature.Presets, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("entitlements")
	}
	if presets == nil {
		presets = feature.DefaultPresets()
	}
	return &Service{
		members: members,
		store:   store,
		presets: presets,
		bus:     bus,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Toggle enables or disables a feature for a family. Enabling pulls in the
// feature's transitive dependencies; disabling pushes out every enabled
// feature that depends on it. Core features cannot be toggled. The
// read-cascade-save runs in one atomic block so concurrent toggles never
// lose each other's updates.
func (s *Service) Toggle(ctx context.Context, familyID string, f feature.Feature, enabled bool) (feature.Settings, error) {
	if _, err := feature.Parse(string(f)); err != nil {
		return feature.Settings{}, apperr.Validation("%v", err)
	}
	if feature.IsCore(f) {
		return feature.Settings{}, apperr.Validation("feature %s is always on", f)
	}

	var settings feature.Settings
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		var err error
		settings, err = st.GetFeatureSettings(ctx, familyID)
		if err != nil {
			return err
		}
		if settings.Enabled == nil {
			settings.Enabled = feature.Set{}
		}

		if enabled {
			settings.Enabled.EnableWithDependencies(f)
		} else {
			settings.Enabled.DisableWithDependents(f)
		}
		settings.FamilyID = familyID
		settings.Preset = ""
		settings.UpdatedAt = s.now()

		settings, err = st.SaveFeatureSettings(ctx, settings)
		return err
	})
	if err != nil {
		return feature.Settings{}, err
	}

	s.log.WithField("family_id", familyID).
		WithField("feature", string(f)).
		WithField("enabled", enabled).
		Info("feature toggled")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:     events.TypeFeatureToggled,
			FamilyID: familyID,
			EntityID: string(f),
			Payload:  map[string]string{"enabled": strconv.FormatBool(enabled)},
		})
	}
	return settings, nil
}

// ApplyPreset replaces a family's enabled set wholesale with the preset's
// dependency closure.
func (s *Service) ApplyPreset(ctx context.Context, familyID, name string) (feature.Settings, error) {
	name = strings.TrimSpace(name)
	enabled, ok := s.presets.Resolve(name)
	if !ok {
		return feature.Settings{}, apperr.Validation("unknown preset %q", name)
	}

	var settings feature.Settings
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		var err error
		settings, err = st.GetFeatureSettings(ctx, familyID)
		if err != nil {
			return err
		}
		settings.FamilyID = familyID
		settings.Enabled = enabled
		settings.Preset = name
		settings.UpdatedAt = s.now()

		settings, err = st.SaveFeatureSettings(ctx, settings)
		return err
	})
	if err != nil {
		return feature.Settings{}, err
	}

	s.log.WithField("family_id", familyID).WithField("preset", name).Info("preset applied")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:     events.TypePresetApplied,
			FamilyID: familyID,
			EntityID: name,
		})
	}
	return settings, nil
}

// IsAvailable reports whether a family can use a feature right now: core
// features always, toggled-on features, and features unlocked by an active
// subscription grant or test mode.
func (s *Service) IsAvailable(ctx context.Context, familyID string, f feature.Feature) (bool, error) {
	if _, err := feature.Parse(string(f)); err != nil {
		return false, apperr.Validation("%v", err)
	}
	if feature.IsCore(f) {
		return true, nil
	}

	settings, err := s.store.GetFeatureSettings(ctx, familyID)
	if err != nil {
		return false, err
	}
	if settings.Enabled[f] {
		return true, nil
	}

	sub, err := s.store.GetSubscription(ctx, familyID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.Unlocks(f, s.now()), nil
}

// EnabledFeatures returns every feature available to the family, core
// features included.
func (s *Service) EnabledFeatures(ctx context.Context, familyID string) ([]feature.Feature, error) {
	var out []feature.Feature
	for _, f := range feature.All() {
		ok, err := s.IsAvailable(ctx, familyID, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Settings returns the family's raw toggle state.
func (s *Service) Settings(ctx context.Context, familyID string) (feature.Settings, error) {
	return s.store.GetFeatureSettings(ctx, familyID)
}

// GrantSubscription unlocks one feature for the family until expiresAt.
func (s *Service) GrantSubscription(ctx context.Context, familyID string, f feature.Feature, expiresAt time.Time) (feature.Subscription, error) {
	if _, err := feature.Parse(string(f)); err != nil {
		return feature.Subscription{}, apperr.Validation("%v", err)
	}
	if !expiresAt.After(s.now()) {
		return feature.Subscription{}, apperr.Validation("grant expiry must be in the future")
	}

	var sub feature.Subscription
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		var err error
		sub, err = s.subscription(ctx, st, familyID)
		if err != nil {
			return err
		}

		replaced := false
		for i := range sub.Grants {
			if sub.Grants[i].Feature == f {
				sub.Grants[i].ExpiresAt = expiresAt
				replaced = true
				break
			}
		}
		if !replaced {
			sub.Grants = append(sub.Grants, feature.Grant{Feature: f, ExpiresAt: expiresAt})
		}
		sub.UpdatedAt = s.now()

		sub, err = st.SaveSubscription(ctx, sub)
		return err
	})
	if err != nil {
		return feature.Subscription{}, err
	}
	s.log.WithField("family_id", familyID).
		WithField("feature", string(f)).
		WithField("expires_at", expiresAt.Format(time.RFC3339)).
		Info("subscription grant saved")
	return sub, nil
}

// SetTestMode switches a family's subscription into or out of test mode,
// where every feature reads as available.
func (s *Service) SetTestMode(ctx context.Context, familyID string, on bool) (feature.Subscription, error) {
	var sub feature.Subscription
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		var err error
		sub, err = s.subscription(ctx, st, familyID)
		if err != nil {
			return err
		}
		sub.TestMode = on
		sub.UpdatedAt = s.now()

		sub, err = st.SaveSubscription(ctx, sub)
		return err
	})
	if err != nil {
		return feature.Subscription{}, err
	}
	s.log.WithField("family_id", familyID).WithField("test_mode", on).Info("test mode changed")
	return sub, nil
}

func (s *Service) subscription(ctx context.Context, st storage.Tx, familyID string) (feature.Subscription, error) {
	sub, err := st.GetSubscription(ctx, familyID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return feature.Subscription{FamilyID: familyID}, nil
		}
		return feature.Subscription{}, err
	}
	return sub, nil
}

// RequestFeature records a member's ask for a feature. One pending request
// per requester and feature at a time.
func (s *Service) RequestFeature(ctx context.Context, familyID, requesterID string, f feature.Feature, reason string) (feature.Request, error) {
	if _, err := feature.Parse(string(f)); err != nil {
		return feature.Request{}, apperr.Validation("%v", err)
	}
	if _, err := s.members.GetMember(ctx, requesterID); err != nil {
		return feature.Request{}, err
	}

	var req feature.Request
	err := s.store.RunAtomically(ctx, func(st storage.Tx) error {
		existing, err := st.ListFeatureRequests(ctx, familyID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.RequestedBy == requesterID && r.Feature == f && r.Status == feature.RequestPending {
				return apperr.Validation("request for %s is already pending", f)
			}
		}

		req, err = st.CreateFeatureRequest(ctx, feature.Request{
			FamilyID:    familyID,
			RequestedBy: requesterID,
			Feature:     f,
			Reason:      strings.TrimSpace(reason),
			Status:      feature.RequestPending,
			CreatedAt:   s.now(),
		})
		return err
	})
	if err != nil {
		return feature.Request{}, err
	}

	s.log.WithField("request_id", req.ID).
		WithField("family_id", familyID).
		WithField("feature", string(f)).
		Info("feature requested")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.TypeFeatureRequested,
			FamilyID:  familyID,
			AccountID: requesterID,
			EntityID:  req.ID,
			Payload:   map[string]string{"feature": string(f)},
		})
	}
	return req, nil
}

// ApproveRequest resolves a pending request and enables the feature, with
// the usual dependency cascade. Only parents resolve requests.
func (s *Service) ApproveRequest(ctx context.Context, requestID, approverID string) (feature.Request, error) {
	req, err := s.resolveRequest(ctx, requestID, approverID, feature.RequestApproved)
	if err != nil {
		return feature.Request{}, err
	}
	if _, err := s.Toggle(ctx, req.FamilyID, req.Feature, true); err != nil {
		return feature.Request{}, err
	}
	return req, nil
}

// DenyRequest resolves a pending request without enabling anything.
func (s *Service) DenyRequest(ctx context.Context, requestID, approverID string) (feature.Request, error) {
	return s.resolveRequest(ctx, requestID, approverID, feature.RequestDenied)
}

func (s *Service) resolveRequest(ctx context.Context, requestID, approverID string, status feature.RequestStatus) (feature.Request, error) {
	approver, err := s.members.GetMember(ctx, approverID)
	if err != nil {
		return feature.Request{}, err
	}
	if approver.Role != member.RoleParent {
		return feature.Request{}, apperr.Validation("member %s cannot resolve feature requests", approverID)
	}

	var req feature.Request
	err = s.store.RunAtomically(ctx, func(st storage.Tx) error {
		var err error
		req, err = st.GetFeatureRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != feature.RequestPending {
			return apperr.InvalidStateTransition("request", string(req.Status), string(status))
		}

		req.Status = status
		req.ResolvedAt = s.now()
		req, err = st.UpdateFeatureRequest(ctx, req)
		return err
	})
	if err != nil {
		return feature.Request{}, err
	}

	s.log.WithField("request_id", req.ID).
		WithField("status", string(status)).
		Info("feature request resolved")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:     events.TypeFeatureResolved,
			FamilyID: req.FamilyID,
			EntityID: req.ID,
			Payload:  map[string]string{"status": string(status), "feature": string(req.Feature)},
		})
	}
	return req, nil
}

// PendingRequests lists a family's unresolved requests.
func (s *Service) PendingRequests(ctx context.Context, familyID string) ([]feature.Request, error) {
	all, err := s.store.ListFeatureRequests(ctx, familyID)
	if err != nil {
		return nil, err
	}
	var out []feature.Request
	for _, r := range all {
		if r.Status == feature.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}
