// Package rewards implements the reward catalog and redemption flow: ordered
// eligibility checks, a trailing-7-day per-reward rate limit derived from the
// redemption log, and an atomic spend-and-record step.
package rewards

import (
	"context"
	"strings"
	"time"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/events"
	ledgersvc "github.com/familygrove/engine/internal/app/services/ledger"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// redemptionWindow is the trailing window the per-reward limit counts over.
const redemptionWindow = 7 * 24 * time.Hour

// Service manages rewards and redemptions.
type Service struct {
	members storage.MemberStore
	store   storage.Store
	ledger  *ledgersvc.Service
	bus     *events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New constructs a rewards service.
func New(members storage.MemberStore, store storage.Store, ledger *ledgersvc.Service, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
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

// CreateReward adds a reward to the catalog.
func (s *Service) CreateReward(ctx context.Context, familyID, title, category string, pointCost int64, validityDays, maxPerWeek int, expiresAt time.Time) (reward.Reward, error) {
	familyID = strings.TrimSpace(familyID)
	title = strings.TrimSpace(title)

	if familyID == "" {
		return reward.Reward{}, apperr.Validation("family id is required")
	}
	if title == "" {
		return reward.Reward{}, apperr.Validation("title is required")
	}
	if pointCost <= 0 {
		return reward.Reward{}, apperr.Validation("point cost must be positive")
	}
	if validityDays < 0 || maxPerWeek < 0 {
		return reward.Reward{}, apperr.Validation("validity days and weekly limit cannot be negative")
	}

	r, err := s.store.CreateReward(ctx, reward.Reward{
		FamilyID:              familyID,
		Title:                 title,
		Category:              strings.TrimSpace(category),
		PointCost:             pointCost,
		ValidityDays:          validityDays,
		MaxRedemptionsPerWeek: maxPerWeek,
		Active:                true,
		ExpiresAt:             expiresAt,
	})
	if err != nil {
		return reward.Reward{}, err
	}

	s.log.WithField("reward_id", r.ID).
		WithField("family_id", familyID).
		WithField("cost", pointCost).
		Info("reward created")
	return r, nil
}

// SetActive toggles a reward's availability.
func (s *Service) SetActive(ctx context.Context, rewardID string, active bool) (reward.Reward, error) {
	r, err := s.store.GetReward(ctx, rewardID)
	if err != nil {
		return reward.Reward{}, err
	}
	if r.Active == active {
		return r, nil
	}

	r.Active = active
	r, err = s.store.UpdateReward(ctx, r)
	if err != nil {
		return reward.Reward{}, err
	}

	s.log.WithField("reward_id", r.ID).WithField("active", active).Info("reward state changed")
	return r, nil
}

// GetReward retrieves a single reward.
func (s *Service) GetReward(ctx context.Context, rewardID string) (reward.Reward, error) {
	return s.store.GetReward(ctx, rewardID)
}

// ListRewards returns a family's catalog.
func (s *Service) ListRewards(ctx context.Context, familyID string) ([]reward.Reward, error) {
	return s.store.ListRewards(ctx, familyID)
}

// Redeem spends points on a reward. Checks run in a fixed order: existence,
// active, reward expiry, weekly rate limit, then balance. Every check and the
// spend-and-record step run inside one atomic block under the account lock,
// so two racing redeems cannot both slip past the weekly limit.
func (s *Service) Redeem(ctx context.Context, rewardID, accountID string) (reward.Redemption, error) {
	if s.members != nil {
		if _, err := s.members.GetMember(ctx, accountID); err != nil {
			return reward.Redemption{}, err
		}
	}

	now := s.now()
	var r reward.Reward
	var redemption reward.Redemption
	err := s.ledger.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			var err error
			r, err = st.GetReward(ctx, rewardID)
			if err != nil {
				return err
			}
			if !r.Active {
				return apperr.Validation("reward %s is not active", rewardID)
			}
			if r.Expired(now) {
				return apperr.Expired("reward", rewardID)
			}

			if r.MaxRedemptionsPerWeek > 0 {
				count, err := st.CountRedemptionsSince(ctx, accountID, rewardID, now.Add(-redemptionWindow))
				if err != nil {
					return err
				}
				if count >= r.MaxRedemptionsPerWeek {
					return apperr.RateLimitExceeded(r.MaxRedemptionsPerWeek, "week")
				}
			}

			if _, err := ledgersvc.Append(ctx, st, ledger.Transaction{
				AccountID:       accountID,
				Kind:            ledger.KindSpent,
				Amount:          -r.PointCost,
				Reason:          "Redeemed: " + r.Title,
				RelatedRewardID: r.ID,
			}); err != nil {
				return err
			}

			var expiresAt time.Time
			if r.ValidityDays > 0 {
				expiresAt = now.AddDate(0, 0, r.ValidityDays)
			}
			redemption, err = st.CreateRedemption(ctx, reward.Redemption{
				RewardID:   r.ID,
				Snapshot:   r,
				RedeemedBy: accountID,
				RedeemedAt: now,
				ExpiresAt:  expiresAt,
			})
			if err != nil {
				return err
			}

			r.TotalRedemptions++
			_, err = st.UpdateReward(ctx, r)
			return err
		})
	}, accountID)
	if err != nil {
		return reward.Redemption{}, err
	}

	s.log.WithField("reward_id", r.ID).
		WithField("account_id", accountID).
		WithField("cost", r.PointCost).
		Info("reward redeemed")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.TypeRewardRedeemed,
			FamilyID:  r.FamilyID,
			AccountID: accountID,
			EntityID:  redemption.ID,
			Payload:   map[string]string{"title": r.Title},
		})
	}
	return redemption, nil
}

// MarkUsed records that a redeemed reward was consumed. Marking an already
// used redemption is a no-op; an expired one fails.
func (s *Service) MarkUsed(ctx context.Context, redemptionID string) (reward.Redemption, error) {
	redemption, err := s.store.GetRedemption(ctx, redemptionID)
	if err != nil {
		return reward.Redemption{}, err
	}
	if redemption.Used {
		return redemption, nil
	}

	now := s.now()
	if redemption.Expired(now) {
		return reward.Redemption{}, apperr.Expired("redemption", redemptionID)
	}

	redemption.Used = true
	redemption.UsedAt = now
	redemption, err = s.store.UpdateRedemption(ctx, redemption)
	if err != nil {
		return reward.Redemption{}, err
	}

	s.log.WithField("redemption_id", redemptionID).Info("redemption used")
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.TypeRewardUsed,
			AccountID: redemption.RedeemedBy,
			EntityID:  redemption.ID,
		})
	}
	return redemption, nil
}

// ListRedemptions returns an account's redemptions oldest first.
func (s *Service) ListRedemptions(ctx context.Context, accountID string) ([]reward.Redemption, error) {
	return s.store.ListRedemptions(ctx, accountID)
}
