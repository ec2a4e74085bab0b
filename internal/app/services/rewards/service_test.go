package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/events"
	ledgersvc "github.com/familygrove/engine/internal/app/services/ledger"
	"github.com/familygrove/engine/internal/app/storage/memory"
	apperr "github.com/familygrove/engine/internal/errors"
)

type fixture struct {
	svc    *Service
	ledger *ledgersvc.Service
	store  *memory.Store
	child  member.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	child, err := store.CreateMember(ctx, member.Member{FamilyID: "f1", Name: "Ben", Role: member.RoleChild})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	bus := events.NewBus(32)
	lsvc := ledgersvc.New(store, store, bus, nil)
	return &fixture{
		svc:    New(store, store, lsvc, bus, nil),
		ledger: lsvc,
		store:  store,
		child:  child,
	}
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	if _, err := f.ledger.Earn(context.Background(), f.child.ID, amount, "chores", ""); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func TestCreateRewardValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateReward(ctx, "f1", "", "treat", 10, 0, 0, time.Time{}); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for blank title, got %v", err)
	}
	if _, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 0, 0, 0, time.Time{}); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for zero cost, got %v", err)
	}
	if _, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 10, -1, 0, time.Time{}); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for negative validity, got %v", err)
	}
}

func TestRedeemSpendsAndSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 50)

	r, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 30, 7, 0, time.Time{})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	redemption, err := f.svc.Redeem(ctx, r.ID, f.child.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.Snapshot.PointCost != 30 || redemption.Snapshot.Title != "Ice cream" {
		t.Fatalf("snapshot missing: %+v", redemption)
	}
	if redemption.ExpiresAt.IsZero() {
		t.Fatalf("expected computed expiry for validityDays=7")
	}

	balance, err := f.ledger.BalanceOf(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected 20 after redemption, got %d", balance)
	}

	updated, err := f.svc.GetReward(ctx, r.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if updated.TotalRedemptions != 1 {
		t.Fatalf("counter not incremented: %+v", updated)
	}

	// Later catalog edits must not rewrite history.
	if _, err := f.svc.CreateReward(ctx, "f1", "Other", "treat", 5, 0, 0, time.Time{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.store.GetRedemption(ctx, redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.Snapshot.PointCost != 30 {
		t.Fatalf("snapshot mutated: %+v", got.Snapshot)
	}
}

func TestRedeemChecksInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Redeem(ctx, "missing", f.child.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	inactive, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 10, 0, 0, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SetActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, inactive.ID, f.child.ID); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected inactive rejection, got %v", err)
	}

	retired, err := f.svc.CreateReward(ctx, "f1", "Old", "treat", 10, 0, 0, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, retired.ID, f.child.ID); !apperr.IsCode(err, apperr.CodeExpired) {
		t.Fatalf("expected expired rejection, got %v", err)
	}

	// Broke account hits the balance check last.
	affordable, err := f.svc.CreateReward(ctx, "f1", "Candy", "treat", 10, 0, 0, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, affordable.ID, f.child.ID); !apperr.IsCode(err, apperr.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestWeeklyRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	r, err := f.svc.CreateReward(ctx, "f1", "Movie night", "family", 10, 0, 1, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Redeem(ctx, r.ID, f.child.ID); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, r.ID, f.child.ID); !apperr.IsCode(err, apperr.CodeRateLimitExceeded) {
		t.Fatalf("expected rate limit, got %v", err)
	}

	// The failed attempt must not spend points.
	balance, err := f.ledger.BalanceOf(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 90 {
		t.Fatalf("expected 90, got %d", balance)
	}
}

func TestFailedRedeemLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.CreateReward(ctx, "f1", "Candy", "treat", 10, 0, 0, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, r.ID, f.child.ID); !apperr.IsCode(err, apperr.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	list, err := f.svc.ListRedemptions(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("failed redemption left a record: %+v", list)
	}
	got, err := f.svc.GetReward(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalRedemptions != 0 {
		t.Fatalf("failed redemption bumped the counter: %+v", got)
	}
}

func TestMarkUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 50)

	r, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 10, 0, 0, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	redemption, err := f.svc.Redeem(ctx, r.ID, f.child.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	used, err := f.svc.MarkUsed(ctx, redemption.ID)
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if !used.Used || used.UsedAt.IsZero() {
		t.Fatalf("unexpected result: %+v", used)
	}

	// Second mark is a no-op preserving the original timestamp.
	again, err := f.svc.MarkUsed(ctx, redemption.ID)
	if err != nil {
		t.Fatalf("second mark used: %v", err)
	}
	if !again.UsedAt.Equal(used.UsedAt) {
		t.Fatalf("timestamp rewritten: %v vs %v", again.UsedAt, used.UsedAt)
	}

	if _, err := f.svc.MarkUsed(ctx, "missing"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMarkUsedExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 50)

	r, err := f.svc.CreateReward(ctx, "f1", "Ice cream", "treat", 10, 1, 0, time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	redemption, err := f.svc.Redeem(ctx, r.ID, f.child.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	f.svc.now = func() time.Time { return time.Now().UTC().AddDate(0, 0, 2) }
	if _, err := f.svc.MarkUsed(ctx, redemption.ID); !apperr.IsCode(err, apperr.CodeExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestConcurrentRedeemHonorsWeeklyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	r, err := f.svc.CreateReward(ctx, "f1", "Movie night", "fun", 10, 0, 1, time.Time{})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Redeem(ctx, r.ID, f.child.ID)
		}(i)
	}
	wg.Wait()

	var redeemed, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			redeemed++
		case apperr.IsCode(err, apperr.CodeRateLimitExceeded):
			limited++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	if redeemed != 1 || limited != 1 {
		t.Fatalf("expected one redemption and one limit rejection, got %d and %d", redeemed, limited)
	}

	balance, err := f.ledger.BalanceOf(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 90 {
		t.Fatalf("expected one 10 point spend, balance %d", balance)
	}
	redemptions, err := f.svc.ListRedemptions(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("list redemptions: %v", err)
	}
	if len(redemptions) != 1 {
		t.Fatalf("expected one recorded redemption, got %d", len(redemptions))
	}
}
