package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/domain/tree"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
)

func TestCreateMemberAssignsID(t *testing.T) {
	store := New()
	ctx := context.Background()

	m, err := store.CreateMember(ctx, member.Member{FamilyID: "f1", Name: "Ana", Role: member.RoleParent})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	got, err := store.GetMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if got.Name != "Ana" {
		t.Fatalf("unexpected member: %+v", got)
	}
}

func TestGetMemberNotFound(t *testing.T) {
	store := New()

	_, err := store.GetMember(context.Background(), "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLedgerAppendOrderAndLatest(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i, amount := range []int64{50, -30, 10} {
		_, err := store.AppendTransaction(ctx, ledger.Transaction{
			AccountID: "m1",
			Kind:      ledger.KindAdjustment,
			Amount:    amount,
			Balance:   int64(i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := store.ListTransactions(ctx, "m1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(history))
	}
	if history[0].Amount != 50 || history[2].Amount != 10 {
		t.Fatalf("history out of append order: %+v", history)
	}

	latest, err := store.LatestTransaction(ctx, "m1")
	if err != nil {
		t.Fatalf("latest transaction: %v", err)
	}
	if latest.Amount != 10 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	_, err = store.LatestTransaction(ctx, "nobody")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found for empty account, got %v", err)
	}
}

func TestUpdateTransactionBalance(t *testing.T) {
	store := New()
	ctx := context.Background()

	tx, err := store.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindEarned, Amount: 50, Balance: 999})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.UpdateTransactionBalance(ctx, tx.ID, 50); err != nil {
		t.Fatalf("update balance: %v", err)
	}

	latest, err := store.LatestTransaction(ctx, "m1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Balance != 50 {
		t.Fatalf("balance not rewritten: %+v", latest)
	}
}

func TestRunAtomicallyRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindEarned, Amount: 50, Balance: 50}); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	boom := errors.New("boom")
	err := store.RunAtomically(ctx, func(tx storage.Tx) error {
		if _, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindSpent, Amount: -30, Balance: 20}); err != nil {
			return err
		}
		if _, err := tx.CreateMember(ctx, member.Member{FamilyID: "f1", Name: "Ben", Role: member.RoleChild}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	history, err := store.ListTransactions(ctx, "m1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("rollback failed, history: %+v", history)
	}
	members, err := store.ListMembers(ctx, "f1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("rollback failed, members: %+v", members)
	}
}

func TestRunAtomicallyCommits(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.RunAtomically(ctx, func(tx storage.Tx) error {
		if _, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindEarned, Amount: 50, Balance: 50}); err != nil {
			return err
		}
		_, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindSpent, Amount: -30, Balance: 20})
		return err
	})
	if err != nil {
		t.Fatalf("atomic block: %v", err)
	}

	latest, err := store.LatestTransaction(ctx, "m1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Balance != 20 {
		t.Fatalf("unexpected balance: %+v", latest)
	}
}

func TestActiveTreeAndCollectionDefaults(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.ActiveTree(ctx, "m1")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found with nothing planted, got %v", err)
	}

	col, err := store.GetCollection(ctx, "m1")
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if col.Level != 1 || len(col.Entries) != 0 {
		t.Fatalf("unexpected default collection: %+v", col)
	}

	planted, err := store.CreateTree(ctx, tree.Tree{OwnerID: "m1", Type: tree.TypeOak})
	if err != nil {
		t.Fatalf("create tree: %v", err)
	}
	active, err := store.ActiveTree(ctx, "m1")
	if err != nil {
		t.Fatalf("active tree: %v", err)
	}
	if active.ID != planted.ID {
		t.Fatalf("unexpected active tree: %+v", active)
	}

	planted.FullyGrown = true
	if _, err := store.UpdateTree(ctx, planted); err != nil {
		t.Fatalf("update tree: %v", err)
	}
	if _, err := store.ActiveTree(ctx, "m1"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("grown tree should no longer be active, got %v", err)
	}
}

func TestCountRedemptionsSince(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, age := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 10 * 24 * time.Hour} {
		_, err := store.CreateRedemption(ctx, reward.Redemption{
			RewardID:   "r1",
			RedeemedBy: "m1",
			RedeemedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("create redemption: %v", err)
		}
	}

	count, err := store.CountRedemptionsSince(ctx, "m1", "r1", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 redemptions in window, got %d", count)
	}
}
