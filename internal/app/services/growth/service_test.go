package growth

import (
	"context"
	"sync"
	"testing"

	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/tree"
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

func TestPlantRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Plant(ctx, f.child.ID, tree.Type("cactus")); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for unknown type, got %v", err)
	}
	// Maple unlocks at level 2; a fresh owner is level 1.
	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeMaple); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for locked type, got %v", err)
	}
	if _, err := f.svc.Plant(ctx, "ghost", tree.TypeOak); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found for unknown owner, got %v", err)
	}

	planted, err := f.svc.Plant(ctx, f.child.ID, tree.TypeOak)
	if err != nil {
		t.Fatalf("plant: %v", err)
	}
	if planted.Stage() != tree.StageSeed {
		t.Fatalf("expected seed stage, got %s", planted.Stage())
	}

	// One pot per owner.
	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeCherry); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for second tree, got %v", err)
	}
}

func TestWaterProgressesAndClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeOak); err != nil {
		t.Fatalf("plant: %v", err)
	}

	// Oak requires 100 water, one point buys five units.
	stages := []tree.Stage{tree.StageSprout, tree.StageSapling, tree.StageYoungTree}
	for i, want := range stages {
		res, err := f.svc.Water(ctx, f.child.ID, 6)
		if err != nil {
			t.Fatalf("water %d: %v", i, err)
		}
		if res.PointsSpent != 6 || res.WaterAdded != 30 {
			t.Fatalf("water %d: unexpected spend %+v", i, res)
		}
		if got := res.Tree.Stage(); got != want {
			t.Fatalf("water %d: stage %s, want %s", i, got, want)
		}
	}

	// 90/100 watered; asking for 8 points only spends the 2 that fit.
	res, err := f.svc.Water(ctx, f.child.ID, 8)
	if err != nil {
		t.Fatalf("final water: %v", err)
	}
	if res.PointsSpent != 2 || !res.Grown {
		t.Fatalf("expected clamped growing pour, got %+v", res)
	}
	if res.Tree.CurrentWater != 100 || res.Tree.Stage() != tree.StageFullGrown {
		t.Fatalf("tree not full: %+v", res.Tree)
	}

	balance, err := f.ledger.BalanceOf(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 80 {
		t.Fatalf("expected 80 after 20 points of water, got %d", balance)
	}

	// The grown tree is archived and the pot is free again.
	if _, err := f.svc.ActiveTree(ctx, f.child.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected empty pot, got %v", err)
	}
	collection, err := f.svc.Collection(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if collection.TotalGrown() != 1 || collection.Level != 1 {
		t.Fatalf("unexpected collection: %+v", collection)
	}
	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeCherry); err != nil {
		t.Fatalf("replant after growth: %v", err)
	}
}

func TestWaterRequiresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeOak); err != nil {
		t.Fatalf("plant: %v", err)
	}
	if _, err := f.svc.Water(ctx, f.child.ID, 4); !apperr.IsCode(err, apperr.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	// The failed pour must not wet the tree.
	active, err := f.svc.ActiveTree(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("active tree: %v", err)
	}
	if active.CurrentWater != 0 {
		t.Fatalf("rolled-back water stuck: %+v", active)
	}

	if _, err := f.svc.Water(ctx, f.child.ID, 0); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation for zero points, got %v", err)
	}
	if _, err := f.svc.Water(ctx, "ghost", 4); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found for empty pot, got %v", err)
	}
}

func TestLevelUpUnlocksTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	var last WaterResult
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeOak); err != nil {
			t.Fatalf("plant %d: %v", i, err)
		}
		res, err := f.svc.Water(ctx, f.child.ID, 20)
		if err != nil {
			t.Fatalf("water %d: %v", i, err)
		}
		if !res.Grown {
			t.Fatalf("tree %d did not grow: %+v", i, res)
		}
		last = res
	}

	if last.Level != 2 {
		t.Fatalf("expected level 2 after three trees, got %d", last.Level)
	}
	unlockedMaple := false
	for _, ty := range last.UnlockedTypes {
		if ty == tree.TypeMaple {
			unlockedMaple = true
		}
	}
	if !unlockedMaple {
		t.Fatalf("expected maple unlock, got %v", last.UnlockedTypes)
	}

	available, err := f.svc.AvailableTypes(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("available types: %v", err)
	}
	found := false
	for _, ty := range available {
		if ty == tree.TypeMaple {
			found = true
		}
	}
	if !found {
		t.Fatalf("maple missing from available types: %v", available)
	}

	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeMaple); err != nil {
		t.Fatalf("plant maple at level 2: %v", err)
	}

	history, err := f.svc.History(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 planted trees, got %d", len(history))
	}
}

func TestConcurrentWaterSpendsAgainstFreshState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 100)

	// Oak holds 100 water, so a single 20 point spend fills it.
	if _, err := f.svc.Plant(ctx, f.child.ID, tree.TypeOak); err != nil {
		t.Fatalf("plant: %v", err)
	}

	errs := make([]error, 2)
	results := make([]WaterResult, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Water(ctx, f.child.ID, 20)
		}(i)
	}
	wg.Wait()

	var grown, missed int
	for i, err := range errs {
		switch {
		case err == nil:
			if !results[i].Grown || results[i].PointsSpent != 20 {
				t.Fatalf("unexpected water result: %+v", results[i])
			}
			grown++
		case apperr.IsCode(err, apperr.CodeNotFound):
			missed++
		default:
			t.Fatalf("unexpected water error: %v", err)
		}
	}
	if grown != 1 || missed != 1 {
		t.Fatalf("expected one growth and one empty-slot rejection, got %d and %d", grown, missed)
	}

	balance, err := f.ledger.BalanceOf(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 80 {
		t.Fatalf("expected a single 20 point spend, balance %d", balance)
	}
	collection, err := f.svc.Collection(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if collection.TotalGrown() != 1 {
		t.Fatalf("tree archived %d times", collection.TotalGrown())
	}
}
