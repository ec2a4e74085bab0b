package storage

import (
	"context"
	"time"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/domain/task"
	"github.com/familygrove/engine/internal/app/domain/tree"
)

// MemberStore persists family members.
type MemberStore interface {
	CreateMember(ctx context.Context, m member.Member) (member.Member, error)
	UpdateMember(ctx context.Context, m member.Member) (member.Member, error)
	GetMember(ctx context.Context, id string) (member.Member, error)
	ListMembers(ctx context.Context, familyID string) ([]member.Member, error)
}

// LedgerStore persists the append-only transaction log. Rows are never updated
// or deleted except for balance rewrites during a recompute.
type LedgerStore interface {
	AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	// LatestTransaction returns the newest transaction for an account.
	// Accounts with no history yet report not found.
	LatestTransaction(ctx context.Context, accountID string) (ledger.Transaction, error)
	// ListTransactions returns an account's history ordered oldest first.
	ListTransactions(ctx context.Context, accountID string) ([]ledger.Transaction, error)
	// UpdateTransactionBalance rewrites the cached running balance of one
	// transaction. Only the recompute path uses it.
	UpdateTransactionBalance(ctx context.Context, id string, balance int64) error
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, familyID string) ([]task.Task, error)
	ListTasksByAssignee(ctx context.Context, assigneeID string) ([]task.Task, error)
}

// RewardStore persists the reward catalog and the redemption log.
type RewardStore interface {
	CreateReward(ctx context.Context, r reward.Reward) (reward.Reward, error)
	UpdateReward(ctx context.Context, r reward.Reward) (reward.Reward, error)
	GetReward(ctx context.Context, id string) (reward.Reward, error)
	ListRewards(ctx context.Context, familyID string) ([]reward.Reward, error)

	CreateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error)
	UpdateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error)
	GetRedemption(ctx context.Context, id string) (reward.Redemption, error)
	ListRedemptions(ctx context.Context, accountID string) ([]reward.Redemption, error)
	// CountRedemptionsSince counts an account's redemptions of one reward at
	// or after the given instant. It backs the trailing-window rate limit.
	CountRedemptionsSince(ctx context.Context, accountID, rewardID string, since time.Time) (int, error)
}

// TreeStore persists active trees and per-owner collections.
type TreeStore interface {
	CreateTree(ctx context.Context, t tree.Tree) (tree.Tree, error)
	UpdateTree(ctx context.Context, t tree.Tree) (tree.Tree, error)
	GetTree(ctx context.Context, id string) (tree.Tree, error)
	// ActiveTree returns the owner's single not-yet-grown tree. Owners with
	// nothing planted report not found.
	ActiveTree(ctx context.Context, ownerID string) (tree.Tree, error)
	ListTrees(ctx context.Context, ownerID string) ([]tree.Tree, error)

	// GetCollection returns the owner's archive. A missing archive comes back
	// as an empty level-1 collection, not an error.
	GetCollection(ctx context.Context, ownerID string) (tree.Collection, error)
	SaveCollection(ctx context.Context, c tree.Collection) (tree.Collection, error)
}

// FeatureStore persists entitlement state.
type FeatureStore interface {
	// GetFeatureSettings returns the family's toggle state. A family with no
	// stored row comes back with an empty enabled set, not an error.
	GetFeatureSettings(ctx context.Context, familyID string) (feature.Settings, error)
	SaveFeatureSettings(ctx context.Context, s feature.Settings) (feature.Settings, error)

	GetSubscription(ctx context.Context, familyID string) (feature.Subscription, error)
	SaveSubscription(ctx context.Context, s feature.Subscription) (feature.Subscription, error)

	CreateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error)
	UpdateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error)
	GetFeatureRequest(ctx context.Context, id string) (feature.Request, error)
	ListFeatureRequests(ctx context.Context, familyID string) ([]feature.Request, error)
}

// Tx is the unit-of-work view of the store. Writes made through a Tx inside
// RunAtomically commit or roll back as one.
type Tx interface {
	MemberStore
	LedgerStore
	TaskStore
	RewardStore
	TreeStore
	FeatureStore
}

// Store is the full persistence surface.
type Store interface {
	Tx

	// RunAtomically executes fn against a transactional view. Any error from
	// fn rolls every write it made back and is returned unchanged.
	RunAtomically(ctx context.Context, fn func(Tx) error) error
}
