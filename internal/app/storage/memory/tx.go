package memory

import (
	"context"
	"time"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/domain/task"
	"github.com/familygrove/engine/internal/app/domain/tree"
	"github.com/familygrove/engine/internal/app/storage"
)

// txView exposes the state to a RunAtomically callback. The Store already
// holds the write lock for the duration of the transaction, so txView calls
// the state methods directly.
type txView struct {
	st *state
}

var _ storage.Tx = (*txView)(nil)

func (v *txView) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	return v.st.createMember(m)
}

func (v *txView) UpdateMember(_ context.Context, m member.Member) (member.Member, error) {
	return v.st.updateMember(m)
}

func (v *txView) GetMember(_ context.Context, id string) (member.Member, error) {
	return v.st.getMember(id)
}

func (v *txView) ListMembers(_ context.Context, familyID string) ([]member.Member, error) {
	return v.st.listMembers(familyID)
}

func (v *txView) AppendTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	return v.st.appendTransaction(tx)
}

func (v *txView) LatestTransaction(_ context.Context, accountID string) (ledger.Transaction, error) {
	return v.st.latestTransaction(accountID)
}

func (v *txView) ListTransactions(_ context.Context, accountID string) ([]ledger.Transaction, error) {
	return v.st.listTransactions(accountID)
}

func (v *txView) UpdateTransactionBalance(_ context.Context, id string, balance int64) error {
	return v.st.updateTransactionBalance(id, balance)
}

func (v *txView) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	return v.st.createTask(t)
}

func (v *txView) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	return v.st.updateTask(t)
}

func (v *txView) GetTask(_ context.Context, id string) (task.Task, error) {
	return v.st.getTask(id)
}

func (v *txView) ListTasks(_ context.Context, familyID string) ([]task.Task, error) {
	return v.st.listTasks(familyID)
}

func (v *txView) ListTasksByAssignee(_ context.Context, assigneeID string) ([]task.Task, error) {
	return v.st.listTasksByAssignee(assigneeID)
}

func (v *txView) CreateReward(_ context.Context, r reward.Reward) (reward.Reward, error) {
	return v.st.createReward(r)
}

func (v *txView) UpdateReward(_ context.Context, r reward.Reward) (reward.Reward, error) {
	return v.st.updateReward(r)
}

func (v *txView) GetReward(_ context.Context, id string) (reward.Reward, error) {
	return v.st.getReward(id)
}

func (v *txView) ListRewards(_ context.Context, familyID string) ([]reward.Reward, error) {
	return v.st.listRewards(familyID)
}

func (v *txView) CreateRedemption(_ context.Context, r reward.Redemption) (reward.Redemption, error) {
	return v.st.createRedemption(r)
}

func (v *txView) UpdateRedemption(_ context.Context, r reward.Redemption) (reward.Redemption, error) {
	return v.st.updateRedemption(r)
}

func (v *txView) GetRedemption(_ context.Context, id string) (reward.Redemption, error) {
	return v.st.getRedemption(id)
}

func (v *txView) ListRedemptions(_ context.Context, accountID string) ([]reward.Redemption, error) {
	return v.st.listRedemptions(accountID)
}

func (v *txView) CountRedemptionsSince(_ context.Context, accountID, rewardID string, since time.Time) (int, error) {
	return v.st.countRedemptionsSince(accountID, rewardID, since)
}

func (v *txView) CreateTree(_ context.Context, t tree.Tree) (tree.Tree, error) {
	return v.st.createTree(t)
}

func (v *txView) UpdateTree(_ context.Context, t tree.Tree) (tree.Tree, error) {
	return v.st.updateTree(t)
}

func (v *txView) GetTree(_ context.Context, id string) (tree.Tree, error) {
	return v.st.getTree(id)
}

func (v *txView) ActiveTree(_ context.Context, ownerID string) (tree.Tree, error) {
	return v.st.activeTree(ownerID)
}

func (v *txView) ListTrees(_ context.Context, ownerID string) ([]tree.Tree, error) {
	return v.st.listTrees(ownerID)
}

func (v *txView) GetCollection(_ context.Context, ownerID string) (tree.Collection, error) {
	return v.st.getCollection(ownerID)
}

func (v *txView) SaveCollection(_ context.Context, c tree.Collection) (tree.Collection, error) {
	return v.st.saveCollection(c)
}

func (v *txView) GetFeatureSettings(_ context.Context, familyID string) (feature.Settings, error) {
	return v.st.getFeatureSettings(familyID)
}

func (v *txView) SaveFeatureSettings(_ context.Context, s feature.Settings) (feature.Settings, error) {
	return v.st.saveFeatureSettings(s)
}

func (v *txView) GetSubscription(_ context.Context, familyID string) (feature.Subscription, error) {
	return v.st.getSubscription(familyID)
}

func (v *txView) SaveSubscription(_ context.Context, s feature.Subscription) (feature.Subscription, error) {
	return v.st.saveSubscription(s)
}

func (v *txView) CreateFeatureRequest(_ context.Context, r feature.Request) (feature.Request, error) {
	return v.st.createFeatureRequest(r)
}

func (v *txView) UpdateFeatureRequest(_ context.Context, r feature.Request) (feature.Request, error) {
	return v.st.updateFeatureRequest(r)
}

func (v *txView) GetFeatureRequest(_ context.Context, id string) (feature.Request, error) {
	return v.st.getFeatureRequest(id)
}

func (v *txView) ListFeatureRequests(_ context.Context, familyID string) ([]feature.Request, error) {
	return v.st.listFeatureRequests(familyID)
}
