// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/domain/task"
	"github.com/familygrove/engine/internal/app/domain/tree"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
)

// state holds every table. All access goes through Store's mutex; txView
// reuses the same methods while the transaction already holds the lock.
type state struct {
	nextID           int64
	members          map[string]member.Member
	transactions     map[string][]ledger.Transaction
	transactionsByID map[string]ledger.Transaction
	tasks            map[string]task.Task
	rewards          map[string]reward.Reward
	redemptions      map[string]reward.Redemption
	trees            map[string]tree.Tree
	collections      map[string]tree.Collection
	featureSettings  map[string]feature.Settings
	subscriptions    map[string]feature.Subscription
	featureRequests  map[string]feature.Request
}

func newState() *state {
	return &state{
		nextID:           1,
		members:          make(map[string]member.Member),
		transactions:     make(map[string][]ledger.Transaction),
		transactionsByID: make(map[string]ledger.Transaction),
		tasks:            make(map[string]task.Task),
		rewards:          make(map[string]reward.Reward),
		redemptions:      make(map[string]reward.Redemption),
		trees:            make(map[string]tree.Tree),
		collections:      make(map[string]tree.Collection),
		featureSettings:  make(map[string]feature.Settings),
		subscriptions:    make(map[string]feature.Subscription),
		featureRequests:  make(map[string]feature.Request),
	}
}

// clone deep-copies the state so a failed transaction can restore it.
func (st *state) clone() *state {
	out := &state{
		nextID:           st.nextID,
		members:          make(map[string]member.Member, len(st.members)),
		transactions:     make(map[string][]ledger.Transaction, len(st.transactions)),
		transactionsByID: make(map[string]ledger.Transaction, len(st.transactionsByID)),
		tasks:            make(map[string]task.Task, len(st.tasks)),
		rewards:          make(map[string]reward.Reward, len(st.rewards)),
		redemptions:      make(map[string]reward.Redemption, len(st.redemptions)),
		trees:            make(map[string]tree.Tree, len(st.trees)),
		collections:      make(map[string]tree.Collection, len(st.collections)),
		featureSettings:  make(map[string]feature.Settings, len(st.featureSettings)),
		subscriptions:    make(map[string]feature.Subscription, len(st.subscriptions)),
		featureRequests:  make(map[string]feature.Request, len(st.featureRequests)),
	}
	for k, v := range st.members {
		out.members[k] = v
	}
	for k, v := range st.transactions {
		out.transactions[k] = append([]ledger.Transaction(nil), v...)
	}
	for k, v := range st.transactionsByID {
		out.transactionsByID[k] = v
	}
	for k, v := range st.tasks {
		out.tasks[k] = v
	}
	for k, v := range st.rewards {
		out.rewards[k] = v
	}
	for k, v := range st.redemptions {
		out.redemptions[k] = v
	}
	for k, v := range st.trees {
		out.trees[k] = v
	}
	for k, v := range st.collections {
		out.collections[k] = cloneCollection(v)
	}
	for k, v := range st.featureSettings {
		out.featureSettings[k] = cloneSettings(v)
	}
	for k, v := range st.subscriptions {
		out.subscriptions[k] = cloneSubscription(v)
	}
	for k, v := range st.featureRequests {
		out.featureRequests[k] = v
	}
	return out
}

func (st *state) nextIDLocked() string {
	id := st.nextID
	st.nextID++
	return fmt.Sprintf("%d", id)
}

// Store is the locked front over state.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// RunAtomically executes fn against a transactional view under the write
// lock. Any error from fn restores the pre-transaction state. Not reentrant:
// fn must not call back into the Store, only into the Tx it is given.
func (s *Store) RunAtomically(_ context.Context, fn func(storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txView{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// MemberStore implementation --------------------------------------------------

func (s *Store) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createMember(m)
}

func (s *Store) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateMember(m)
}

func (s *Store) GetMember(ctx context.Context, id string) (member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getMember(id)
}

func (s *Store) ListMembers(ctx context.Context, familyID string) ([]member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listMembers(familyID)
}

func (st *state) createMember(m member.Member) (member.Member, error) {
	if m.ID == "" {
		m.ID = st.nextIDLocked()
	} else if _, exists := st.members[m.ID]; exists {
		return member.Member{}, apperr.Validation("member %s already exists", m.ID)
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	st.members[m.ID] = m
	return m, nil
}

func (st *state) updateMember(m member.Member) (member.Member, error) {
	original, ok := st.members[m.ID]
	if !ok {
		return member.Member{}, apperr.NotFound("member", m.ID)
	}

	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	st.members[m.ID] = m
	return m, nil
}

func (st *state) getMember(id string) (member.Member, error) {
	m, ok := st.members[id]
	if !ok {
		return member.Member{}, apperr.NotFound("member", id)
	}
	return m, nil
}

func (st *state) listMembers(familyID string) ([]member.Member, error) {
	result := make([]member.Member, 0)
	for _, m := range st.members {
		if familyID == "" || m.FamilyID == familyID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.appendTransaction(tx)
}

func (s *Store) LatestTransaction(ctx context.Context, accountID string) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.latestTransaction(accountID)
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listTransactions(accountID)
}

func (s *Store) UpdateTransactionBalance(ctx context.Context, id string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateTransactionBalance(id, balance)
}

func (st *state) appendTransaction(tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = st.nextIDLocked()
	} else if _, exists := st.transactionsByID[tx.ID]; exists {
		return ledger.Transaction{}, apperr.Validation("transaction %s already exists", tx.ID)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	st.transactions[tx.AccountID] = append(st.transactions[tx.AccountID], tx)
	st.transactionsByID[tx.ID] = tx
	return tx, nil
}

func (st *state) latestTransaction(accountID string) (ledger.Transaction, error) {
	entries := st.transactions[accountID]
	if len(entries) == 0 {
		return ledger.Transaction{}, apperr.NotFound("transaction for account", accountID)
	}
	return entries[len(entries)-1], nil
}

func (st *state) listTransactions(accountID string) ([]ledger.Transaction, error) {
	return append([]ledger.Transaction(nil), st.transactions[accountID]...), nil
}

func (st *state) updateTransactionBalance(id string, balance int64) error {
	tx, ok := st.transactionsByID[id]
	if !ok {
		return apperr.NotFound("transaction", id)
	}
	tx.Balance = balance
	st.transactionsByID[id] = tx
	entries := st.transactions[tx.AccountID]
	for i := range entries {
		if entries[i].ID == id {
			entries[i] = tx
			break
		}
	}
	return nil
}

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createTask(t)
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateTask(t)
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getTask(id)
}

func (s *Store) ListTasks(ctx context.Context, familyID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listTasks(familyID)
}

func (s *Store) ListTasksByAssignee(ctx context.Context, assigneeID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listTasksByAssignee(assigneeID)
}

func (st *state) createTask(t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = st.nextIDLocked()
	} else if _, exists := st.tasks[t.ID]; exists {
		return task.Task{}, apperr.Validation("task %s already exists", t.ID)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	st.tasks[t.ID] = t
	return t, nil
}

func (st *state) updateTask(t task.Task) (task.Task, error) {
	original, ok := st.tasks[t.ID]
	if !ok {
		return task.Task{}, apperr.NotFound("task", t.ID)
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	st.tasks[t.ID] = t
	return t, nil
}

func (st *state) getTask(id string) (task.Task, error) {
	t, ok := st.tasks[id]
	if !ok {
		return task.Task{}, apperr.NotFound("task", id)
	}
	return t, nil
}

func (st *state) listTasks(familyID string) ([]task.Task, error) {
	result := make([]task.Task, 0)
	for _, t := range st.tasks {
		if familyID == "" || t.FamilyID == familyID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (st *state) listTasksByAssignee(assigneeID string) ([]task.Task, error) {
	result := make([]task.Task, 0)
	for _, t := range st.tasks {
		if t.AssigneeID == assigneeID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// RewardStore implementation --------------------------------------------------

func (s *Store) CreateReward(ctx context.Context, r reward.Reward) (reward.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createReward(r)
}

func (s *Store) UpdateReward(ctx context.Context, r reward.Reward) (reward.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateReward(r)
}

func (s *Store) GetReward(ctx context.Context, id string) (reward.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getReward(id)
}

func (s *Store) ListRewards(ctx context.Context, familyID string) ([]reward.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listRewards(familyID)
}

func (s *Store) CreateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createRedemption(r)
}

func (s *Store) UpdateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateRedemption(r)
}

func (s *Store) GetRedemption(ctx context.Context, id string) (reward.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getRedemption(id)
}

func (s *Store) ListRedemptions(ctx context.Context, accountID string) ([]reward.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listRedemptions(accountID)
}

func (s *Store) CountRedemptionsSince(ctx context.Context, accountID, rewardID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.countRedemptionsSince(accountID, rewardID, since)
}

func (st *state) createReward(r reward.Reward) (reward.Reward, error) {
	if r.ID == "" {
		r.ID = st.nextIDLocked()
	} else if _, exists := st.rewards[r.ID]; exists {
		return reward.Reward{}, apperr.Validation("reward %s already exists", r.ID)
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	st.rewards[r.ID] = r
	return r, nil
}

func (st *state) updateReward(r reward.Reward) (reward.Reward, error) {
	original, ok := st.rewards[r.ID]
	if !ok {
		return reward.Reward{}, apperr.NotFound("reward", r.ID)
	}

	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	st.rewards[r.ID] = r
	return r, nil
}

func (st *state) getReward(id string) (reward.Reward, error) {
	r, ok := st.rewards[id]
	if !ok {
		return reward.Reward{}, apperr.NotFound("reward", id)
	}
	return r, nil
}

func (st *state) listRewards(familyID string) ([]reward.Reward, error) {
	result := make([]reward.Reward, 0)
	for _, r := range st.rewards {
		if familyID == "" || r.FamilyID == familyID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (st *state) createRedemption(r reward.Redemption) (reward.Redemption, error) {
	if r.ID == "" {
		r.ID = st.nextIDLocked()
	} else if _, exists := st.redemptions[r.ID]; exists {
		return reward.Redemption{}, apperr.Validation("redemption %s already exists", r.ID)
	}
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now().UTC()
	}

	st.redemptions[r.ID] = r
	return r, nil
}

func (st *state) updateRedemption(r reward.Redemption) (reward.Redemption, error) {
	if _, ok := st.redemptions[r.ID]; !ok {
		return reward.Redemption{}, apperr.NotFound("redemption", r.ID)
	}
	st.redemptions[r.ID] = r
	return r, nil
}

func (st *state) getRedemption(id string) (reward.Redemption, error) {
	r, ok := st.redemptions[id]
	if !ok {
		return reward.Redemption{}, apperr.NotFound("redemption", id)
	}
	return r, nil
}

func (st *state) listRedemptions(accountID string) ([]reward.Redemption, error) {
	result := make([]reward.Redemption, 0)
	for _, r := range st.redemptions {
		if accountID == "" || r.RedeemedBy == accountID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RedeemedAt.Equal(result[j].RedeemedAt) {
			return result[i].RedeemedAt.Before(result[j].RedeemedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (st *state) countRedemptionsSince(accountID, rewardID string, since time.Time) (int, error) {
	count := 0
	for _, r := range st.redemptions {
		if r.RedeemedBy == accountID && r.RewardID == rewardID && !r.RedeemedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// TreeStore implementation ----------------------------------------------------

func (s *Store) CreateTree(ctx context.Context, t tree.Tree) (tree.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createTree(t)
}

func (s *Store) UpdateTree(ctx context.Context, t tree.Tree) (tree.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateTree(t)
}

func (s *Store) GetTree(ctx context.Context, id string) (tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getTree(id)
}

func (s *Store) ActiveTree(ctx context.Context, ownerID string) (tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.activeTree(ownerID)
}

func (s *Store) ListTrees(ctx context.Context, ownerID string) ([]tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listTrees(ownerID)
}

func (s *Store) GetCollection(ctx context.Context, ownerID string) (tree.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getCollection(ownerID)
}

func (s *Store) SaveCollection(ctx context.Context, c tree.Collection) (tree.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.saveCollection(c)
}

func (st *state) createTree(t tree.Tree) (tree.Tree, error) {
	if t.ID == "" {
		t.ID = st.nextIDLocked()
	} else if _, exists := st.trees[t.ID]; exists {
		return tree.Tree{}, apperr.Validation("tree %s already exists", t.ID)
	}

	now := time.Now().UTC()
	if t.PlantedAt.IsZero() {
		t.PlantedAt = now
	}
	t.UpdatedAt = now

	st.trees[t.ID] = t
	return t, nil
}

func (st *state) updateTree(t tree.Tree) (tree.Tree, error) {
	original, ok := st.trees[t.ID]
	if !ok {
		return tree.Tree{}, apperr.NotFound("tree", t.ID)
	}

	t.PlantedAt = original.PlantedAt
	t.UpdatedAt = time.Now().UTC()

	st.trees[t.ID] = t
	return t, nil
}

func (st *state) getTree(id string) (tree.Tree, error) {
	t, ok := st.trees[id]
	if !ok {
		return tree.Tree{}, apperr.NotFound("tree", id)
	}
	return t, nil
}

func (st *state) activeTree(ownerID string) (tree.Tree, error) {
	for _, t := range st.trees {
		if t.OwnerID == ownerID && !t.FullyGrown {
			return t, nil
		}
	}
	return tree.Tree{}, apperr.NotFound("active tree for owner", ownerID)
}

func (st *state) listTrees(ownerID string) ([]tree.Tree, error) {
	result := make([]tree.Tree, 0)
	for _, t := range st.trees {
		if ownerID == "" || t.OwnerID == ownerID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PlantedAt.Equal(result[j].PlantedAt) {
			return result[i].PlantedAt.Before(result[j].PlantedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (st *state) getCollection(ownerID string) (tree.Collection, error) {
	c, ok := st.collections[ownerID]
	if !ok {
		return tree.Collection{OwnerID: ownerID, Level: tree.LevelFor(0)}, nil
	}
	return cloneCollection(c), nil
}

func (st *state) saveCollection(c tree.Collection) (tree.Collection, error) {
	c.UpdatedAt = time.Now().UTC()
	st.collections[c.OwnerID] = cloneCollection(c)
	return c, nil
}

// FeatureStore implementation -------------------------------------------------

func (s *Store) GetFeatureSettings(ctx context.Context, familyID string) (feature.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getFeatureSettings(familyID)
}

func (s *Store) SaveFeatureSettings(ctx context.Context, set feature.Settings) (feature.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.saveFeatureSettings(set)
}

func (s *Store) GetSubscription(ctx context.Context, familyID string) (feature.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getSubscription(familyID)
}

func (s *Store) SaveSubscription(ctx context.Context, sub feature.Subscription) (feature.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.saveSubscription(sub)
}

func (s *Store) CreateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createFeatureRequest(r)
}

func (s *Store) UpdateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateFeatureRequest(r)
}

func (s *Store) GetFeatureRequest(ctx context.Context, id string) (feature.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getFeatureRequest(id)
}

func (s *Store) ListFeatureRequests(ctx context.Context, familyID string) ([]feature.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listFeatureRequests(familyID)
}

func (st *state) getFeatureSettings(familyID string) (feature.Settings, error) {
	set, ok := st.featureSettings[familyID]
	if !ok {
		return feature.Settings{FamilyID: familyID, Enabled: feature.NewSet()}, nil
	}
	return cloneSettings(set), nil
}

func (st *state) saveFeatureSettings(set feature.Settings) (feature.Settings, error) {
	set.UpdatedAt = time.Now().UTC()
	st.featureSettings[set.FamilyID] = cloneSettings(set)
	return set, nil
}

func (st *state) getSubscription(familyID string) (feature.Subscription, error) {
	sub, ok := st.subscriptions[familyID]
	if !ok {
		return feature.Subscription{FamilyID: familyID}, nil
	}
	return cloneSubscription(sub), nil
}

func (st *state) saveSubscription(sub feature.Subscription) (feature.Subscription, error) {
	sub.UpdatedAt = time.Now().UTC()
	st.subscriptions[sub.FamilyID] = cloneSubscription(sub)
	return sub, nil
}

func (st *state) createFeatureRequest(r feature.Request) (feature.Request, error) {
	if r.ID == "" {
		r.ID = st.nextIDLocked()
	} else if _, exists := st.featureRequests[r.ID]; exists {
		return feature.Request{}, apperr.Validation("feature request %s already exists", r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	st.featureRequests[r.ID] = r
	return r, nil
}

func (st *state) updateFeatureRequest(r feature.Request) (feature.Request, error) {
	original, ok := st.featureRequests[r.ID]
	if !ok {
		return feature.Request{}, apperr.NotFound("feature request", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	st.featureRequests[r.ID] = r
	return r, nil
}

func (st *state) getFeatureRequest(id string) (feature.Request, error) {
	r, ok := st.featureRequests[id]
	if !ok {
		return feature.Request{}, apperr.NotFound("feature request", id)
	}
	return r, nil
}

func (st *state) listFeatureRequests(familyID string) ([]feature.Request, error) {
	result := make([]feature.Request, 0)
	for _, r := range st.featureRequests {
		if familyID == "" || r.FamilyID == familyID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Helpers ---------------------------------------------------------------------

func cloneCollection(c tree.Collection) tree.Collection {
	c.Entries = append([]tree.CollectionEntry(nil), c.Entries...)
	return c
}

func cloneSettings(s feature.Settings) feature.Settings {
	s.Enabled = s.Enabled.Clone()
	return s
}

func cloneSubscription(s feature.Subscription) feature.Subscription {
	s.Grants = append([]feature.Grant(nil), s.Grants...)
	return s
}
