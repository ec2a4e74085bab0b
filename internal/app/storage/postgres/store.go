// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/domain/reward"
	"github.com/familygrove/engine/internal/app/domain/task"
	"github.com/familygrove/engine/internal/app/domain/tree"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
)

// querier is the common surface of *sql.DB and *sql.Tx. All statements run
// through it so the same code serves direct calls and RunAtomically blocks.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements storage.Tx over a querier.
type queries struct {
	q querier
}

var _ storage.Tx = (*queries)(nil)

// Store adds transaction control on top of queries.
type Store struct {
	queries
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// RunAtomically executes fn inside one database transaction.
func (s *Store) RunAtomically(ctx context.Context, fn func(storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notFound translates the driver's empty-result error into the engine's
// not-found taxonomy so callers never depend on database/sql.
func notFound(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource, id)
	}
	return err
}

// --- MemberStore ------------------------------------------------------------

func (s *queries) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO family_members (id, family_id, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.FamilyID, m.Name, string(m.Role), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return member.Member{}, err
	}
	return m, nil
}

func (s *queries) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	existing, err := s.GetMember(ctx, m.ID)
	if err != nil {
		return member.Member{}, err
	}

	m.FamilyID = existing.FamilyID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE family_members
		SET name = $2, role = $3, updated_at = $4
		WHERE id = $1
	`, m.ID, m.Name, string(m.Role), m.UpdatedAt)
	if err != nil {
		return member.Member{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return member.Member{}, apperr.NotFound("member", m.ID)
	}
	return m, nil
}

func (s *queries) GetMember(ctx context.Context, id string) (member.Member, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, family_id, name, role, created_at, updated_at
		FROM family_members
		WHERE id = $1
	`, id)

	m, err := scanMember(row.Scan)
	if err != nil {
		return member.Member{}, notFound(err, "member", id)
	}
	return m, nil
}

func (s *queries) ListMembers(ctx context.Context, familyID string) ([]member.Member, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, family_id, name, role, created_at, updated_at
		FROM family_members
		WHERE $1 = '' OR family_id = $1
		ORDER BY created_at
	`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []member.Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanMember(scan func(...any) error) (member.Member, error) {
	var (
		m       member.Member
		roleRaw string
	)
	if err := scan(&m.ID, &m.FamilyID, &m.Name, &roleRaw, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return member.Member{}, err
	}
	role, err := member.ParseRole(roleRaw)
	if err != nil {
		return member.Member{}, err
	}
	m.Role = role
	return m, nil
}

// --- LedgerStore ------------------------------------------------------------

func (s *queries) AppendTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, account_id, kind, amount, balance, reason, related_task_id, related_reward_id, transfer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tx.ID, tx.AccountID, string(tx.Kind), tx.Amount, tx.Balance, tx.Reason, tx.RelatedTaskID, tx.RelatedRewardID, tx.TransferID, tx.CreatedAt)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func (s *queries) LatestTransaction(ctx context.Context, accountID string) (ledger.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, account_id, kind, amount, balance, reason, related_task_id, related_reward_id, transfer_id, created_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, accountID)

	tx, err := scanTransaction(row.Scan)
	if err != nil {
		return ledger.Transaction{}, notFound(err, "transaction for account", accountID)
	}
	return tx, nil
}

func (s *queries) ListTransactions(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, account_id, kind, amount, balance, reason, related_task_id, related_reward_id, transfer_id, created_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *queries) UpdateTransactionBalance(ctx context.Context, id string, balance int64) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE ledger_transactions SET balance = $2 WHERE id = $1
	`, id, balance)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound("transaction", id)
	}
	return nil
}

func scanTransaction(scan func(...any) error) (ledger.Transaction, error) {
	var (
		tx      ledger.Transaction
		kindRaw string
	)
	if err := scan(&tx.ID, &tx.AccountID, &kindRaw, &tx.Amount, &tx.Balance, &tx.Reason, &tx.RelatedTaskID, &tx.RelatedRewardID, &tx.TransferID, &tx.CreatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	kind, err := ledger.ParseKind(kindRaw)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.Kind = kind
	return tx, nil
}

// --- TaskStore --------------------------------------------------------------

func (s *queries) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks (id, family_id, title, point_value, assignee_id, frequency, status, due_date, requires_proof, proof, last_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.FamilyID, t.Title, t.PointValue, t.AssigneeID, string(t.Frequency), string(t.Status), toNullTime(t.DueDate), t.RequiresProof, t.Proof, toNullTime(t.LastCompleted), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *queries) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	existing, err := s.GetTask(ctx, t.ID)
	if err != nil {
		return task.Task{}, err
	}

	t.FamilyID = existing.FamilyID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, point_value = $3, assignee_id = $4, frequency = $5, status = $6, due_date = $7, requires_proof = $8, proof = $9, last_completed = $10, updated_at = $11
		WHERE id = $1
	`, t.ID, t.Title, t.PointValue, t.AssigneeID, string(t.Frequency), string(t.Status), toNullTime(t.DueDate), t.RequiresProof, t.Proof, toNullTime(t.LastCompleted), t.UpdatedAt)
	if err != nil {
		return task.Task{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, apperr.NotFound("task", t.ID)
	}
	return t, nil
}

func (s *queries) GetTask(ctx context.Context, id string) (task.Task, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, family_id, title, point_value, assignee_id, frequency, status, due_date, requires_proof, proof, last_completed, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`, id)

	t, err := scanTask(row.Scan)
	if err != nil {
		return task.Task{}, notFound(err, "task", id)
	}
	return t, nil
}

func (s *queries) ListTasks(ctx context.Context, familyID string) ([]task.Task, error) {
	return s.listTasks(ctx, `
		SELECT id, family_id, title, point_value, assignee_id, frequency, status, due_date, requires_proof, proof, last_completed, created_at, updated_at
		FROM tasks
		WHERE $1 = '' OR family_id = $1
		ORDER BY created_at
	`, familyID)
}

func (s *queries) ListTasksByAssignee(ctx context.Context, assigneeID string) ([]task.Task, error) {
	return s.listTasks(ctx, `
		SELECT id, family_id, title, point_value, assignee_id, frequency, status, due_date, requires_proof, proof, last_completed, created_at, updated_at
		FROM tasks
		WHERE assignee_id = $1
		ORDER BY created_at
	`, assigneeID)
}

func (s *queries) listTasks(ctx context.Context, query, arg string) ([]task.Task, error) {
	rows, err := s.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTask(scan func(...any) error) (task.Task, error) {
	var (
		t             task.Task
		frequencyRaw  string
		statusRaw     string
		dueDate       sql.NullTime
		lastCompleted sql.NullTime
	)
	if err := scan(&t.ID, &t.FamilyID, &t.Title, &t.PointValue, &t.AssigneeID, &frequencyRaw, &statusRaw, &dueDate, &t.RequiresProof, &t.Proof, &lastCompleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Task{}, err
	}
	frequency, err := task.ParseFrequency(frequencyRaw)
	if err != nil {
		return task.Task{}, err
	}
	status, err := task.ParseStatus(statusRaw)
	if err != nil {
		return task.Task{}, err
	}
	t.Frequency = frequency
	t.Status = status
	if dueDate.Valid {
		t.DueDate = dueDate.Time.UTC()
	}
	if lastCompleted.Valid {
		t.LastCompleted = lastCompleted.Time.UTC()
	}
	return t, nil
}

// --- RewardStore ------------------------------------------------------------

func (s *queries) CreateReward(ctx context.Context, r reward.Reward) (reward.Reward, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rewards (id, family_id, title, category, point_cost, validity_days, max_redemptions_per_week, total_redemptions, active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.ID, r.FamilyID, r.Title, r.Category, r.PointCost, r.ValidityDays, r.MaxRedemptionsPerWeek, r.TotalRedemptions, r.Active, toNullTime(r.ExpiresAt), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return reward.Reward{}, err
	}
	return r, nil
}

func (s *queries) UpdateReward(ctx context.Context, r reward.Reward) (reward.Reward, error) {
	existing, err := s.GetReward(ctx, r.ID)
	if err != nil {
		return reward.Reward{}, err
	}

	r.FamilyID = existing.FamilyID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE rewards
		SET title = $2, category = $3, point_cost = $4, validity_days = $5, max_redemptions_per_week = $6, total_redemptions = $7, active = $8, expires_at = $9, updated_at = $10
		WHERE id = $1
	`, r.ID, r.Title, r.Category, r.PointCost, r.ValidityDays, r.MaxRedemptionsPerWeek, r.TotalRedemptions, r.Active, toNullTime(r.ExpiresAt), r.UpdatedAt)
	if err != nil {
		return reward.Reward{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reward.Reward{}, apperr.NotFound("reward", r.ID)
	}
	return r, nil
}

func (s *queries) GetReward(ctx context.Context, id string) (reward.Reward, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, family_id, title, category, point_cost, validity_days, max_redemptions_per_week, total_redemptions, active, expires_at, created_at, updated_at
		FROM rewards
		WHERE id = $1
	`, id)

	r, err := scanReward(row.Scan)
	if err != nil {
		return reward.Reward{}, notFound(err, "reward", id)
	}
	return r, nil
}

func (s *queries) ListRewards(ctx context.Context, familyID string) ([]reward.Reward, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, family_id, title, category, point_cost, validity_days, max_redemptions_per_week, total_redemptions, active, expires_at, created_at, updated_at
		FROM rewards
		WHERE $1 = '' OR family_id = $1
		ORDER BY created_at
	`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.Reward
	for rows.Next() {
		r, err := scanReward(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanReward(scan func(...any) error) (reward.Reward, error) {
	var (
		r         reward.Reward
		expiresAt sql.NullTime
	)
	if err := scan(&r.ID, &r.FamilyID, &r.Title, &r.Category, &r.PointCost, &r.ValidityDays, &r.MaxRedemptionsPerWeek, &r.TotalRedemptions, &r.Active, &expiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return reward.Reward{}, err
	}
	if expiresAt.Valid {
		r.ExpiresAt = expiresAt.Time.UTC()
	}
	return r, nil
}

func (s *queries) CreateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now().UTC()
	}

	snapshotJSON, err := json.Marshal(r.Snapshot)
	if err != nil {
		return reward.Redemption{}, err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO reward_redemptions (id, reward_id, snapshot, redeemed_by, redeemed_at, expires_at, used_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.RewardID, snapshotJSON, r.RedeemedBy, r.RedeemedAt, toNullTime(r.ExpiresAt), toNullTime(r.UsedAt), r.Used)
	if err != nil {
		return reward.Redemption{}, err
	}
	return r, nil
}

func (s *queries) UpdateRedemption(ctx context.Context, r reward.Redemption) (reward.Redemption, error) {
	snapshotJSON, err := json.Marshal(r.Snapshot)
	if err != nil {
		return reward.Redemption{}, err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE reward_redemptions
		SET snapshot = $2, expires_at = $3, used_at = $4, used = $5
		WHERE id = $1
	`, r.ID, snapshotJSON, toNullTime(r.ExpiresAt), toNullTime(r.UsedAt), r.Used)
	if err != nil {
		return reward.Redemption{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reward.Redemption{}, apperr.NotFound("redemption", r.ID)
	}
	return r, nil
}

func (s *queries) GetRedemption(ctx context.Context, id string) (reward.Redemption, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, reward_id, snapshot, redeemed_by, redeemed_at, expires_at, used_at, used
		FROM reward_redemptions
		WHERE id = $1
	`, id)

	r, err := scanRedemption(row.Scan)
	if err != nil {
		return reward.Redemption{}, notFound(err, "redemption", id)
	}
	return r, nil
}

func (s *queries) ListRedemptions(ctx context.Context, accountID string) ([]reward.Redemption, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, reward_id, snapshot, redeemed_by, redeemed_at, expires_at, used_at, used
		FROM reward_redemptions
		WHERE $1 = '' OR redeemed_by = $1
		ORDER BY redeemed_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *queries) CountRedemptionsSince(ctx context.Context, accountID, rewardID string, since time.Time) (int, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM reward_redemptions
		WHERE redeemed_by = $1 AND reward_id = $2 AND redeemed_at >= $3
	`, accountID, rewardID, since)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanRedemption(scan func(...any) error) (reward.Redemption, error) {
	var (
		r           reward.Redemption
		snapshotRaw []byte
		expiresAt   sql.NullTime
		usedAt      sql.NullTime
	)
	if err := scan(&r.ID, &r.RewardID, &snapshotRaw, &r.RedeemedBy, &r.RedeemedAt, &expiresAt, &usedAt, &r.Used); err != nil {
		return reward.Redemption{}, err
	}
	if len(snapshotRaw) > 0 {
		if err := json.Unmarshal(snapshotRaw, &r.Snapshot); err != nil {
			return reward.Redemption{}, err
		}
	}
	if expiresAt.Valid {
		r.ExpiresAt = expiresAt.Time.UTC()
	}
	if usedAt.Valid {
		r.UsedAt = usedAt.Time.UTC()
	}
	return r, nil
}

// --- TreeStore --------------------------------------------------------------

func (s *queries) CreateTree(ctx context.Context, t tree.Tree) (tree.Tree, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.PlantedAt.IsZero() {
		t.PlantedAt = now
	}
	t.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO trees (id, owner_id, type, current_water, fully_grown, planted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.OwnerID, string(t.Type), t.CurrentWater, t.FullyGrown, t.PlantedAt, t.UpdatedAt)
	if err != nil {
		return tree.Tree{}, err
	}
	return t, nil
}

func (s *queries) UpdateTree(ctx context.Context, t tree.Tree) (tree.Tree, error) {
	t.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE trees
		SET current_water = $2, fully_grown = $3, updated_at = $4
		WHERE id = $1
	`, t.ID, t.CurrentWater, t.FullyGrown, t.UpdatedAt)
	if err != nil {
		return tree.Tree{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return tree.Tree{}, apperr.NotFound("tree", t.ID)
	}
	return t, nil
}

func (s *queries) GetTree(ctx context.Context, id string) (tree.Tree, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, type, current_water, fully_grown, planted_at, updated_at
		FROM trees
		WHERE id = $1
	`, id)

	t, err := scanTree(row.Scan)
	if err != nil {
		return tree.Tree{}, notFound(err, "tree", id)
	}
	return t, nil
}

func (s *queries) ActiveTree(ctx context.Context, ownerID string) (tree.Tree, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, type, current_water, fully_grown, planted_at, updated_at
		FROM trees
		WHERE owner_id = $1 AND NOT fully_grown
		ORDER BY planted_at DESC
		LIMIT 1
	`, ownerID)

	t, err := scanTree(row.Scan)
	if err != nil {
		return tree.Tree{}, notFound(err, "active tree for owner", ownerID)
	}
	return t, nil
}

func (s *queries) ListTrees(ctx context.Context, ownerID string) ([]tree.Tree, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, type, current_water, fully_grown, planted_at, updated_at
		FROM trees
		WHERE $1 = '' OR owner_id = $1
		ORDER BY planted_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []tree.Tree
	for rows.Next() {
		t, err := scanTree(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTree(scan func(...any) error) (tree.Tree, error) {
	var (
		t       tree.Tree
		typeRaw string
	)
	if err := scan(&t.ID, &t.OwnerID, &typeRaw, &t.CurrentWater, &t.FullyGrown, &t.PlantedAt, &t.UpdatedAt); err != nil {
		return tree.Tree{}, err
	}
	typ, err := tree.ParseType(typeRaw)
	if err != nil {
		return tree.Tree{}, err
	}
	t.Type = typ
	return t, nil
}

func (s *queries) GetCollection(ctx context.Context, ownerID string) (tree.Collection, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT owner_id, entries, level, updated_at
		FROM tree_collections
		WHERE owner_id = $1
	`, ownerID)

	var (
		c          tree.Collection
		entriesRaw []byte
	)
	if err := row.Scan(&c.OwnerID, &entriesRaw, &c.Level, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tree.Collection{OwnerID: ownerID, Level: tree.LevelFor(0)}, nil
		}
		return tree.Collection{}, err
	}
	if len(entriesRaw) > 0 {
		if err := json.Unmarshal(entriesRaw, &c.Entries); err != nil {
			return tree.Collection{}, err
		}
	}
	return c, nil
}

func (s *queries) SaveCollection(ctx context.Context, c tree.Collection) (tree.Collection, error) {
	c.UpdatedAt = time.Now().UTC()

	entriesJSON, err := json.Marshal(c.Entries)
	if err != nil {
		return tree.Collection{}, err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tree_collections (owner_id, entries, level, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE
		SET entries = EXCLUDED.entries, level = EXCLUDED.level, updated_at = EXCLUDED.updated_at
	`, c.OwnerID, entriesJSON, c.Level, c.UpdatedAt)
	if err != nil {
		return tree.Collection{}, err
	}
	return c, nil
}

// --- FeatureStore -----------------------------------------------------------

func (s *queries) GetFeatureSettings(ctx context.Context, familyID string) (feature.Settings, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT family_id, enabled, preset, updated_at
		FROM feature_settings
		WHERE family_id = $1
	`, familyID)

	var (
		set        feature.Settings
		enabledRaw []byte
	)
	if err := row.Scan(&set.FamilyID, &enabledRaw, &set.Preset, &set.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return feature.Settings{FamilyID: familyID, Enabled: feature.NewSet()}, nil
		}
		return feature.Settings{}, err
	}

	var names []string
	if len(enabledRaw) > 0 {
		if err := json.Unmarshal(enabledRaw, &names); err != nil {
			return feature.Settings{}, err
		}
	}
	set.Enabled = feature.NewSet()
	for _, name := range names {
		f, err := feature.Parse(name)
		if err != nil {
			return feature.Settings{}, err
		}
		set.Enabled[f] = true
	}
	return set, nil
}

func (s *queries) SaveFeatureSettings(ctx context.Context, set feature.Settings) (feature.Settings, error) {
	set.UpdatedAt = time.Now().UTC()

	enabledJSON, err := json.Marshal(set.Enabled.List())
	if err != nil {
		return feature.Settings{}, err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO feature_settings (family_id, enabled, preset, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (family_id) DO UPDATE
		SET enabled = EXCLUDED.enabled, preset = EXCLUDED.preset, updated_at = EXCLUDED.updated_at
	`, set.FamilyID, enabledJSON, set.Preset, set.UpdatedAt)
	if err != nil {
		return feature.Settings{}, err
	}
	return set, nil
}

func (s *queries) GetSubscription(ctx context.Context, familyID string) (feature.Subscription, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT family_id, grants, test_mode, updated_at
		FROM feature_subscriptions
		WHERE family_id = $1
	`, familyID)

	var (
		sub       feature.Subscription
		grantsRaw []byte
	)
	if err := row.Scan(&sub.FamilyID, &grantsRaw, &sub.TestMode, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return feature.Subscription{FamilyID: familyID}, nil
		}
		return feature.Subscription{}, err
	}
	if len(grantsRaw) > 0 {
		if err := json.Unmarshal(grantsRaw, &sub.Grants); err != nil {
			return feature.Subscription{}, err
		}
	}
	return sub, nil
}

func (s *queries) SaveSubscription(ctx context.Context, sub feature.Subscription) (feature.Subscription, error) {
	sub.UpdatedAt = time.Now().UTC()

	grantsJSON, err := json.Marshal(sub.Grants)
	if err != nil {
		return feature.Subscription{}, err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO feature_subscriptions (family_id, grants, test_mode, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (family_id) DO UPDATE
		SET grants = EXCLUDED.grants, test_mode = EXCLUDED.test_mode, updated_at = EXCLUDED.updated_at
	`, sub.FamilyID, grantsJSON, sub.TestMode, sub.UpdatedAt)
	if err != nil {
		return feature.Subscription{}, err
	}
	return sub, nil
}

func (s *queries) CreateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO feature_requests (id, family_id, requested_by, feature, reason, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.FamilyID, r.RequestedBy, string(r.Feature), r.Reason, string(r.Status), r.CreatedAt, toNullTime(r.ResolvedAt))
	if err != nil {
		return feature.Request{}, err
	}
	return r, nil
}

func (s *queries) UpdateFeatureRequest(ctx context.Context, r feature.Request) (feature.Request, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE feature_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1
	`, r.ID, string(r.Status), toNullTime(r.ResolvedAt))
	if err != nil {
		return feature.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return feature.Request{}, apperr.NotFound("feature request", r.ID)
	}
	return r, nil
}

func (s *queries) GetFeatureRequest(ctx context.Context, id string) (feature.Request, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, family_id, requested_by, feature, reason, status, created_at, resolved_at
		FROM feature_requests
		WHERE id = $1
	`, id)

	r, err := scanFeatureRequest(row.Scan)
	if err != nil {
		return feature.Request{}, notFound(err, "feature request", id)
	}
	return r, nil
}

func (s *queries) ListFeatureRequests(ctx context.Context, familyID string) ([]feature.Request, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, family_id, requested_by, feature, reason, status, created_at, resolved_at
		FROM feature_requests
		WHERE $1 = '' OR family_id = $1
		ORDER BY created_at
	`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []feature.Request
	for rows.Next() {
		r, err := scanFeatureRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanFeatureRequest(scan func(...any) error) (feature.Request, error) {
	var (
		r          feature.Request
		featureRaw string
		statusRaw  string
		resolvedAt sql.NullTime
	)
	if err := scan(&r.ID, &r.FamilyID, &r.RequestedBy, &featureRaw, &r.Reason, &statusRaw, &r.CreatedAt, &resolvedAt); err != nil {
		return feature.Request{}, err
	}
	f, err := feature.Parse(featureRaw)
	if err != nil {
		return feature.Request{}, err
	}
	r.Feature = f
	status, err := feature.ParseRequestStatus(statusRaw)
	if err != nil {
		return feature.Request{}, err
	}
	r.Status = status
	if resolvedAt.Valid {
		r.ResolvedAt = resolvedAt.Time.UTC()
	}
	return r, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
