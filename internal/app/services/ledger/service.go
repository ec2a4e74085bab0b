// Package ledger implements the points economy. Every balance change is an
// appended transaction; balances are never stored as mutable counters.
package ledger

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/events"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Append writes one transaction through the given Tx, deriving the running
// balance from the account's latest entry. A debit that would take the
// balance negative fails without writing. Services compose Append inside
// RunAtomically so a task approval or redemption and its ledger entry commit
// together.
func Append(ctx context.Context, tx storage.Tx, entry ledger.Transaction) (ledger.Transaction, error) {
	if entry.AccountID == "" {
		return ledger.Transaction{}, apperr.Validation("account id is required")
	}
	if entry.Amount == 0 {
		return ledger.Transaction{}, apperr.Validation("amount must be non-zero")
	}

	var balance int64
	latest, err := tx.LatestTransaction(ctx, entry.AccountID)
	switch {
	case err == nil:
		balance = latest.Balance
	case apperr.IsCode(err, apperr.CodeNotFound):
		balance = 0
	default:
		return ledger.Transaction{}, err
	}

	newBalance := balance + entry.Amount
	if newBalance < 0 {
		return ledger.Transaction{}, apperr.InsufficientBalance(balance, -entry.Amount)
	}

	entry.Balance = newBalance
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return tx.AppendTransaction(ctx, entry)
}

// accountLocks hands out one mutex per account id so concurrent operations on
// the same balance serialize while different accounts proceed in parallel.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (a *accountLocks) get(id string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	l, ok := a.locks[id]
	if !ok {
		l = &sync.Mutex{}
		a.locks[id] = l
	}
	return l
}

// Service exposes the ledger operations.
type Service struct {
	members storage.MemberStore
	store   storage.Store
	bus     *events.Bus
	log     *logger.Logger
	locks   accountLocks
}

// New constructs a ledger service.
func New(members storage.MemberStore, store storage.Store, bus *events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{
		members: members,
		store:   store,
		bus:     bus,
		log:     log,
	}
}

// WithAccount runs fn while holding the per-account locks for every given id.
// Lock order is ascending by id so concurrent multi-account operations cannot
// deadlock. Other services use it to bracket their own atomic blocks that
// touch a balance.
func (s *Service) WithAccount(fn func() error, accountIDs ...string) error {
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	locked := make([]*sync.Mutex, 0, len(ids))
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		l := s.locks.get(id)
		l.Lock()
		locked = append(locked, l)
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}()
	return fn()
}

func (s *Service) checkMember(ctx context.Context, accountID string) error {
	if s.members == nil {
		return nil
	}
	if _, err := s.members.GetMember(ctx, accountID); err != nil {
		return err
	}
	return nil
}

func (s *Service) publishBalance(accountID string, tx ledger.Transaction) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      events.TypeBalanceChanged,
		AccountID: accountID,
		EntityID:  tx.ID,
		Payload: map[string]string{
			"kind":    string(tx.Kind),
			"amount":  strconv.FormatInt(tx.Amount, 10),
			"balance": strconv.FormatInt(tx.Balance, 10),
		},
	})
}

// Earn credits points to an account.
func (s *Service) Earn(ctx context.Context, accountID string, amount int64, reason, relatedTaskID string) (ledger.Transaction, error) {
	return s.credit(ctx, accountID, ledger.KindEarned, amount, reason, relatedTaskID)
}

// Bonus credits points outside the task flow, e.g. a parent's spot award.
func (s *Service) Bonus(ctx context.Context, accountID string, amount int64, reason string) (ledger.Transaction, error) {
	return s.credit(ctx, accountID, ledger.KindBonus, amount, reason, "")
}

func (s *Service) credit(ctx context.Context, accountID string, kind ledger.Kind, amount int64, reason, relatedTaskID string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, apperr.Validation("amount must be positive")
	}
	if err := s.checkMember(ctx, accountID); err != nil {
		return ledger.Transaction{}, err
	}

	var tx ledger.Transaction
	err := s.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			var err error
			tx, err = Append(ctx, st, ledger.Transaction{
				AccountID:     accountID,
				Kind:          kind,
				Amount:        amount,
				Reason:        strings.TrimSpace(reason),
				RelatedTaskID: relatedTaskID,
			})
			return err
		})
	}, accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.log.WithField("account_id", accountID).
		WithField("amount", amount).
		WithField("balance", tx.Balance).
		Infof("points %s", kind)
	s.publishBalance(accountID, tx)
	return tx, nil
}

// Spend debits points from an account. The debit fails when the balance is
// below the amount.
func (s *Service) Spend(ctx context.Context, accountID string, amount int64, reason, relatedRewardID string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, apperr.Validation("amount must be positive")
	}
	if err := s.checkMember(ctx, accountID); err != nil {
		return ledger.Transaction{}, err
	}

	var tx ledger.Transaction
	err := s.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			var err error
			tx, err = Append(ctx, st, ledger.Transaction{
				AccountID:       accountID,
				Kind:            ledger.KindSpent,
				Amount:          -amount,
				Reason:          strings.TrimSpace(reason),
				RelatedRewardID: relatedRewardID,
			})
			return err
		})
	}, accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.log.WithField("account_id", accountID).
		WithField("amount", amount).
		WithField("balance", tx.Balance).
		Info("points spent")
	s.publishBalance(accountID, tx)
	return tx, nil
}

// Gift moves points between two accounts as a linked debit/credit pair. The
// pair shares a transfer id and commits atomically; the sender must cover the
// amount.
func (s *Service) Gift(ctx context.Context, fromID, toID string, amount int64, reason string) (ledger.Transaction, ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, ledger.Transaction{}, apperr.Validation("amount must be positive")
	}
	if fromID == toID {
		return ledger.Transaction{}, ledger.Transaction{}, apperr.Validation("cannot gift points to the same account")
	}
	if err := s.checkMember(ctx, fromID); err != nil {
		return ledger.Transaction{}, ledger.Transaction{}, err
	}
	if err := s.checkMember(ctx, toID); err != nil {
		return ledger.Transaction{}, ledger.Transaction{}, err
	}

	transferID := uuid.NewString()
	reason = strings.TrimSpace(reason)

	var debit, credit ledger.Transaction
	err := s.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			var err error
			debit, err = Append(ctx, st, ledger.Transaction{
				AccountID:  fromID,
				Kind:       ledger.KindGifted,
				Amount:     -amount,
				Reason:     reason,
				TransferID: transferID,
			})
			if err != nil {
				return err
			}
			credit, err = Append(ctx, st, ledger.Transaction{
				AccountID:  toID,
				Kind:       ledger.KindGifted,
				Amount:     amount,
				Reason:     reason,
				TransferID: transferID,
			})
			return err
		})
	}, fromID, toID)
	if err != nil {
		return ledger.Transaction{}, ledger.Transaction{}, err
	}

	s.log.WithField("from", fromID).
		WithField("to", toID).
		WithField("amount", amount).
		WithField("transfer_id", transferID).
		Info("points gifted")
	s.publishBalance(fromID, debit)
	s.publishBalance(toID, credit)
	return debit, credit, nil
}

// Adjust applies a signed parent correction to an account. Negative
// adjustments still cannot take the balance below zero.
func (s *Service) Adjust(ctx context.Context, accountID string, amount int64, reason string) (ledger.Transaction, error) {
	if amount == 0 {
		return ledger.Transaction{}, apperr.Validation("amount must be non-zero")
	}
	if err := s.checkMember(ctx, accountID); err != nil {
		return ledger.Transaction{}, err
	}

	var tx ledger.Transaction
	err := s.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			var err error
			tx, err = Append(ctx, st, ledger.Transaction{
				AccountID: accountID,
				Kind:      ledger.KindAdjustment,
				Amount:    amount,
				Reason:    strings.TrimSpace(reason),
			})
			return err
		})
	}, accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.log.WithField("account_id", accountID).
		WithField("amount", amount).
		WithField("balance", tx.Balance).
		Info("balance adjusted")
	s.publishBalance(accountID, tx)
	return tx, nil
}

// BalanceOf returns the current balance. Accounts with no history have
// balance zero.
func (s *Service) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	latest, err := s.store.LatestTransaction(ctx, accountID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest.Balance, nil
}

// History returns an account's transactions newest first, bounded by limit
// when positive.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	history, err := s.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// Recompute replays an account's transactions oldest first and rewrites any
// cached running balance that disagrees with the replay. It returns the final
// balance and the number of rows corrected.
func (s *Service) Recompute(ctx context.Context, accountID string) (int64, int, error) {
	var balance int64
	var fixed int
	err := s.WithAccount(func() error {
		return s.store.RunAtomically(ctx, func(st storage.Tx) error {
			history, err := st.ListTransactions(ctx, accountID)
			if err != nil {
				return err
			}
			balance = 0
			fixed = 0
			for _, tx := range history {
				balance += tx.Amount
				if tx.Balance != balance {
					if err := st.UpdateTransactionBalance(ctx, tx.ID, balance); err != nil {
						return err
					}
					fixed++
				}
			}
			return nil
		})
	}, accountID)
	if err != nil {
		return 0, 0, err
	}

	if fixed > 0 {
		s.log.WithField("account_id", accountID).
			WithField("corrected", fixed).
			WithField("balance", balance).
			Warn("ledger balances recomputed")
	}
	return balance, fixed, nil
}
