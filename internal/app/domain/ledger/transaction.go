// Package ledger defines the append-only points transaction log. The log is
// the sole source of truth for balances; the running balance carried on each
// transaction is a derived cache that must always be recomputable from the
// signed amounts.
package ledger

import (
	"fmt"
	"time"
)

// Kind is the business reason for a transaction.
type Kind string

const (
	KindEarned     Kind = "earned"
	KindSpent      Kind = "spent"
	KindGifted     Kind = "gifted"
	KindBonus      Kind = "bonus"
	KindAdjustment Kind = "adjustment"
)

// ParseKind decodes a stored kind. An unknown stored value is reported as an
// error rather than falling back to a default, so corrupted rows surface
// instead of being masked.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindEarned, KindSpent, KindGifted, KindBonus, KindAdjustment:
		return Kind(raw), nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", raw)
	}
}

// Transaction is a single immutable row in the points ledger. Amount is
// signed: positive credits the account, negative debits it. Balance is the
// running balance after this transaction was applied.
type Transaction struct {
	ID              string
	AccountID       string
	Kind            Kind
	Amount          int64
	Balance         int64
	Reason          string
	RelatedTaskID   string
	RelatedRewardID string
	// TransferID links the debit and credit halves of a gift.
	TransferID string
	CreatedAt  time.Time
}
