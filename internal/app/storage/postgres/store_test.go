package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"

	"github.com/familygrove/engine/internal/app/domain/ledger"
	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
)

func TestGetMemberNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, family_id, name, role, created_at, updated_at")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := New(db)
	_, err = store.GetMember(context.Background(), "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMemberRejectsUnknownRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "family_id", "name", "role", "created_at", "updated_at"}).
		AddRow("m1", "f1", "Ana", "grandparent", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM family_members")).
		WithArgs("m1").
		WillReturnRows(rows)

	store := New(db)
	if _, err := store.GetMember(context.Background(), "m1"); err == nil {
		t.Fatalf("expected decode error for unknown role")
	}
}

func TestRunAtomicallyCommitsAndRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_transactions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := New(db)
	ctx := context.Background()
	err = store.RunAtomically(ctx, func(tx storage.Tx) error {
		_, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindEarned, Amount: 50, Balance: 50})
		return err
	})
	if err != nil {
		t.Fatalf("atomic commit: %v", err)
	}

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_transactions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err = store.RunAtomically(ctx, func(tx storage.Tx) error {
		if _, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: "m1", Kind: ledger.KindSpent, Amount: -30, Balance: 20}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	m, err := store.CreateMember(ctx, member.Member{FamilyID: "f1", Name: "Ana", Role: member.RoleParent})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	if _, err := store.AppendTransaction(ctx, ledger.Transaction{
		AccountID: m.ID,
		Kind:      ledger.KindEarned,
		Amount:    50,
		Balance:   50,
		Reason:    "chores",
	}); err != nil {
		t.Fatalf("append transaction: %v", err)
	}

	latest, err := store.LatestTransaction(ctx, m.ID)
	if err != nil {
		t.Fatalf("latest transaction: %v", err)
	}
	if latest.Balance != 50 {
		t.Fatalf("unexpected balance: %+v", latest)
	}
}
