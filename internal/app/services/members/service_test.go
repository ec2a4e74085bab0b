package members

import (
	"context"
	"testing"

	"github.com/familygrove/engine/internal/app/storage/memory"
	apperr "github.com/familygrove/engine/internal/errors"
)

func TestCreateValidatesInput(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "Ana", "parent"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for missing family, got %v", err)
	}
	if _, err := svc.Create(ctx, "f1", "  ", "parent"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := svc.Create(ctx, "f1", "Ana", "grandparent"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
}

func TestCreateRenameAndList(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, "f1", "Ana", "parent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	renamed, err := svc.Rename(ctx, m.ID, "Ana Maria")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Ana Maria" {
		t.Fatalf("unexpected name: %+v", renamed)
	}

	if _, err := svc.Create(ctx, "f1", "Ben", "child"); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := svc.List(ctx, "f1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 members, got %d", len(list))
	}
}
