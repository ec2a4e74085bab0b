// Package members manages family member records.
package members

import (
	"context"
	"strings"

	"github.com/familygrove/engine/internal/app/domain/member"
	"github.com/familygrove/engine/internal/app/storage"
	apperr "github.com/familygrove/engine/internal/errors"
	"github.com/familygrove/engine/pkg/logger"
)

// Service manages member records.
type Service struct {
	store storage.MemberStore
	log   *logger.Logger
}

// New constructs a members service.
func New(store storage.MemberStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("members")
	}
	return &Service{store: store, log: log}
}

// Create registers a new member.
func (s *Service) Create(ctx context.Context, familyID, name, role string) (member.Member, error) {
	familyID = strings.TrimSpace(familyID)
	name = strings.TrimSpace(name)

	if familyID == "" {
		return member.Member{}, apperr.Validation("family id is required")
	}
	if name == "" {
		return member.Member{}, apperr.Validation("name is required")
	}
	parsedRole, err := member.ParseRole(role)
	if err != nil {
		return member.Member{}, apperr.Validation("role must be parent or child")
	}

	m, err := s.store.CreateMember(ctx, member.Member{
		FamilyID: familyID,
		Name:     name,
		Role:     parsedRole,
	})
	if err != nil {
		return member.Member{}, err
	}

	s.log.WithField("member_id", m.ID).
		WithField("family_id", familyID).
		WithField("role", string(parsedRole)).
		Info("member created")
	return m, nil
}

// Rename updates a member's display name.
func (s *Service) Rename(ctx context.Context, id, name string) (member.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return member.Member{}, apperr.Validation("name is required")
	}

	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return member.Member{}, err
	}
	m.Name = name
	return s.store.UpdateMember(ctx, m)
}

// Get retrieves a member by id.
func (s *Service) Get(ctx context.Context, id string) (member.Member, error) {
	return s.store.GetMember(ctx, id)
}

// List returns a family's members.
func (s *Service) List(ctx context.Context, familyID string) ([]member.Member, error) {
	return s.store.ListMembers(ctx, familyID)
}
