package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
)

type createMemberRequest interface {
	GetFirstName() string
	GetLastName() string
	GetDocumentNumber() string
	GetEmail() string
	GetPhone() string
	GetActivity() entity.Activity
	GetMembershipStatus() entity.MembershipStatus
}

type listMembersRequest interface {
	GetHasActivity() bool
	GetActivity() entity.Activity
	GetHasStatus() bool
	GetStatus() entity.MembershipStatus
	GetSearch() string
	GetLimit() int32
	GetOffset() int32
}

type updateMemberStatusRequest interface {
	GetId() uint64
	GetStatus() entity.MembershipStatus
}

func (s *DuesService) CreateMember(ctx context.Context, req createMemberRequest) (*entity.Member, error) {
	firstName := strings.TrimSpace(req.GetFirstName())
	document := strings.TrimSpace(req.GetDocumentNumber())
	email := strings.TrimSpace(req.GetEmail())
	if firstName == "" || document == "" || email == "" {
		return nil, ErrInvalidRequest
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidRequest
	}
	if !req.GetActivity().Valid() {
		return nil, ErrInvalidRequest
	}

	status := req.GetMembershipStatus()
	if status == entity.MembershipStatusUnspecified {
		status = entity.MembershipStatusActive
	}
	if !status.Valid() {
		return nil, ErrInvalidRequest
	}

	now := s.now().UTC()
	member := &entity.Member{
		FirstName:        firstName,
		LastName:         strings.TrimSpace(req.GetLastName()),
		DocumentNumber:   document,
		Email:            email,
		Phone:            normalizeOptionalString(req.GetPhone()),
		Activity:         req.GetActivity(),
		MembershipStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrMemberAlreadyExists) {
			return nil, ErrMemberAlreadyExists
		}
		return nil, err
	}
	return member, nil
}

func (s *DuesService) GetMember(ctx context.Context, id uint64) (*entity.Member, error) {
	member, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

func (s *DuesService) ListMembers(ctx context.Context, req listMembersRequest) ([]*entity.Member, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.memberRepo.List(ctx, repository.MemberFilter{
		HasActivity: req.GetHasActivity(),
		Activity:    req.GetActivity(),
		HasStatus:   req.GetHasStatus(),
		Status:      req.GetStatus(),
		Search:      strings.TrimSpace(req.GetSearch()),
		Limit:       limit,
		Offset:      req.GetOffset(),
	})
}

func (s *DuesService) UpdateMemberStatus(ctx context.Context, req updateMemberStatusRequest) (*entity.Member, error) {
	if !req.GetStatus().Valid() {
		return nil, ErrInvalidRequest
	}

	member, err := s.GetMember(ctx, req.GetId())
	if err != nil {
		return nil, err
	}
	if member.MembershipStatus == req.GetStatus() {
		return member, nil
	}

	member.MembershipStatus = req.GetStatus()
	member.UpdatedAt = s.now().UTC()
	if err := s.memberRepo.Update(ctx, member); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

// DeleteMember removes the member and, by cascade, its settled dues. Members
// that still owe Pending or Overdue dues cannot be deleted.
func (s *DuesService) DeleteMember(ctx context.Context, id uint64) error {
	if _, err := s.GetMember(ctx, id); err != nil {
		return err
	}

	outstanding, err := s.duesRepo.CountOutstandingByMember(ctx, id)
	if err != nil {
		return err
	}
	if outstanding > 0 {
		return ErrMemberHasOutstandingDues
	}

	if err := s.memberRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
