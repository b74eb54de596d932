package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/arenahub/esports-ops/config"
	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

type InviteService interface {
	CreateInvite(ctx context.Context, teamID, actorID int) (*models.Invite, error)
	AcceptInvite(ctx context.Context, token string, userID int) (*models.TeamMember, error)
	ListByTeam(ctx context.Context, teamID, actorID int) ([]*models.Invite, error)
	RevokeInvite(ctx context.Context, teamID, actorID, inviteID int) error
	// CleanupExpired удаляет просроченные приглашения. Вызывается
	// планировщиком из main.
	CleanupExpired(ctx context.Context) (int64, error)
}

type inviteService struct {
	inviteRepo repositories.InviteRepository
	teamRepo   repositories.TeamRepository
	cfg        config.TeamConfig
	now        func() time.Time
}

func NewInviteService(
	inviteRepo repositories.InviteRepository,
	teamRepo repositories.TeamRepository,
	cfg config.TeamConfig,
) InviteService {
	return &inviteService{
		inviteRepo: inviteRepo,
		teamRepo:   teamRepo,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *inviteService) CreateInvite(ctx context.Context, teamID, actorID int) (*models.Invite, error) {
	if err := s.requireManagement(ctx, teamID, actorID); err != nil {
		return nil, err
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	invite := &models.Invite{
		TeamID:    teamID,
		Token:     token,
		ExpiresAt: s.now().Add(s.cfg.InviteTTL),
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		if errors.Is(err, repositories.ErrInviteTeamInvalid) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return invite, nil
}

// AcceptInvite добавляет пользователя активным игроком и гасит приглашение.
func (s *inviteService) AcceptInvite(ctx context.Context, token string, userID int) (*models.TeamMember, error) {
	invite, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	if s.now().After(invite.ExpiresAt) {
		return nil, NewValidationError("invite has expired")
	}

	member := &models.TeamMember{
		TeamID: invite.TeamID,
		UserID: userID,
		Role:   models.TeamRolePlayer,
		Status: models.TeamMemberActive,
	}
	if err := s.teamRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberConflict) {
			return nil, &ConflictError{Reason: "user is already a member of this team"}
		}
		return nil, err
	}

	if err := s.inviteRepo.Delete(ctx, invite.ID); err != nil && !errors.Is(err, repositories.ErrInviteNotFound) {
		return nil, fmt.Errorf("failed to consume invite %d: %w", invite.ID, err)
	}
	return member, nil
}

func (s *inviteService) ListByTeam(ctx context.Context, teamID, actorID int) ([]*models.Invite, error) {
	if err := s.requireManagement(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	return s.inviteRepo.ListByTeamID(ctx, teamID)
}

func (s *inviteService) RevokeInvite(ctx context.Context, teamID, actorID, inviteID int) error {
	if err := s.requireManagement(ctx, teamID, actorID); err != nil {
		return err
	}

	invites, err := s.inviteRepo.ListByTeamID(ctx, teamID)
	if err != nil {
		return err
	}
	for _, invite := range invites {
		if invite.ID == inviteID {
			return s.inviteRepo.Delete(ctx, inviteID)
		}
	}
	return ErrInviteNotFound
}

func (s *inviteService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.inviteRepo.DeleteExpired(ctx, s.now())
}

func (s *inviteService) requireManagement(ctx context.Context, teamID, actorID int) error {
	member, err := s.teamRepo.GetMember(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return NewPermissionError("invites can only be managed by an active team owner or manager")
		}
		return err
	}
	if member.Status != models.TeamMemberActive ||
		(member.Role != models.TeamRoleOwner && member.Role != models.TeamRoleManager) {
		return NewPermissionError("invites can only be managed by an active team owner or manager")
	}
	return nil
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
