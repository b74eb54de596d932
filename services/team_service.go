package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
	"github.com/arenahub/esports-ops/storage"
)

type CreateTeamInput struct {
	Name   string `json:"name"`
	GameID int    `json:"game_id"`
}

type TeamService interface {
	Create(ctx context.Context, creatorID int, input CreateTeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	Rename(ctx context.Context, teamID, actorID int, name string) (*models.Team, error)
	AddMember(ctx context.Context, teamID, actorID, userID int, role models.TeamMemberRole) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, actorID, userID int) error
	UploadLogo(ctx context.Context, teamID, actorID int, contentType string, reader io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo repositories.TeamRepository
	gameRepo repositories.GameRepository
	userRepo repositories.UserRepository
	uploader storage.FileUploader
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	gameRepo repositories.GameRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
) TeamService {
	return &teamService{
		teamRepo: teamRepo,
		gameRepo: gameRepo,
		userRepo: userRepo,
		uploader: uploader,
	}
}

// Create создаёт команду и сразу добавляет создателя активным владельцем.
func (s *teamService) Create(ctx context.Context, creatorID int, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, NewValidationError("team name is required")
	}
	if _, err := s.gameRepo.GetByID(ctx, input.GameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	team := &models.Team{Name: input.Name, GameID: input.GameID}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, &ConflictError{Reason: fmt.Sprintf("team %q already exists", input.Name)}
		}
		return nil, err
	}

	owner := &models.TeamMember{
		TeamID: team.ID,
		UserID: creatorID,
		Role:   models.TeamRoleOwner,
		Status: models.TeamMemberActive,
	}
	if err := s.teamRepo.AddMember(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to add team creator as owner: %w", err)
	}
	team.Members = []models.TeamMember{*owner}
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range members {
		populateUserDetails(members[i].User, s.uploader)
	}
	team.Members = members
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) Rename(ctx context.Context, teamID, actorID int, name string) (*models.Team, error) {
	if name == "" {
		return nil, NewValidationError("team name is required")
	}
	team, err := s.requireManagement(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	team.Name = name
	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, &ConflictError{Reason: fmt.Sprintf("team %q already exists", name)}
		}
		return nil, err
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

func (s *teamService) AddMember(ctx context.Context, teamID, actorID, userID int, role models.TeamMemberRole) (*models.TeamMember, error) {
	if role == models.TeamRoleOwner {
		return nil, NewValidationError("a team has exactly one owner, assigned at creation")
	}
	if role != models.TeamRoleManager && role != models.TeamRolePlayer {
		return nil, NewValidationError("unknown team role %q", role)
	}
	if _, err := s.requireManagement(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	member := &models.TeamMember{
		TeamID: teamID,
		UserID: userID,
		Role:   role,
		Status: models.TeamMemberActive,
	}
	if err := s.teamRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberConflict) {
			return nil, &ConflictError{Reason: "user is already a member of this team"}
		}
		return nil, err
	}
	return member, nil
}

// RemoveMember исключает участника. Владельца исключить нельзя; сам участник
// может выйти из команды без прав управления.
func (s *teamService) RemoveMember(ctx context.Context, teamID, actorID, userID int) error {
	member, err := s.teamRepo.GetMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return NewValidationError("user is not a member of this team")
		}
		return err
	}
	if member.Role == models.TeamRoleOwner {
		return NewValidationError("the team owner cannot be removed")
	}

	if actorID != userID {
		if _, err := s.requireManagement(ctx, teamID, actorID); err != nil {
			return err
		}
	}
	return s.teamRepo.RemoveMember(ctx, teamID, userID)
}

func (s *teamService) UploadLogo(ctx context.Context, teamID, actorID int, contentType string, reader io.Reader) (*models.Team, error) {
	team, err := s.requireManagement(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, NewValidationError("unsupported logo content type %q", contentType)
	}

	oldKey := team.LogoKey
	key := fmt.Sprintf("teams/%d/logo%s", team.ID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	team.LogoKey = &key
	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != key {
		_ = s.uploader.Delete(ctx, *oldKey)
	}
	populateTeamLogoURL(team, s.uploader)
	return team, nil
}

// requireManagement пропускает активного владельца или менеджера команды.
func (s *teamService) requireManagement(ctx context.Context, teamID, actorID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	member, err := s.teamRepo.GetMember(ctx, teamID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, NewPermissionError("team management requires an active owner or manager role")
		}
		return nil, err
	}
	if member.Status != models.TeamMemberActive ||
		(member.Role != models.TeamRoleOwner && member.Role != models.TeamRoleManager) {
		return nil, NewPermissionError("team management requires an active owner or manager role")
	}
	return team, nil
}
