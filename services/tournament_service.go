package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
	"github.com/arenahub/esports-ops/storage"
)

type CreateTournamentInput struct {
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	GameID          int       `json:"game_id"`
	RegCloseTime    time.Time `json:"reg_close_time"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants"`
}

type UpdateTournamentInput struct {
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	RegCloseTime    *time.Time `json:"reg_close_time,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
}

type AssignStaffInput struct {
	UserID  int  `json:"user_id"`
	RoleID  int  `json:"role_id"`
	StageID *int `json:"stage_id,omitempty"`
}

type TournamentService interface {
	Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tournament, error)
	Update(ctx context.Context, tournamentID, actorID int, input UpdateTournamentInput) (*models.Tournament, error)
	ChangeStatus(ctx context.Context, tournamentID, actorID int, status models.TournamentStatus) (*models.Tournament, error)
	UploadLogo(ctx context.Context, tournamentID, actorID int, contentType string, reader io.Reader) (*models.Tournament, error)

	CreateStaffRole(ctx context.Context, actorID int, name string, capabilities map[string]bool) (*models.StaffRole, error)
	AssignStaff(ctx context.Context, tournamentID, actorID int, input AssignStaffInput) (*models.StaffAssignment, error)
	DeactivateStaff(ctx context.Context, tournamentID, actorID, assignmentID int) error
	ListStaff(ctx context.Context, tournamentID, actorID int) ([]*models.StaffAssignment, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	gameRepo       repositories.GameRepository
	userRepo       repositories.UserRepository
	staffRepo      repositories.StaffRepository
	perms          PermissionResolver
	audit          AuditSink
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	gameRepo repositories.GameRepository,
	userRepo repositories.UserRepository,
	staffRepo repositories.StaffRepository,
	perms PermissionResolver,
	audit AuditSink,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		gameRepo:       gameRepo,
		userRepo:       userRepo,
		staffRepo:      staffRepo,
		perms:          perms,
		audit:          audit,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, NewValidationError("tournament name is required")
	}
	if err := validateTournamentDates(input.RegCloseTime, input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	if input.MaxParticipants <= 1 {
		return nil, NewValidationError("max participants must be greater than 1")
	}

	organizer, err := s.userRepo.GetByID(ctx, organizerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if organizer.Role != models.RoleOrganizer && !organizer.IsSuperuser() {
		return nil, NewPermissionError("only organizers can create tournaments")
	}
	if _, err := s.gameRepo.GetByID(ctx, input.GameID); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}

	tournament := &models.Tournament{
		Name:            input.Name,
		Description:     input.Description,
		GameID:          input.GameID,
		OrganizerID:     organizerID,
		RegCloseTime:    input.RegCloseTime,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Status:          models.StatusSoon,
		MaxParticipants: input.MaxParticipants,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTournamentNameConflict):
			return nil, &ConflictError{Reason: fmt.Sprintf("tournament %q already exists", input.Name)}
		case errors.Is(err, repositories.ErrTournamentGameInvalid):
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.populateDetails(ctx, tournament)
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tournaments, err := s.tournamentRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, t := range tournaments {
		populateTournamentLogoURL(t, s.uploader)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, tournamentID, actorID int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, _, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusCanceled {
		return nil, NewValidationError("cannot edit a %s tournament", tournament.Status)
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, NewValidationError("tournament name cannot be empty")
		}
		tournament.Name = *input.Name
	}
	if input.Description != nil {
		tournament.Description = input.Description
	}
	if input.RegCloseTime != nil {
		tournament.RegCloseTime = *input.RegCloseTime
	}
	if input.StartTime != nil {
		tournament.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		tournament.EndTime = *input.EndTime
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants <= 1 {
			return nil, NewValidationError("max participants must be greater than 1")
		}
		tournament.MaxParticipants = *input.MaxParticipants
	}
	if err := validateTournamentDates(tournament.RegCloseTime, tournament.StartTime, tournament.EndTime); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, &ConflictError{Reason: fmt.Sprintf("tournament %q already exists", tournament.Name)}
		}
		return nil, err
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

func (s *tournamentService) ChangeStatus(ctx context.Context, tournamentID, actorID int, status models.TournamentStatus) (*models.Tournament, error) {
	tournament, caps, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff)
	if err != nil {
		return nil, err
	}
	// Смена статуса — прерогатива организатора/админа, не любой staff-роли.
	if !caps.IsUniversal() {
		return nil, NewPermissionError("only the organizer or a platform admin can change tournament status")
	}
	if !isValidStatusTransition(tournament.Status, status) {
		return nil, NewValidationError("invalid status transition from %q to %q", tournament.Status, status)
	}
	if tournament.Status == status {
		return tournament, nil
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, status); err != nil {
		return nil, err
	}
	tournament.Status = status
	return tournament, nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, tournamentID, actorID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	tournament, _, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff)
	if err != nil {
		return nil, err
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, NewValidationError("unsupported logo content type %q", contentType)
	}

	oldKey := tournament.LogoKey
	key := fmt.Sprintf("tournaments/%d/logo%s", tournament.ID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	tournament.LogoKey = &key
	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != key {
		_ = s.uploader.Delete(ctx, *oldKey)
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

// CreateStaffRole заводит именованную роль с картой способностей. Роли
// глобальны, создавать их могут организаторы и админы.
func (s *tournamentService) CreateStaffRole(ctx context.Context, actorID int, name string, capabilities map[string]bool) (*models.StaffRole, error) {
	if name == "" {
		return nil, NewValidationError("staff role name is required")
	}
	known := make(map[string]bool, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		known[string(c)] = true
	}
	for capName := range capabilities {
		if !known[capName] {
			return nil, NewValidationError("unknown capability %q", capName)
		}
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if actor.Role != models.RoleOrganizer && !actor.IsSuperuser() {
		return nil, NewPermissionError("only organizers and admins can create staff roles")
	}

	role := &models.StaffRole{Name: name, Capabilities: capabilities}
	if err := s.staffRepo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *tournamentService) AssignStaff(ctx context.Context, tournamentID, actorID int, input AssignStaffInput) (*models.StaffAssignment, error) {
	if _, _, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	role, err := s.staffRepo.GetRoleByID(ctx, input.RoleID)
	if err != nil {
		if errors.Is(err, repositories.ErrStaffRoleNotFound) {
			return nil, ErrStaffRoleNotFound
		}
		return nil, err
	}

	assignment := &models.StaffAssignment{
		TournamentID: tournamentID,
		UserID:       input.UserID,
		RoleID:       input.RoleID,
		Active:       true,
		StageID:      input.StageID,
	}
	if err := s.staffRepo.CreateAssignment(ctx, assignment); err != nil {
		switch {
		case errors.Is(err, repositories.ErrStaffAssignmentConflict):
			return nil, &ConflictError{Reason: "user already holds this role on the tournament"}
		case errors.Is(err, repositories.ErrStaffRoleNotFound):
			return nil, ErrStaffRoleNotFound
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, ErrTournamentNotFound
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	assignment.Role = role

	s.recordAudit(ctx, actorID, models.AuditStaffAssigned, tournamentID, map[string]interface{}{
		"assignment_id": assignment.ID,
		"user_id":       input.UserID,
		"role_id":       input.RoleID,
	})
	return assignment, nil
}

func (s *tournamentService) DeactivateStaff(ctx context.Context, tournamentID, actorID, assignmentID int) error {
	if _, _, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff); err != nil {
		return err
	}

	assignments, err := s.staffRepo.ListAssignmentsByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	var target *models.StaffAssignment
	for _, a := range assignments {
		if a.ID == assignmentID {
			target = a
			break
		}
	}
	if target == nil {
		return &NotFoundError{Resource: "staff assignment"}
	}
	if !target.Active {
		return NewValidationError("staff assignment is already inactive")
	}

	if err := s.staffRepo.DeactivateAssignment(ctx, assignmentID); err != nil {
		if errors.Is(err, repositories.ErrStaffAssignmentNotFound) {
			return &NotFoundError{Resource: "staff assignment"}
		}
		return err
	}

	s.recordAudit(ctx, actorID, models.AuditStaffDeactivated, tournamentID, map[string]interface{}{
		"assignment_id": assignmentID,
		"user_id":       target.UserID,
	})
	return nil
}

func (s *tournamentService) ListStaff(ctx context.Context, tournamentID, actorID int) ([]*models.StaffAssignment, error) {
	if _, _, err := s.requireCapability(ctx, tournamentID, actorID, CapManageStaff); err != nil {
		return nil, err
	}
	return s.staffRepo.ListAssignmentsByTournament(ctx, tournamentID)
}

func (s *tournamentService) requireCapability(ctx context.Context, tournamentID, actorID int, c Capability) (*models.Tournament, CapabilitySet, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, CapabilitySet{}, ErrUserNotFound
		}
		return nil, CapabilitySet{}, err
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, CapabilitySet{}, ErrTournamentNotFound
		}
		return nil, CapabilitySet{}, err
	}
	caps, err := s.perms.Resolve(ctx, tournament, actor)
	if err != nil {
		return nil, CapabilitySet{}, err
	}
	if !caps.Has(c) {
		return nil, CapabilitySet{}, NewPermissionError("insufficient tournament rights for this operation")
	}
	return tournament, caps, nil
}

func (s *tournamentService) populateDetails(ctx context.Context, tournament *models.Tournament) {
	populateTournamentLogoURL(tournament, s.uploader)

	if tournament.Game == nil && tournament.GameID > 0 {
		game, err := s.gameRepo.GetByID(ctx, tournament.GameID)
		if err == nil {
			populateGameLogoURL(game, s.uploader)
			tournament.Game = game
		} else {
			s.logger.WarnContext(ctx, "failed to populate game details",
				slog.Int("tournament_id", tournament.ID), slog.Int("game_id", tournament.GameID), slog.Any("error", err))
		}
	}
	if tournament.Organizer == nil && tournament.OrganizerID > 0 {
		organizer, err := s.userRepo.GetByID(ctx, tournament.OrganizerID)
		if err == nil {
			populateUserDetails(organizer, s.uploader)
			tournament.Organizer = organizer
		} else {
			s.logger.WarnContext(ctx, "failed to populate organizer details",
				slog.Int("tournament_id", tournament.ID), slog.Int("organizer_id", tournament.OrganizerID), slog.Any("error", err))
		}
	}
}

func (s *tournamentService) recordAudit(ctx context.Context, actorID int, action models.AuditAction, tournamentID int, metadata map[string]interface{}) {
	event := NewAuditEvent(actorID, action, tournamentID, metadata)
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit event",
			slog.String("action", string(action)),
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
	}
}
