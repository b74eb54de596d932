package services

import (
	"context"
	"errors"
	"time"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

// RegistrationInput: без TeamID заявка сольная от имени актора, с TeamID —
// командная (подаёт владелец команды).
type RegistrationInput struct {
	TournamentID int  `json:"tournament_id"`
	TeamID       *int `json:"team_id,omitempty"`
}

type RegistrationService interface {
	Register(ctx context.Context, actorID int, input RegistrationInput) (*models.Registration, error)
	Cancel(ctx context.Context, registrationID, actorID int) error
	SetStatus(ctx context.Context, registrationID, actorID int, status models.RegistrationStatus) (*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.Registration, error)
}

type registrationService struct {
	regRepo        repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	userRepo       repositories.UserRepository
	perms          PermissionResolver
	now            func() time.Time
}

func NewRegistrationService(
	regRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	perms PermissionResolver,
) RegistrationService {
	return &registrationService{
		regRepo:        regRepo,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		perms:          perms,
		now:            time.Now,
	}
}

// Register подаёт заявку. Командную заявку подаёт только активный владелец
// команды.
func (s *registrationService) Register(ctx context.Context, actorID int, input RegistrationInput) (*models.Registration, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, input.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.Status != models.StatusRegistration {
		return nil, NewValidationError("tournament is not open for registration (status %q)", tournament.Status)
	}
	if s.now().After(tournament.RegCloseTime) {
		return nil, NewValidationError("registration closed at %s", tournament.RegCloseTime.Format(time.RFC3339))
	}

	confirmed := models.RegistrationConfirmed
	taken, err := s.regRepo.CountByTournament(ctx, tournament.ID, &confirmed, nil)
	if err != nil {
		return nil, err
	}
	if tournament.MaxParticipants > 0 && taken >= tournament.MaxParticipants {
		return nil, NewValidationError("tournament is full (%d participants)", tournament.MaxParticipants)
	}

	reg := &models.Registration{
		TournamentID: tournament.ID,
		Status:       models.RegistrationPending,
	}
	if input.TeamID != nil {
		isOwner, err := s.teamRepo.IsActiveOwner(ctx, *input.TeamID, actorID)
		if err != nil {
			return nil, err
		}
		if !isOwner {
			return nil, NewPermissionError("only the active team owner can register the team")
		}
		reg.TeamID = input.TeamID
	} else {
		userID := actorID
		reg.UserID = &userID
	}

	if err := s.regRepo.Create(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return nil, &ConflictError{Reason: "already registered for this tournament"}
		case errors.Is(err, repositories.ErrRegistrationTypeViolation):
			return nil, NewValidationError("registration must reference either a user or a team, not both")
		case errors.Is(err, repositories.ErrRegistrationTeamInvalid):
			return nil, ErrTeamNotFound
		case errors.Is(err, repositories.ErrRegistrationTournamentInvalid):
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return reg, nil
}

// Cancel переводит заявку в cancelled. Доступно владельцу заявки и персоналу
// с правом управления регистрациями.
func (s *registrationService) Cancel(ctx context.Context, registrationID, actorID int) error {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.Status == models.RegistrationCancelled {
		return nil
	}
	if reg.CheckedIn {
		return NewValidationError("cannot cancel a checked-in registration, undo the check-in first")
	}

	allowed, err := s.isOwner(ctx, reg, actorID)
	if err != nil {
		return err
	}
	if !allowed {
		caps, err := s.resolveCaps(ctx, reg.TournamentID, actorID)
		if err != nil {
			return err
		}
		if !caps.Has(CapManageRegistrations) {
			return NewPermissionError("cancelling requires registration ownership or registration management rights")
		}
	}
	return s.regRepo.UpdateStatus(ctx, registrationID, models.RegistrationCancelled)
}

// SetStatus — административная смена статуса заявки (подтверждение,
// пометка неявки).
func (s *registrationService) SetStatus(ctx context.Context, registrationID, actorID int, status models.RegistrationStatus) (*models.Registration, error) {
	switch status {
	case models.RegistrationPending, models.RegistrationConfirmed, models.RegistrationCancelled, models.RegistrationNoShow:
	default:
		return nil, NewValidationError("unknown registration status %q", status)
	}

	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	caps, err := s.resolveCaps(ctx, reg.TournamentID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(CapManageRegistrations) {
		return nil, NewPermissionError("changing registration status requires registration management rights")
	}
	if reg.CheckedIn && status != models.RegistrationConfirmed {
		return nil, NewValidationError("cannot change status of a checked-in registration, undo the check-in first")
	}

	if err := s.regRepo.UpdateStatus(ctx, registrationID, status); err != nil {
		return nil, err
	}
	reg.Status = status
	return reg, nil
}

func (s *registrationService) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.Registration, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.regRepo.ListByTournament(ctx, tournamentID, statusFilter)
}

func (s *registrationService) getRegistration(ctx context.Context, id int) (*models.Registration, error) {
	reg, err := s.regRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (s *registrationService) isOwner(ctx context.Context, reg *models.Registration, actorID int) (bool, error) {
	if reg.UserID != nil {
		return *reg.UserID == actorID, nil
	}
	if reg.TeamID != nil {
		return s.teamRepo.IsActiveOwner(ctx, *reg.TeamID, actorID)
	}
	return false, nil
}

func (s *registrationService) resolveCaps(ctx context.Context, tournamentID, actorID int) (CapabilitySet, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return CapabilitySet{}, ErrUserNotFound
		}
		return CapabilitySet{}, err
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return CapabilitySet{}, ErrTournamentNotFound
		}
		return CapabilitySet{}, err
	}
	return s.perms.Resolve(ctx, tournament, actor)
}
