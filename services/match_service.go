package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

// ForceCompleteInput — данные административного завершения матча.
// Причина обязательна; счёт и произвольный результат — по желанию.
type ForceCompleteInput struct {
	Reason     string          `json:"reason"`
	Score      *string         `json:"score,omitempty"`
	ResultData json.RawMessage `json:"result_data,omitempty"`
}

type MatchOpsService interface {
	CreateMatch(ctx context.Context, tournamentID, actorID int, regA, regB *int, scheduledAt time.Time) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error)

	MarkLive(ctx context.Context, matchID, actorID int) (*models.Match, error)
	Pause(ctx context.Context, matchID, actorID int, reason string) (*models.Match, error)
	Resume(ctx context.Context, matchID, actorID int) (*models.Match, error)
	ForceComplete(ctx context.Context, matchID, actorID int, input ForceCompleteInput) (*models.Match, error)

	AddNote(ctx context.Context, matchID, actorID int, body string) (*models.MatchNote, error)
	ListNotes(ctx context.Context, matchID, actorID int) ([]*models.MatchNote, error)
}

type matchOpsService struct {
	tx             repositories.TxManager
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	perms          PermissionResolver
	audit          AuditSink
	broadcaster    EventBroadcaster
	logger         *slog.Logger
	now            func() time.Time
}

func NewMatchOpsService(
	tx repositories.TxManager,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	perms PermissionResolver,
	audit AuditSink,
	broadcaster EventBroadcaster,
	logger *slog.Logger,
) MatchOpsService {
	return &matchOpsService{
		tx:             tx,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		perms:          perms,
		audit:          audit,
		broadcaster:    broadcaster,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *matchOpsService) CreateMatch(ctx context.Context, tournamentID, actorID int, regA, regB *int, scheduledAt time.Time) (*models.Match, error) {
	if _, _, err := s.authorizeAny(ctx, tournamentID, actorID, CapManageMatches); err != nil {
		return nil, err
	}

	match := &models.Match{
		TournamentID:    tournamentID,
		RegistrationAID: regA,
		RegistrationBID: regB,
		Status:          models.MatchScheduled,
		ScheduledAt:     scheduledAt,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchTournamentInvalid):
			return nil, ErrTournamentNotFound
		case errors.Is(err, repositories.ErrRegistrationNotFound):
			return nil, NewValidationError("one of the given registrations does not exist")
		}
		return nil, err
	}
	return match, nil
}

func (s *matchOpsService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchOpsService) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.matchRepo.ListByTournament(ctx, tournamentID, statusFilter)
}

// MarkLive: scheduled → live. Фиксирует started_at.
func (s *matchOpsService) MarkLive(ctx context.Context, matchID, actorID int) (*models.Match, error) {
	return s.transition(ctx, matchID, actorID, models.AuditMatchLive, nil, func(m *models.Match, now time.Time) error {
		if m.Status != models.MatchScheduled {
			return transitionError(m.Status, models.MatchLive)
		}
		m.Status = models.MatchLive
		m.StartedAt = &now
		return nil
	})
}

// Pause: live → paused. Причина опциональна и попадает в метаданные аудита.
func (s *matchOpsService) Pause(ctx context.Context, matchID, actorID int, reason string) (*models.Match, error) {
	var metadata map[string]interface{}
	if reason != "" {
		metadata = map[string]interface{}{"reason": reason}
	}
	return s.transition(ctx, matchID, actorID, models.AuditMatchPaused, metadata, func(m *models.Match, now time.Time) error {
		if m.Status != models.MatchLive {
			return transitionError(m.Status, models.MatchPaused)
		}
		m.Status = models.MatchPaused
		return nil
	})
}

// Resume: paused → live. started_at не переписывается.
func (s *matchOpsService) Resume(ctx context.Context, matchID, actorID int) (*models.Match, error) {
	return s.transition(ctx, matchID, actorID, models.AuditMatchResumed, nil, func(m *models.Match, now time.Time) error {
		if m.Status != models.MatchPaused {
			return transitionError(m.Status, models.MatchLive)
		}
		m.Status = models.MatchLive
		return nil
	})
}

// ForceComplete: любое нетерминальное состояние → completed. Требует
// непустую причину; счёт и result_data переносятся в матч, причина — в аудит.
func (s *matchOpsService) ForceComplete(ctx context.Context, matchID, actorID int, input ForceCompleteInput) (*models.Match, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, NewValidationError("a reason is required to force-complete a match")
	}

	metadata := map[string]interface{}{"reason": reason}
	if input.Score != nil {
		metadata["score"] = *input.Score
	}
	return s.transition(ctx, matchID, actorID, models.AuditMatchForceCompleted, metadata, func(m *models.Match, now time.Time) error {
		if m.Status.Terminal() {
			return transitionError(m.Status, models.MatchCompleted)
		}
		m.Status = models.MatchCompleted
		m.CompletedAt = &now
		if input.Score != nil {
			m.Score = input.Score
		}
		if len(input.ResultData) > 0 {
			m.ResultData = input.ResultData
		}
		return nil
	})
}

func (s *matchOpsService) AddNote(ctx context.Context, matchID, actorID int, body string) (*models.MatchNote, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, NewValidationError("note body must not be empty")
	}

	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeAny(ctx, match.TournamentID, actorID, CapManageMatches, CapResolveDisputes); err != nil {
		return nil, err
	}

	note := &models.MatchNote{MatchID: matchID, AuthorID: actorID, Body: body}
	if err := s.matchRepo.AddNote(ctx, note); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	s.recordAudit(ctx, actorID, models.AuditMatchNoteAdded, match.TournamentID, map[string]interface{}{
		"match_id": matchID,
		"note_id":  note.ID,
	})
	return note, nil
}

func (s *matchOpsService) ListNotes(ctx context.Context, matchID, actorID int) ([]*models.MatchNote, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeAny(ctx, match.TournamentID, actorID, CapManageMatches, CapResolveDisputes); err != nil {
		return nil, err
	}
	return s.matchRepo.ListNotes(ctx, matchID)
}

// transition — общий каркас перехода состояния: блокировка строки,
// проверка прав, мутация, запись, аудит и рассылка после коммита.
func (s *matchOpsService) transition(
	ctx context.Context,
	matchID, actorID int,
	action models.AuditAction,
	metadata map[string]interface{},
	mutate func(m *models.Match, now time.Time) error,
) (*models.Match, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var match *models.Match
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		match, txErr = s.matchRepo.FindByIDForUpdate(ctx, exec, matchID)
		if txErr != nil {
			if errors.Is(txErr, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return txErr
		}

		tournament, txErr := s.getTournament(ctx, match.TournamentID)
		if txErr != nil {
			return txErr
		}
		caps, txErr := s.perms.Resolve(ctx, tournament, actor)
		if txErr != nil {
			return txErr
		}
		if !caps.Has(CapManageMatches) {
			return NewPermissionError("match operations require match management rights")
		}

		if txErr = mutate(match, s.now()); txErr != nil {
			return txErr
		}
		return s.matchRepo.UpdateState(ctx, exec, match)
	})
	if err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["match_id"] = match.ID
	metadata["status"] = string(match.Status)
	s.recordAudit(ctx, actor.ID, action, match.TournamentID, metadata)

	s.broadcaster.Publish(TournamentChannel(match.TournamentID), MatchEvent{
		Type:         EventMatchUpdated,
		TournamentID: match.TournamentID,
		MatchID:      match.ID,
		Status:       string(match.Status),
	})
	return match, nil
}

func transitionError(from, to models.MatchStatus) error {
	return NewValidationError("cannot transition match from %q to %q", from, to)
}

func (s *matchOpsService) authorizeAny(ctx context.Context, tournamentID, actorID int, caps ...Capability) (CapabilitySet, *models.Tournament, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return CapabilitySet{}, nil, err
	}
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return CapabilitySet{}, nil, err
	}
	set, err := s.perms.Resolve(ctx, tournament, actor)
	if err != nil {
		return CapabilitySet{}, nil, err
	}
	if !set.HasAny(caps...) {
		return CapabilitySet{}, nil, NewPermissionError("insufficient tournament rights for this operation")
	}
	return set, tournament, nil
}

func (s *matchOpsService) getActor(ctx context.Context, actorID int) (*models.User, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return actor, nil
}

func (s *matchOpsService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *matchOpsService) recordAudit(ctx context.Context, actorID int, action models.AuditAction, tournamentID int, metadata map[string]interface{}) {
	event := NewAuditEvent(actorID, action, tournamentID, metadata)
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit event",
			slog.String("action", string(action)),
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
	}
}
