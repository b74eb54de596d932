package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenahub/esports-ops/config"
	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

// CheckinStatus — read-only проекция регистрации для клиента.
type CheckinStatus struct {
	Registration *models.Registration `json:"registration"`
	WindowOpen   bool                 `json:"window_open"`
	OpensAt      time.Time            `json:"opens_at"`
	CanUndo      bool                 `json:"can_undo"`
	UndoDeadline *time.Time           `json:"undo_deadline,omitempty"`
}

// Трёхчастная раскладка результата bulk-операции. Каждый входной id попадает
// ровно в один из трёх списков; суммарные счётчики вызывающий считает сам
// по длинам.
type BulkCheckinSuccess struct {
	RegistrationID int       `json:"registration_id"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

type BulkCheckinSkipped struct {
	RegistrationID int    `json:"registration_id"`
	Reason         string `json:"reason"`
}

type BulkCheckinError struct {
	RegistrationID int    `json:"registration_id"`
	Reason         string `json:"reason"`
}

type BulkCheckinResult struct {
	Success []BulkCheckinSuccess `json:"success"`
	Skipped []BulkCheckinSkipped `json:"skipped"`
	Errors  []BulkCheckinError   `json:"errors"`
}

type CheckinService interface {
	CheckIn(ctx context.Context, registrationID, actorID int) (*models.Registration, error)
	UndoCheckIn(ctx context.Context, registrationID, actorID int, reason string) (*models.Registration, error)
	BulkCheckIn(ctx context.Context, registrationIDs []int, actorID int) (*BulkCheckinResult, error)
	GetStatus(ctx context.Context, registrationID, actorID int) (*CheckinStatus, error)
}

type checkinService struct {
	tx             repositories.TxManager
	regRepo        repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	teamRepo       repositories.TeamRepository
	perms          PermissionResolver
	audit          AuditSink
	broadcaster    EventBroadcaster
	cfg            config.CheckinConfig
	logger         *slog.Logger
	now            func() time.Time
}

func NewCheckinService(
	tx repositories.TxManager,
	regRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	perms PermissionResolver,
	audit AuditSink,
	broadcaster EventBroadcaster,
	cfg config.CheckinConfig,
	logger *slog.Logger,
) CheckinService {
	return &checkinService{
		tx:             tx,
		regRepo:        regRepo,
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		teamRepo:       teamRepo,
		perms:          perms,
		audit:          audit,
		broadcaster:    broadcaster,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckIn отмечает явку участника. Строка регистрации держится под
// блокировкой FOR UPDATE на всю последовательность «прочитал — проверил —
// записал», чтобы конкурентные чек-ины сериализовались. Повторный чек-ин —
// идемпотентный успех: ни новой записи аудита, ни смены таймстемпа.
func (s *checkinService) CheckIn(ctx context.Context, registrationID, actorID int) (*models.Registration, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var (
		reg            *models.Registration
		alreadyChecked bool
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		reg, txErr = s.lockRegistration(ctx, exec, registrationID)
		if txErr != nil {
			return txErr
		}

		tournament, txErr := s.getTournament(ctx, reg.TournamentID)
		if txErr != nil {
			return txErr
		}

		caps, txErr := s.perms.Resolve(ctx, tournament, actor)
		if txErr != nil {
			return txErr
		}

		if txErr = s.validateEligibility(ctx, reg, tournament, actor, caps, false); txErr != nil {
			return txErr
		}

		if reg.CheckedIn {
			alreadyChecked = true
			return nil
		}

		now := s.now()
		if txErr = s.regRepo.UpdateCheckin(ctx, exec, reg.ID, true, &now); txErr != nil {
			return txErr
		}
		reg.CheckedIn = true
		reg.CheckedInAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyChecked {
		s.recordAudit(ctx, actor.ID, models.AuditRegistrationCheckin, reg.TournamentID, map[string]interface{}{
			"registration_id": reg.ID,
		})
		s.publishCheckinEvent(reg)
	}
	return reg, nil
}

// UndoCheckIn снимает отметку явки. Организатор/админ может отменить в любой
// момент (обходится только таймер, не guard "должен быть отмечен");
// владелец — лишь в пределах окна отмены.
func (s *checkinService) UndoCheckIn(ctx context.Context, registrationID, actorID int, reason string) (*models.Registration, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var (
		reg      *models.Registration
		override bool
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var txErr error
		reg, txErr = s.lockRegistration(ctx, exec, registrationID)
		if txErr != nil {
			return txErr
		}

		// Безусловный guard: отменять можно только существующую отметку.
		if !reg.CheckedIn || reg.CheckedInAt == nil {
			return NewValidationError("registration is not checked in")
		}

		tournament, txErr := s.getTournament(ctx, reg.TournamentID)
		if txErr != nil {
			return txErr
		}

		caps, txErr := s.perms.Resolve(ctx, tournament, actor)
		if txErr != nil {
			return txErr
		}

		isAdmin := caps.IsUniversal() || caps.Has(CapManageCheckin)
		isOwner, txErr := s.isRegistrationOwner(ctx, reg, actor.ID)
		if txErr != nil {
			return txErr
		}

		switch {
		case isAdmin:
			override = true
		case isOwner:
			if UndoWindowExpired(s.now(), *reg.CheckedInAt, s.cfg.UndoWindow) {
				return NewValidationError("check-in can only be undone within %d minutes", int(s.cfg.UndoWindow.Minutes()))
			}
		default:
			return NewPermissionError("undo requires registration ownership or check-in management rights")
		}

		if txErr = s.regRepo.UpdateCheckin(ctx, exec, reg.ID, false, nil); txErr != nil {
			return txErr
		}
		reg.CheckedIn = false
		reg.CheckedInAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{
		"registration_id":    reg.ID,
		"organizer_override": override,
	}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.recordAudit(ctx, actor.ID, models.AuditRegistrationCheckinRevert, reg.TournamentID, metadata)
	s.publishCheckinEvent(reg)
	return reg, nil
}

// BulkCheckIn обрабатывает до cfg.BulkLimit регистраций. Права проверяются
// один раз на каждый затронутый турнир ДО любых мутаций: один чужой турнир
// валит весь батч. Дальше каждая регистрация обрабатывается независимо, без
// общей транзакции — частичный сбой оставляет ранние успехи зафиксированными.
func (s *checkinService) BulkCheckIn(ctx context.Context, registrationIDs []int, actorID int) (*BulkCheckinResult, error) {
	if len(registrationIDs) == 0 {
		return nil, NewValidationError("at least one registration id is required")
	}
	if len(registrationIDs) > s.cfg.BulkLimit {
		return nil, NewValidationError("bulk check-in is limited to %d registrations per request", s.cfg.BulkLimit)
	}
	seen := make(map[int]bool, len(registrationIDs))
	for _, id := range registrationIDs {
		if seen[id] {
			return nil, NewValidationError("duplicate registration id %d in request", id)
		}
		seen[id] = true
	}

	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	regs, err := s.regRepo.ListByIDs(ctx, registrationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations for bulk check-in: %w", err)
	}
	regByID := make(map[int]*models.Registration, len(regs))
	for _, reg := range regs {
		regByID[reg.ID] = reg
	}

	// Батч-авторизация: по одному Resolve на каждый затронутый турнир.
	tournaments := make(map[int]*models.Tournament)
	for _, reg := range regs {
		if _, ok := tournaments[reg.TournamentID]; ok {
			continue
		}
		tournament, err := s.getTournament(ctx, reg.TournamentID)
		if err != nil {
			return nil, err
		}
		caps, err := s.perms.Resolve(ctx, tournament, actor)
		if err != nil {
			return nil, err
		}
		if !caps.Has(CapManageCheckin) {
			return nil, NewPermissionError("no check-in management rights for tournament %d", tournament.ID)
		}
		tournaments[reg.TournamentID] = tournament
	}

	result := &BulkCheckinResult{
		Success: make([]BulkCheckinSuccess, 0, len(registrationIDs)),
		Skipped: make([]BulkCheckinSkipped, 0),
		Errors:  make([]BulkCheckinError, 0),
	}

	for _, id := range registrationIDs {
		reg, ok := regByID[id]
		if !ok {
			result.Errors = append(result.Errors, BulkCheckinError{RegistrationID: id, Reason: "registration not found"})
			continue
		}
		tournament := tournaments[reg.TournamentID]

		checkedInAt, err := s.checkInOne(ctx, id, tournament, actor)
		switch {
		case err == nil && checkedInAt == nil:
			result.Skipped = append(result.Skipped, BulkCheckinSkipped{RegistrationID: id, Reason: "Already checked in"})
		case err == nil:
			result.Success = append(result.Success, BulkCheckinSuccess{RegistrationID: id, CheckedInAt: *checkedInAt})
		case IsValidation(err), IsNotFound(err):
			result.Errors = append(result.Errors, BulkCheckinError{RegistrationID: id, Reason: err.Error()})
		default:
			// Неожиданная ошибка хранилища по одному элементу не валит батч.
			s.logger.ErrorContext(ctx, "bulk check-in item failed unexpectedly",
				slog.Int("registration_id", id), slog.Any("error", err))
			result.Errors = append(result.Errors, BulkCheckinError{RegistrationID: id, Reason: "internal error"})
		}
	}

	return result, nil
}

// checkInOne — один элемент батча: собственная транзакция и блокировка.
// Возвращает (nil, nil), если регистрация уже отмечена (skip).
func (s *checkinService) checkInOne(ctx context.Context, registrationID int, tournament *models.Tournament, actor *models.User) (*time.Time, error) {
	var checkedInAt *time.Time
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		reg, txErr := s.lockRegistration(ctx, exec, registrationID)
		if txErr != nil {
			return txErr
		}
		if reg.CheckedIn {
			return nil
		}
		// Права уже проверены на уровне батча.
		if txErr = s.validateEligibility(ctx, reg, tournament, actor, CapabilitySet{}, true); txErr != nil {
			return txErr
		}
		now := s.now()
		if txErr = s.regRepo.UpdateCheckin(ctx, exec, reg.ID, true, &now); txErr != nil {
			return txErr
		}
		checkedInAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if checkedInAt != nil {
		s.recordAudit(ctx, actor.ID, models.AuditRegistrationCheckin, tournament.ID, map[string]interface{}{
			"registration_id": registrationID,
			"bulk":            true,
		})
		s.publishCheckinEvent(&models.Registration{
			ID:           registrationID,
			TournamentID: tournament.ID,
			CheckedIn:    true,
			CheckedInAt:  checkedInAt,
		})
	}
	return checkedInAt, nil
}

// GetStatus — проекция без мутаций и блокировок.
func (s *checkinService) GetStatus(ctx context.Context, registrationID, actorID int) (*CheckinStatus, error) {
	actor, err := s.getActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reg, err := s.regRepo.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	tournament, err := s.getTournament(ctx, reg.TournamentID)
	if err != nil {
		return nil, err
	}
	caps, err := s.perms.Resolve(ctx, tournament, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := &CheckinStatus{
		Registration: reg,
		WindowOpen:   CheckinWindowOpen(now, tournament.StartTime, s.cfg.WindowBefore),
		OpensAt:      CheckinOpensAt(tournament.StartTime, s.cfg.WindowBefore),
	}

	if reg.CheckedIn && reg.CheckedInAt != nil {
		isAdmin := caps.IsUniversal() || caps.Has(CapManageCheckin)
		isOwner, err := s.isRegistrationOwner(ctx, reg, actor.ID)
		if err != nil {
			return nil, err
		}
		if isOwner {
			deadline := UndoDeadline(*reg.CheckedInAt, s.cfg.UndoWindow)
			status.UndoDeadline = &deadline
		}
		status.CanUndo = isAdmin || (isOwner && !UndoWindowExpired(now, *reg.CheckedInAt, s.cfg.UndoWindow))
	}
	return status, nil
}

// validateEligibility — общая проверка для одиночного и bulk-путей.
// skipPermission ставится в bulk, где права уже проверены на весь батч.
func (s *checkinService) validateEligibility(
	ctx context.Context,
	reg *models.Registration,
	tournament *models.Tournament,
	actor *models.User,
	caps CapabilitySet,
	skipPermission bool,
) error {
	if reg.Status == models.RegistrationCancelled {
		return NewValidationError("registration is cancelled")
	}
	if reg.Status != models.RegistrationConfirmed {
		return NewValidationError("registration status is %q, must be %q to check in", reg.Status, models.RegistrationConfirmed)
	}

	now := s.now()
	opensAt := CheckinOpensAt(tournament.StartTime, s.cfg.WindowBefore)
	if now.Before(opensAt) {
		return NewValidationError("check-in opens %d minutes before tournament start (at %s)",
			int(s.cfg.WindowBefore.Minutes()), opensAt.Format(time.RFC3339))
	}
	if !now.Before(tournament.StartTime) {
		return NewValidationError("tournament has already started, check-in is closed")
	}

	if skipPermission {
		return nil
	}
	isOwner, err := s.isRegistrationOwner(ctx, reg, actor.ID)
	if err != nil {
		return err
	}
	if isOwner || caps.Has(CapManageCheckin) {
		return nil
	}
	return NewPermissionError("check-in requires registration ownership or check-in management rights")
}

// isRegistrationOwner: индивидуальная заявка принадлежит самому участнику,
// командная — активному владельцу команды.
func (s *checkinService) isRegistrationOwner(ctx context.Context, reg *models.Registration, actorID int) (bool, error) {
	if reg.UserID != nil {
		return *reg.UserID == actorID, nil
	}
	if reg.TeamID != nil {
		isOwner, err := s.teamRepo.IsActiveOwner(ctx, *reg.TeamID, actorID)
		if err != nil {
			return false, fmt.Errorf("failed to check team ownership for registration %d: %w", reg.ID, err)
		}
		return isOwner, nil
	}
	return false, nil
}

func (s *checkinService) getActor(ctx context.Context, actorID int) (*models.User, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return actor, nil
}

func (s *checkinService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *checkinService) lockRegistration(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Registration, error) {
	reg, err := s.regRepo.FindByIDForUpdate(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

// recordAudit пишет событие журнала после коммита. Сбой аудита логируется и
// не отдаётся вызывающему: состояние уже изменено.
func (s *checkinService) recordAudit(ctx context.Context, actorID int, action models.AuditAction, tournamentID int, metadata map[string]interface{}) {
	event := NewAuditEvent(actorID, action, tournamentID, metadata)
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit event",
			slog.String("action", string(action)),
			slog.Int("tournament_id", tournamentID),
			slog.Any("error", err))
	}
}

func (s *checkinService) publishCheckinEvent(reg *models.Registration) {
	s.broadcaster.Publish(TournamentChannel(reg.TournamentID), CheckinEvent{
		Type:           EventCheckinUpdated,
		TournamentID:   reg.TournamentID,
		RegistrationID: reg.ID,
		CheckedIn:      reg.CheckedIn,
		CheckedInAt:    reg.CheckedInAt,
	})
}
