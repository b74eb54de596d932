package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/arenahub/esports-ops/config"
	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

// NotificationService рассылает напоминания о чек-ине. Планировщик в main
// дёргает SendCheckinReminders раз в interval; сервис находит турниры, чьё
// окно чек-ина открылось с прошлого тика, и пишет подтверждённым, но не
// отметившимся участникам.
type NotificationService struct {
	tournamentRepo repositories.TournamentRepository
	regRepo        repositories.RegistrationRepository
	userRepo       repositories.UserRepository
	teamRepo       repositories.TeamRepository
	email          *EmailService
	cfg            config.CheckinConfig
	logger         *slog.Logger
	now            func() time.Time
}

func NewNotificationService(
	tournamentRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	email *EmailService,
	cfg config.CheckinConfig,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		tournamentRepo: tournamentRepo,
		regRepo:        regRepo,
		userRepo:       userRepo,
		teamRepo:       teamRepo,
		email:          email,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// SendCheckinReminders обрабатывает турниры, окно которых открылось в
// интервале (now-interval, now]. Ошибки отправки логируются и не прерывают
// обход: напоминание — best-effort.
func (s *NotificationService) SendCheckinReminders(ctx context.Context, interval time.Duration) {
	now := s.now()
	// Окно открывается за WindowBefore до старта: старт попадает в
	// (now, now+WindowBefore], если открытие случилось в (now-interval, now].
	from := now.Add(s.cfg.WindowBefore - interval)
	to := now.Add(s.cfg.WindowBefore)

	tournaments, err := s.tournamentRepo.ListStartingBetween(ctx, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list tournaments for check-in reminders", slog.Any("error", err))
		return
	}

	for _, t := range tournaments {
		s.remindTournament(ctx, t)
	}
}

func (s *NotificationService) remindTournament(ctx context.Context, t *models.Tournament) {
	regs, err := s.regRepo.ListConfirmedNotCheckedIn(ctx, t.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list registrations for reminder",
			slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}

	sent := 0
	for _, reg := range regs {
		email, err := s.recipientEmail(ctx, reg)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve reminder recipient",
				slog.Int("registration_id", reg.ID), slog.Any("error", err))
			continue
		}
		if email == "" {
			continue
		}
		if err := s.email.SendCheckinReminderEmail(email, t.Name, t.StartTime); err != nil {
			s.logger.WarnContext(ctx, "failed to send check-in reminder",
				slog.Int("registration_id", reg.ID), slog.Any("error", err))
			continue
		}
		sent++
	}

	s.logger.InfoContext(ctx, "check-in reminders sent",
		slog.Int("tournament_id", t.ID),
		slog.Int("recipients", sent),
		slog.Int("pending", len(regs)))
}

// recipientEmail: для сольной заявки — сам участник, для командной — владелец
// команды.
func (s *NotificationService) recipientEmail(ctx context.Context, reg *models.Registration) (string, error) {
	if reg.UserID != nil {
		user, err := s.userRepo.GetByID(ctx, *reg.UserID)
		if err != nil {
			return "", err
		}
		return user.Email, nil
	}
	if reg.TeamID == nil {
		return "", nil
	}

	members, err := s.teamRepo.ListMembers(ctx, *reg.TeamID)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if m.Role == models.TeamRoleOwner && m.Status == models.TeamMemberActive {
			owner, err := s.userRepo.GetByID(ctx, m.UserID)
			if err != nil {
				return "", err
			}
			return owner.Email, nil
		}
	}
	return "", nil
}
