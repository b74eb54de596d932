package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
	"github.com/arenahub/esports-ops/storage"
)

// AuditSink — приёмник событий журнала. Сервисы пишут события через этот
// интерфейс, не зная о хранилище.
type AuditSink interface {
	Record(ctx context.Context, event *models.AuditEvent) error
}

// NewAuditEvent собирает событие с глобально-уникальным event_id.
func NewAuditEvent(actorID int, action models.AuditAction, tournamentID int, metadata map[string]interface{}) *models.AuditEvent {
	return &models.AuditEvent{
		EventID:      ksuid.New().String(),
		ActorID:      actorID,
		Action:       action,
		TournamentID: tournamentID,
		Metadata:     metadata,
	}
}

type AuditExportResult struct {
	URL        string `json:"url"`
	EventCount int    `json:"event_count"`
}

type AuditService interface {
	ListByTournament(ctx context.Context, tournamentID, actorID int, limit, offset int) ([]*models.AuditEvent, error)
	ExportCSV(ctx context.Context, tournamentID, actorID int) (*AuditExportResult, error)
}

type auditService struct {
	auditRepo      repositories.AuditRepository
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	perms          PermissionResolver
	uploader       storage.FileUploader
	now            func() time.Time
}

func NewAuditService(
	auditRepo repositories.AuditRepository,
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	perms PermissionResolver,
	uploader storage.FileUploader,
) AuditService {
	return &auditService{
		auditRepo:      auditRepo,
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		perms:          perms,
		uploader:       uploader,
		now:            time.Now,
	}
}

func (s *auditService) ListByTournament(ctx context.Context, tournamentID, actorID int, limit, offset int) ([]*models.AuditEvent, error) {
	caps, tournament, err := s.resolve(ctx, tournamentID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.HasAny(CapExportData, CapManageStaff) {
		return nil, NewPermissionError("viewing the audit log requires staff management or data export rights")
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.auditRepo.ListByTournament(ctx, tournament.ID, limit, offset)
}

// ExportCSV выгружает полный журнал турнира в CSV и кладёт файл в R2.
// Возвращает публичный URL выгрузки.
func (s *auditService) ExportCSV(ctx context.Context, tournamentID, actorID int) (*AuditExportResult, error) {
	caps, tournament, err := s.resolve(ctx, tournamentID, actorID)
	if err != nil {
		return nil, err
	}
	if !caps.Has(CapExportData) {
		return nil, NewPermissionError("audit export requires data export rights")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"event_id", "actor_id", "action", "tournament_id", "metadata", "created_at"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	const pageSize = 500
	count := 0
	for offset := 0; ; offset += pageSize {
		events, err := s.auditRepo.ListByTournament(ctx, tournament.ID, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to page audit events for export: %w", err)
		}
		for _, e := range events {
			metadataJSON, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal metadata of event %s: %w", e.EventID, err)
			}
			record := []string{
				e.EventID,
				strconv.Itoa(e.ActorID),
				string(e.Action),
				strconv.Itoa(e.TournamentID),
				string(metadataJSON),
				e.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write csv record: %w", err)
			}
		}
		count += len(events)
		if len(events) < pageSize {
			break
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	key := fmt.Sprintf("audit-exports/tournament-%d/%s.csv", tournament.ID, s.now().UTC().Format("20060102T150405Z"))
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audit export: %w", err)
	}

	return &AuditExportResult{URL: result.Location, EventCount: count}, nil
}

func (s *auditService) resolve(ctx context.Context, tournamentID, actorID int) (CapabilitySet, *models.Tournament, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return CapabilitySet{}, nil, ErrUserNotFound
		}
		return CapabilitySet{}, nil, err
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return CapabilitySet{}, nil, ErrTournamentNotFound
		}
		return CapabilitySet{}, nil, err
	}
	caps, err := s.perms.Resolve(ctx, tournament, actor)
	if err != nil {
		return CapabilitySet{}, nil, err
	}
	return caps, tournament, nil
}
