package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arenahub/esports-ops/models"
)

var ErrAuditEventNotFound = errors.New("audit event not found")

// AuditRepository — append-only журнал. Update/Delete намеренно отсутствуют.
type AuditRepository interface {
	Record(ctx context.Context, event *models.AuditEvent) error
	ListByTournament(ctx context.Context, tournamentID int, limit, offset int) ([]*models.AuditEvent, error)
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) Record(ctx context.Context, event *models.AuditEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (event_id, actor_id, action, tournament_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		event.EventID,
		event.ActorID,
		event.Action,
		event.TournamentID,
		metadataJSON,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (r *postgresAuditRepository) ListByTournament(ctx context.Context, tournamentID int, limit, offset int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, event_id, actor_id, action, tournament_id, metadata, created_at
		FROM audit_events
		WHERE tournament_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		e := &models.AuditEvent{}
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.EventID, &e.ActorID, &e.Action, &e.TournamentID, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}
	return events, nil
}
