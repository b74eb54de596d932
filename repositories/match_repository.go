package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arenahub/esports-ops/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchNoteAuthorInvalid = errors.New("match note author conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	FindByID(ctx context.Context, id int) (*models.Match, error)
	// FindByIDForUpdate читает матч под блокировкой FOR UPDATE; переходы
	// состояния всегда выполняются под ней.
	FindByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error)
	UpdateState(ctx context.Context, exec SQLExecutor, m *models.Match) error
	CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) (int, error)
	CountByStatus(ctx context.Context, status models.MatchStatus) (int, error)

	AddNote(ctx context.Context, note *models.MatchNote) error
	ListNotes(ctx context.Context, matchID int) ([]*models.MatchNote, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, registration_a_id, registration_b_id, status, score, scheduled_at, started_at, completed_at, result_data, created_at`

func (r *postgresMatchRepository) scanMatch(row interface{ Scan(dest ...interface{}) error }, m *models.Match) error {
	var resultData []byte
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.RegistrationAID,
		&m.RegistrationBID,
		&m.Status,
		&m.Score,
		&m.ScheduledAt,
		&m.StartedAt,
		&m.CompletedAt,
		&resultData,
		&m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if len(resultData) > 0 {
		m.ResultData = json.RawMessage(resultData)
	}
	return nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (tournament_id, registration_a_id, registration_b_id, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.TournamentID,
		m.RegistrationAID,
		m.RegistrationBID,
		m.Status,
		m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			if pqErr.Constraint == "matches_tournament_id_fkey" {
				return ErrMatchTournamentInvalid
			}
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	m := &models.Match{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanMatch(row, m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) FindByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresMatchRepository) FindByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	}
	query += ` ORDER BY scheduled_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches by tournament: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if err := r.scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateState(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	var resultData interface{}
	if len(m.ResultData) > 0 {
		resultData = []byte(m.ResultData)
	}

	query := `
		UPDATE matches
		SET status = $1, score = $2, started_at = $3, completed_at = $4, result_data = $5
		WHERE id = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		m.Status,
		m.Score,
		m.StartedAt,
		m.CompletedAt,
		resultData,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match state: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) (int, error) {
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountByStatus(ctx context.Context, status models.MatchStatus) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE status = $1`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches by status: %w", err)
	}
	return count, nil
}

func (r *postgresMatchRepository) AddNote(ctx context.Context, note *models.MatchNote) error {
	query := `
		INSERT INTO match_notes (match_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, note.MatchID, note.AuthorID, note.Body).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			if pqErr.Constraint == "match_notes_author_id_fkey" {
				return ErrMatchNoteAuthorInvalid
			}
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to add match note: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) ListNotes(ctx context.Context, matchID int) ([]*models.MatchNote, error) {
	query := `SELECT id, match_id, author_id, body, created_at FROM match_notes WHERE match_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*models.MatchNote, 0)
	for rows.Next() {
		n := &models.MatchNote{}
		if err := rows.Scan(&n.ID, &n.MatchID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match note rows: %w", err)
	}
	return notes, nil
}
