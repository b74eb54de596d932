package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arenahub/esports-ops/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationConflict          = errors.New("user or team is already registered for this tournament")
	ErrRegistrationUserInvalid       = errors.New("registration user conflict or invalid")
	ErrRegistrationTeamInvalid       = errors.New("registration team conflict or invalid")
	ErrRegistrationTournamentInvalid = errors.New("registration tournament conflict or invalid")
	ErrRegistrationTypeViolation     = errors.New("registration type violation: either user_id or team_id must be set, but not both")
)

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id int) (*models.Registration, error)
	// FindByIDForUpdate читает строку регистрации под блокировкой
	// SELECT ... FOR UPDATE. Вызывается только внутри транзакции.
	FindByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error)
	ListByIDs(ctx context.Context, ids []int) ([]*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.Registration, error)
	ListConfirmedNotCheckedIn(ctx context.Context, tournamentID int) ([]*models.Registration, error)
	FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Registration, error)
	FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.Registration, error)
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	// UpdateCheckin пишет пару (checked_in, checked_in_at) атомарно, чтобы
	// инвариант "checked_in_at != nil <=> checked_in" держался на уровне БД.
	UpdateCheckin(ctx context.Context, exec SQLExecutor, id int, checkedIn bool, checkedInAt *time.Time) error
	CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, checkedIn *bool) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const registrationColumns = `id, tournament_id, user_id, team_id, status, checked_in, checked_in_at, created_at`

func (r *postgresRegistrationRepository) scanRegistration(row interface{ Scan(dest ...interface{}) error }, reg *models.Registration) error {
	return row.Scan(
		&reg.ID,
		&reg.TournamentID,
		&reg.UserID,
		&reg.TeamID,
		&reg.Status,
		&reg.CheckedIn,
		&reg.CheckedInAt,
		&reg.CreatedAt,
	)
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (tournament_id, user_id, team_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, checked_in, created_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.TournamentID,
		reg.UserID,
		reg.TeamID,
		reg.Status,
	).Scan(&reg.ID, &reg.CheckedIn, &reg.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrRegistrationConflict
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "registrations_user_id_fkey":
					return ErrRegistrationUserInvalid
				case "registrations_team_id_fkey":
					return ErrRegistrationTeamInvalid
				case "registrations_tournament_id_fkey":
					return ErrRegistrationTournamentInvalid
				}
			case "23514": // check_violation
				if pqErr.Constraint == "chk_registration_type" {
					return ErrRegistrationTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Registration, error) {
	reg := &models.Registration{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanRegistration(row, reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) FindByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresRegistrationRepository) FindByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresRegistrationRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations by ids: %w", err)
	}
	defer rows.Close()
	return r.collectRows(rows)
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations by tournament: %w", err)
	}
	defer rows.Close()
	return r.collectRows(rows)
}

func (r *postgresRegistrationRepository) ListConfirmedNotCheckedIn(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE tournament_id = $1 AND status = $2 AND checked_in = FALSE
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, models.RegistrationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list not checked in registrations: %w", err)
	}
	defer rows.Close()
	return r.collectRows(rows)
}

func (r *postgresRegistrationRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, nil, query, userID, tournamentID)
}

func (r *postgresRegistrationRepository) FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE team_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, nil, query, teamID, tournamentID)
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	query := `UPDATE registrations SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateCheckin(ctx context.Context, exec SQLExecutor, id int, checkedIn bool, checkedInAt *time.Time) error {
	query := `UPDATE registrations SET checked_in = $1, checked_in_at = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, checkedIn, checkedInAt, id)
	if err != nil {
		return fmt.Errorf("failed to update registration check-in: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, checkedIn *bool) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	argCounter := 2

	if statusFilter != nil {
		query += fmt.Sprintf(" AND status = $%d", argCounter)
		args = append(args, *statusFilter)
		argCounter++
	}
	if checkedIn != nil {
		query += fmt.Sprintf(" AND checked_in = $%d", argCounter)
		args = append(args, *checkedIn)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) collectRows(rows *sql.Rows) ([]*models.Registration, error) {
	registrations := make([]*models.Registration, 0)
	for rows.Next() {
		reg := &models.Registration{}
		if err := r.scanRegistration(rows, reg); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return registrations, nil
}
