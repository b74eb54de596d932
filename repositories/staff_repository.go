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
	ErrStaffRoleNotFound       = errors.New("staff role not found")
	ErrStaffAssignmentNotFound = errors.New("staff assignment not found")
	ErrStaffAssignmentConflict = errors.New("active staff assignment already exists for this tournament, user and role")
)

type StaffRepository interface {
	CreateRole(ctx context.Context, role *models.StaffRole) error
	GetRoleByID(ctx context.Context, id int) (*models.StaffRole, error)
	CreateAssignment(ctx context.Context, a *models.StaffAssignment) error
	DeactivateAssignment(ctx context.Context, id int) error
	ListAssignmentsByTournament(ctx context.Context, tournamentID int) ([]*models.StaffAssignment, error)
	// FindActiveAssignment возвращает активное назначение пользователя на
	// турнире вместе с ролью и её картой способностей.
	FindActiveAssignment(ctx context.Context, tournamentID, userID int) (*models.StaffAssignment, error)
	// ListLegacyPermissions читает плоский список прав из старой модели.
	ListLegacyPermissions(ctx context.Context, tournamentID, userID int) ([]string, error)
}

type postgresStaffRepository struct {
	db *sql.DB
}

func NewPostgresStaffRepository(db *sql.DB) StaffRepository {
	return &postgresStaffRepository{db: db}
}

func (r *postgresStaffRepository) CreateRole(ctx context.Context, role *models.StaffRole) error {
	capsJSON, err := json.Marshal(role.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal role capabilities: %w", err)
	}

	query := `INSERT INTO staff_roles (name, capabilities) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, role.Name, capsJSON).Scan(&role.ID); err != nil {
		return fmt.Errorf("failed to create staff role: %w", err)
	}
	return nil
}

func (r *postgresStaffRepository) GetRoleByID(ctx context.Context, id int) (*models.StaffRole, error) {
	query := `SELECT id, name, capabilities FROM staff_roles WHERE id = $1`

	role := &models.StaffRole{}
	var capsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&role.ID, &role.Name, &capsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffRoleNotFound
		}
		return nil, fmt.Errorf("failed to get staff role: %w", err)
	}
	if err := json.Unmarshal(capsJSON, &role.Capabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role capabilities: %w", err)
	}
	return role, nil
}

func (r *postgresStaffRepository) CreateAssignment(ctx context.Context, a *models.StaffAssignment) error {
	query := `
		INSERT INTO staff_assignments (tournament_id, user_id, role_id, active, stage_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.TournamentID,
		a.UserID,
		a.RoleID,
		a.Active,
		a.StageID,
	).Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // partial unique index on (tournament_id, user_id, role_id) WHERE active
				return ErrStaffAssignmentConflict
			case "23503":
				switch pqErr.Constraint {
				case "staff_assignments_role_id_fkey":
					return ErrStaffRoleNotFound
				case "staff_assignments_tournament_id_fkey":
					return ErrTournamentNotFound
				case "staff_assignments_user_id_fkey":
					return ErrUserNotFound
				}
			}
		}
		return fmt.Errorf("failed to create staff assignment: %w", err)
	}
	return nil
}

func (r *postgresStaffRepository) DeactivateAssignment(ctx context.Context, id int) error {
	query := `UPDATE staff_assignments SET active = FALSE WHERE id = $1 AND active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate staff assignment: %w", err)
	}
	return checkAffectedRows(result, ErrStaffAssignmentNotFound)
}

func (r *postgresStaffRepository) ListAssignmentsByTournament(ctx context.Context, tournamentID int) ([]*models.StaffAssignment, error) {
	query := `
		SELECT a.id, a.tournament_id, a.user_id, a.role_id, a.active, a.stage_id, a.created_at,
		       r.id, r.name, r.capabilities
		FROM staff_assignments a
		JOIN staff_roles r ON a.role_id = r.id
		WHERE a.tournament_id = $1
		ORDER BY a.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]*models.StaffAssignment, 0)
	for rows.Next() {
		a, err := scanAssignmentWithRole(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staff assignment rows: %w", err)
	}
	return assignments, nil
}

func (r *postgresStaffRepository) FindActiveAssignment(ctx context.Context, tournamentID, userID int) (*models.StaffAssignment, error) {
	query := `
		SELECT a.id, a.tournament_id, a.user_id, a.role_id, a.active, a.stage_id, a.created_at,
		       r.id, r.name, r.capabilities
		FROM staff_assignments a
		JOIN staff_roles r ON a.role_id = r.id
		WHERE a.tournament_id = $1 AND a.user_id = $2 AND a.active = TRUE
		LIMIT 1`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active staff assignment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading staff assignment row: %w", err)
		}
		return nil, ErrStaffAssignmentNotFound
	}
	return scanAssignmentWithRole(rows)
}

func (r *postgresStaffRepository) ListLegacyPermissions(ctx context.Context, tournamentID, userID int) ([]string, error) {
	query := `SELECT permission FROM staff_permissions_legacy WHERE tournament_id = $1 AND user_id = $2`
	rows, err := r.db.QueryContext(ctx, query, tournamentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy staff permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan legacy permission row: %w", err)
		}
		permissions = append(permissions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legacy permission rows: %w", err)
	}
	return permissions, nil
}

func scanAssignmentWithRole(rows *sql.Rows) (*models.StaffAssignment, error) {
	a := &models.StaffAssignment{}
	role := &models.StaffRole{}
	var capsJSON []byte

	if err := rows.Scan(
		&a.ID, &a.TournamentID, &a.UserID, &a.RoleID, &a.Active, &a.StageID, &a.CreatedAt,
		&role.ID, &role.Name, &capsJSON,
	); err != nil {
		return nil, fmt.Errorf("failed to scan staff assignment row: %w", err)
	}
	if err := json.Unmarshal(capsJSON, &role.Capabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role capabilities: %w", err)
	}
	a.Role = role
	return a, nil
}
