package models

import "time"

// StaffRole — роль персонала турнира с картой способностей (JSONB в БД).
// Ключ — имя способности, значение — выдана она или нет.
type StaffRole struct {
	ID           int             `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Capabilities map[string]bool `json:"capabilities" db:"capabilities"`
}

// StaffAssignment — назначение пользователя на роль в рамках турнира.
// Инвариант БД: не больше одного активного назначения на (турнир, пользователь, роль).
type StaffAssignment struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	UserID       int       `json:"user_id" db:"user_id"`
	RoleID       int       `json:"role_id" db:"role_id"`
	Active       bool      `json:"active" db:"active"`
	StageID      *int      `json:"stage_id,omitempty" db:"stage_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Role *StaffRole `json:"role,omitempty" db:"-"`
}

// LegacyStaffPermission — запись старой модели прав: плоский список строк
// на (турнир, пользователь). Читается только на fallback-пути резолвера.
type LegacyStaffPermission struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	UserID       int    `json:"user_id" db:"user_id"`
	Permission   string `json:"permission" db:"permission"`
}
