package models

import "time"

// RegistrationStatus — жизненный цикл заявки на участие.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationNoShow    RegistrationStatus = "no_show"
)

// Registration — заявка участника (пользователь ЛИБО команда, ровно одно из
// двух). Инвариант: CheckedInAt != nil тогда и только тогда, когда CheckedIn.
type Registration struct {
	ID           int                `json:"id" db:"id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	UserID       *int               `json:"user_id,omitempty" db:"user_id"`
	TeamID       *int               `json:"team_id,omitempty" db:"team_id"`
	Status       RegistrationStatus `json:"status" db:"status"`
	CheckedIn    bool               `json:"checked_in" db:"checked_in"`
	CheckedInAt  *time.Time         `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
	Team *Team `json:"team,omitempty" db:"-"`
}
