package models

import (
	"encoding/json"
	"time"
)

// MatchStatus — состояние матча.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchPaused    MatchStatus = "paused"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// Terminal сообщает, допускает ли состояние дальнейшие переходы.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

type Match struct {
	ID              int         `json:"id" db:"id"`
	TournamentID    int         `json:"tournament_id" db:"tournament_id"`
	RegistrationAID *int        `json:"registration_a_id,omitempty" db:"registration_a_id"`
	RegistrationBID *int        `json:"registration_b_id,omitempty" db:"registration_b_id"`
	Status          MatchStatus `json:"status" db:"status"`
	Score           *string     `json:"score,omitempty" db:"score"`
	ScheduledAt     time.Time   `json:"scheduled_at" db:"scheduled_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	// ResultData — произвольный результат force-complete (JSONB).
	ResultData json.RawMessage `json:"result_data,omitempty" db:"result_data"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// MatchNote — запись таймлайна матча (заметки судей, причины пауз и т.д.).
type MatchNote struct {
	ID        int       `json:"id" db:"id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	AuthorID  int       `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
