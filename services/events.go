package services

import (
	"fmt"
	"time"
)

// EventBroadcaster — fan-out подписчикам живых обновлений. Контракт
// at-most-once: Publish никогда не возвращает ошибку и не блокирует
// операцию-источник; сбой доставки — проблема подписчика, не транзакции.
type EventBroadcaster interface {
	Publish(channel string, payload interface{})
}

// TournamentChannel — имя канала живых обновлений турнира.
func TournamentChannel(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

const (
	EventCheckinUpdated = "CHECKIN_UPDATED"
	EventMatchUpdated   = "MATCH_UPDATED"
)

type CheckinEvent struct {
	Type           string     `json:"type"`
	TournamentID   int        `json:"tournament_id"`
	RegistrationID int        `json:"registration_id"`
	CheckedIn      bool       `json:"checked_in"`
	CheckedInAt    *time.Time `json:"checked_in_at"`
}

type MatchEvent struct {
	Type         string `json:"type"`
	TournamentID int    `json:"tournament_id"`
	MatchID      int    `json:"match_id"`
	Status       string `json:"status"`
}
