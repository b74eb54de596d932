package models

import "time"

// AuditAction — вид события в журнале аудита.
type AuditAction string

const (
	AuditRegistrationCheckin       AuditAction = "REGISTRATION_CHECKIN"
	AuditRegistrationCheckinRevert AuditAction = "REGISTRATION_CHECKIN_REVERT"
	AuditMatchLive                 AuditAction = "MATCH_LIVE"
	AuditMatchPaused               AuditAction = "MATCH_PAUSED"
	AuditMatchResumed              AuditAction = "MATCH_RESUMED"
	AuditMatchForceCompleted       AuditAction = "MATCH_FORCE_COMPLETED"
	AuditMatchNoteAdded            AuditAction = "MATCH_NOTE_ADDED"
	AuditStaffAssigned             AuditAction = "STAFF_ASSIGNED"
	AuditStaffDeactivated          AuditAction = "STAFF_DEACTIVATED"
)

// AuditEvent — запись журнала. Append-only: после записи никогда не
// обновляется и не удаляется.
type AuditEvent struct {
	ID           int                    `json:"id" db:"id"`
	EventID      string                 `json:"event_id" db:"event_id"` // ksuid
	ActorID      int                    `json:"actor_id" db:"actor_id"`
	Action       AuditAction            `json:"action" db:"action"`
	TournamentID int                    `json:"tournament_id" db:"tournament_id"`
	Metadata     map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}
