package models

import "time"

// TeamMemberRole — роль участника внутри команды. Единственная каноничная
// схема состава: owner управляет командой и регистрациями.
type TeamMemberRole string

const (
	TeamRoleOwner   TeamMemberRole = "owner"
	TeamRoleManager TeamMemberRole = "manager"
	TeamRolePlayer  TeamMemberRole = "player"
)

// TeamMemberStatus — активность участника в составе.
type TeamMemberStatus string

const (
	TeamMemberActive   TeamMemberStatus = "active"
	TeamMemberInactive TeamMemberStatus = "inactive"
)

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	GameID    int       `json:"game_id" db:"game_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Game    *Game        `json:"game,omitempty" db:"-"`
	Members []TeamMember `json:"members,omitempty" db:"-"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

type TeamMember struct {
	ID       int              `json:"id" db:"id"`
	TeamID   int              `json:"team_id" db:"team_id"`
	UserID   int              `json:"user_id" db:"user_id"`
	Role     TeamMemberRole   `json:"role" db:"role"`
	Status   TeamMemberStatus `json:"status" db:"status"`
	JoinedAt time.Time        `json:"joined_at" db:"joined_at"`

	User *User `json:"user,omitempty" db:"-"`
}
