package models

// Game представляет киберспортивную дисциплину (CS2, Dota 2 и т.д.).
type Game struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}
