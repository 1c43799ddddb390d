package models

// Game is one catalog entity. Price and FreeToPlay are already resolved by the
// ingestion layer ("free"/"demo" prices arrive as 0).
type Game struct {
	ItemID      string   `json:"item_id" db:"item_id" validate:"required"`
	Name        string   `json:"name" db:"app_name"`
	Developer   string   `json:"developer,omitempty" db:"developer"`
	Price       float64  `json:"price" db:"price" validate:"gte=0"`
	ReleaseYear *int     `json:"release_year,omitempty" db:"release_year"`
	FreeToPlay  bool     `json:"free_to_play" db:"free_to_play"`
	Categories  []string `json:"categories,omitempty" db:"genres"`
}

// DisplayName returns the game name, falling back to the id for unnamed rows.
func (g Game) DisplayName() string {
	if g.Name == "" {
		return g.ItemID
	}
	return g.Name
}
