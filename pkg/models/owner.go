package models

import (
	"time"

	"github.com/google/uuid"
)

// Owner is the user or team that uploads datasets. Every dataset and API key
// belongs to exactly one owner.
type Owner struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
