package models

import "time"

// JoinRequest is a pending request to join a public team. A row exists only
// while the request is undecided; acceptance and rejection both delete it.
type JoinRequest struct {
	TeamID    uint64    `gorm:"primarykey" json:"team_id"`
	UserID    uint64    `gorm:"primarykey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Team Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
