package models

import (
	"time"
)

type Team struct {
	ID       uint64 `gorm:"primarykey" json:"id"`
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	// NameKey is the lowercased name; the unique index makes team names
	// case-insensitively unique.
	NameKey     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"-"`
	LeaderID    uint64     `gorm:"not null" json:"leader_id"`
	IsPublic    bool       `gorm:"not null;default:true" json:"is_public"`
	InviteCode  string     `gorm:"type:varchar(50);index" json:"-"`
	Points      uint       `gorm:"not null;default:0" json:"points"`
	SolveCount  uint       `gorm:"not null;default:0" json:"solve_count"`
	LastSolveAt *time.Time `json:"last_solve_at"`
	// Version increments with every aggregate write so readers can detect
	// concurrent changes.
	Version   uint64    `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Leader  User         `gorm:"foreignKey:LeaderID" json:"leader,omitempty"`
	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}
