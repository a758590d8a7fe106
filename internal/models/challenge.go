package models

import (
	"time"

	"gorm.io/gorm"
)

type ChallengeStatus string

const (
	ChallengeStatusActive   ChallengeStatus = "active"
	ChallengeStatusInactive ChallengeStatus = "inactive"
)

type Challenge struct {
	ID          uint64          `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Category    string          `gorm:"type:varchar(50);not null" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	Points      uint            `gorm:"not null" json:"points"`
	Flag        string          `gorm:"type:varchar(255);not null" json:"-"`
	Status      ChallengeStatus `gorm:"type:varchar(20);not null;default:'inactive'" json:"status"`
	SolveCount  uint            `gorm:"not null;default:0" json:"solve_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
