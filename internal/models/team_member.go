package models

import "time"

type TeamRole string

const (
	TeamRoleLeader TeamRole = "leader"
	TeamRoleMember TeamRole = "member"
)

type TeamMember struct {
	TeamID   uint64   `gorm:"primarykey" json:"team_id"`
	UserID   uint64   `gorm:"primarykey;uniqueIndex" json:"user_id"`
	Role     TeamRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	// Relations
	Team Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
