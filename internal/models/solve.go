package models

import "time"

// Solve is one entry in the append-only solve ledger: the fact that a user
// submitted the correct flag for a challenge. Rows are never updated or
// deleted by normal operation; every aggregate (user points, team points,
// leaderboards) can be rebuilt by replaying this table.
//
// Points holds the challenge's value at award time. Later admin edits to a
// challenge never change what was recorded here.
type Solve struct {
	ID          uint64 `gorm:"primarykey" json:"id"`
	UserID      uint64 `gorm:"not null;uniqueIndex:uniq_user_challenge" json:"user_id"`
	ChallengeID uint64 `gorm:"not null;uniqueIndex:uniq_user_challenge" json:"challenge_id"`
	// TeamID is the solver's team at submission time, nil for solo players.
	TeamID *uint64 `gorm:"index" json:"team_id"`
	Points uint    `gorm:"not null" json:"points"`
	// IsTeamSolve marks the submission that won the team its credit for
	// this challenge. Later submissions by teammates stay false.
	IsTeamSolve bool      `gorm:"not null;default:false" json:"is_team_solve"`
	CreatedAt   time.Time `json:"created_at"`

	// Relations
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Challenge Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
}
