package models

import "time"

// TeamSolve records that a team holds credit for a challenge. The composite
// primary key is the linearization point for "first team solve": when
// teammates race on the same flag, exactly one insert succeeds and the rest
// degrade to personal-only credit.
//
// Rows come from two places: a member submitting the team's first correct
// flag for the challenge (SolvedBy set), or absorption of a joining member's
// prior solves (SolvedBy nil). Team credit is sticky; rows are not removed
// when a member leaves.
type TeamSolve struct {
	TeamID      uint64 `gorm:"primarykey" json:"team_id"`
	ChallengeID uint64 `gorm:"primarykey" json:"challenge_id"`
	// Points is the value credited to the team, recorded at credit time.
	Points    uint      `gorm:"not null" json:"points"`
	SolvedBy  *uint64   `json:"solved_by"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Team      Team      `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Challenge Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
}
