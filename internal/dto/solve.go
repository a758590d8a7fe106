package dto

import (
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
)

// SolveDTO represents one solve ledger entry in API responses
type SolveDTO struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	ChallengeID uint64    `json:"challenge_id"`
	TeamID      *uint64   `json:"team_id,omitempty"`
	Points      uint      `json:"points"`
	IsTeamSolve bool      `json:"is_team_solve"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToSolveDTO converts a solve model to DTO
func ToSolveDTO(solve models.Solve) SolveDTO {
	return SolveDTO{
		ID:          solve.ID,
		UserID:      solve.UserID,
		ChallengeID: solve.ChallengeID,
		TeamID:      solve.TeamID,
		Points:      solve.Points,
		IsTeamSolve: solve.IsTeamSolve,
		CreatedAt:   solve.CreatedAt,
	}
}
