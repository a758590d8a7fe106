package dto

import (
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
)

// ChallengeDTO is the player-facing challenge shape. The flag never leaves
// the server.
type ChallengeDTO struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Points      uint   `json:"points"`
	SolveCount  uint   `json:"solve_count"`
}

// ToChallengeDTO converts a challenge model to its player-facing DTO
func ToChallengeDTO(challenge models.Challenge) ChallengeDTO {
	return ChallengeDTO{
		ID:          challenge.ID,
		Name:        challenge.Name,
		Category:    challenge.Category,
		Description: challenge.Description,
		Points:      challenge.Points,
		SolveCount:  challenge.SolveCount,
	}
}

// AdminChallengeDTO includes the fields only admins may see
type AdminChallengeDTO struct {
	ChallengeDTO
	Flag      string    `json:"flag"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToAdminChallengeDTO converts a challenge model to its admin DTO
func ToAdminChallengeDTO(challenge models.Challenge) AdminChallengeDTO {
	return AdminChallengeDTO{
		ChallengeDTO: ToChallengeDTO(challenge),
		Flag:         challenge.Flag,
		Status:       string(challenge.Status),
		CreatedAt:    challenge.CreatedAt,
		UpdatedAt:    challenge.UpdatedAt,
	}
}
