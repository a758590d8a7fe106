package dto

import (
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Points      uint       `json:"points"`
	SolveCount  uint       `json:"solve_count"`
	LastSolveAt *time.Time `json:"last_solve_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToUserDTO converts a user model to DTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        string(user.Role),
		Points:      user.Points,
		SolveCount:  user.SolveCount,
		LastSolveAt: user.LastSolveAt,
		CreatedAt:   user.CreatedAt,
	}
}

// PublicUserDTO is the cut-down shape exposed to other players
type PublicUserDTO struct {
	ID         uint64 `json:"id"`
	Username   string `json:"username"`
	Points     uint   `json:"points"`
	SolveCount uint   `json:"solve_count"`
}

// ToPublicUserDTO converts a user model to its public DTO
func ToPublicUserDTO(user models.User) PublicUserDTO {
	return PublicUserDTO{
		ID:         user.ID,
		Username:   user.Username,
		Points:     user.Points,
		SolveCount: user.SolveCount,
	}
}
