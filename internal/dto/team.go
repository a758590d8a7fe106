package dto

import (
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
)

// TeamDTO represents a team in API responses. The invite code is only
// included for the team's own members.
type TeamDTO struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	LeaderID    uint64     `json:"leader_id"`
	IsPublic    bool       `json:"is_public"`
	InviteCode  string     `json:"invite_code,omitempty"`
	Points      uint       `json:"points"`
	SolveCount  uint       `json:"solve_count"`
	LastSolveAt *time.Time `json:"last_solve_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToTeamDTO converts a team model to DTO
func ToTeamDTO(team models.Team, includeInviteCode bool) TeamDTO {
	d := TeamDTO{
		ID:          team.ID,
		Name:        team.Name,
		LeaderID:    team.LeaderID,
		IsPublic:    team.IsPublic,
		Points:      team.Points,
		SolveCount:  team.SolveCount,
		LastSolveAt: team.LastSolveAt,
		CreatedAt:   team.CreatedAt,
	}
	if includeInviteCode {
		d.InviteCode = team.InviteCode
	}
	return d
}

// TeamMemberDTO represents one roster entry
type TeamMemberDTO struct {
	User     PublicUserDTO   `json:"user"`
	Role     models.TeamRole `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
}

// ToTeamMemberDTO converts a member to DTO
func ToTeamMemberDTO(member models.TeamMember) TeamMemberDTO {
	return TeamMemberDTO{
		User:     ToPublicUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// TeamDetailDTO represents a team with its roster
type TeamDetailDTO struct {
	TeamDTO
	Members []TeamMemberDTO `json:"members"`
}

// ToTeamDetailDTO converts a team and roster to the detailed DTO
func ToTeamDetailDTO(team models.Team, members []models.TeamMember, includeInviteCode bool) TeamDetailDTO {
	memberDTOs := make([]TeamMemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = ToTeamMemberDTO(member)
	}

	return TeamDetailDTO{
		TeamDTO: ToTeamDTO(team, includeInviteCode),
		Members: memberDTOs,
	}
}

// JoinRequestDTO represents a pending join request
type JoinRequestDTO struct {
	User      PublicUserDTO `json:"user"`
	CreatedAt time.Time     `json:"created_at"`
}

// ToJoinRequestDTO converts a join request to DTO
func ToJoinRequestDTO(request models.JoinRequest) JoinRequestDTO {
	return JoinRequestDTO{
		User:      ToPublicUserDTO(request.User),
		CreatedAt: request.CreatedAt,
	}
}
