package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soratobu/ctf-arena-api/internal/dto"
	apierrors "github.com/soratobu/ctf-arena-api/internal/errors"
	"github.com/soratobu/ctf-arena-api/internal/middleware"
	"github.com/soratobu/ctf-arena-api/internal/services"
)

// TeamHandler coordinates team formation and membership handlers.
type TeamHandler struct {
	teamService    *services.TeamService
	scoringService *services.ScoringService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teamService *services.TeamService, scoringService *services.ScoringService) *TeamHandler {
	return &TeamHandler{
		teamService:    teamService,
		scoringService: scoringService,
	}
}

// CreateTeam creates a team with the caller as leader.
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type CreateTeamRequest struct {
		Name     string `json:"name" binding:"required,min=2,max=100"`
		IsPublic *bool  `json:"is_public" binding:"required"`
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	team, err := h.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: userID,
		Name:     req.Name,
		IsPublic: *req.IsPublic,
	})
	if err != nil {
		respondTeamError(c, err)
		return
	}

	// The creator is a member, so the invite code is theirs to see.
	c.JSON(http.StatusCreated, dto.ToTeamDTO(*team, true))
}

// GetTeam returns a team and its roster. The invite code is included only
// for members.
func (h *TeamHandler) GetTeam(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}

	team, members, svcErr := h.teamService.GetTeamWithMembers(id)
	if svcErr != nil {
		respondTeamError(c, svcErr)
		return
	}

	includeInviteCode := false
	if userID, ok := middleware.GetUserID(c); ok {
		for _, member := range members {
			if member.UserID == userID {
				includeInviteCode = true
				break
			}
		}
	}

	c.JSON(http.StatusOK, dto.ToTeamDetailDTO(*team, members, includeInviteCode))
}

// GetTeamSolves returns the ledger entries credited to a team, oldest
// first. Credit absorbed from a joining member's history lives in the
// team's solved-set, not the ledger, so it does not appear here.
func (h *TeamHandler) GetTeamSolves(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}

	if _, _, svcErr := h.teamService.GetTeamWithMembers(id); svcErr != nil {
		respondTeamError(c, svcErr)
		return
	}

	solves, svcErr := h.scoringService.SolvesForTeam(id)
	if svcErr != nil {
		apierrors.InternalError(c, "")
		return
	}

	items := make([]dto.SolveDTO, len(solves))
	for i, solve := range solves {
		items[i] = dto.ToSolveDTO(solve)
	}

	c.JSON(http.StatusOK, gin.H{
		"solves": items,
	})
}

// GetMyTeam returns the caller's team.
func (h *TeamHandler) GetMyTeam(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	team, err := h.teamService.TeamForUser(userID)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	_, members, err := h.teamService.GetTeamWithMembers(team.ID)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamDetailDTO(*team, members, true))
}

// RequestJoin files a join request with a public team.
func (h *TeamHandler) RequestJoin(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}

	if err := h.teamService.RequestJoin(id, userID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Join request submitted",
	})
}

// ListJoinRequests lists a team's pending requests, members only.
func (h *TeamHandler) ListJoinRequests(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}

	requests, svcErr := h.teamService.ListJoinRequests(id, userID)
	if svcErr != nil {
		respondTeamError(c, svcErr)
		return
	}

	items := make([]dto.JoinRequestDTO, len(requests))
	for i, request := range requests {
		items[i] = dto.ToJoinRequestDTO(request)
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": items,
	})
}

// AcceptJoinRequest admits a pending requester.
func (h *TeamHandler) AcceptJoinRequest(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	teamID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}
	joiningUserID, err := parseIDParam(c, "user_id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid user id")
		return
	}

	result, svcErr := h.teamService.AcceptJoinRequest(teamID, joiningUserID, actorID)
	if svcErr != nil {
		respondTeamError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team":         dto.ToTeamDTO(*result.Team, false),
		"new_solves":   result.NewSolves,
		"points_added": result.PointsAdded,
	})
}

// RejectJoinRequest discards a pending request.
func (h *TeamHandler) RejectJoinRequest(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	teamID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}
	requesterID, err := parseIDParam(c, "user_id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid user id")
		return
	}

	if err := h.teamService.RejectJoinRequest(teamID, requesterID, actorID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Join request rejected",
	})
}

// JoinByInviteCode joins a private team directly.
func (h *TeamHandler) JoinByInviteCode(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type JoinRequest struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.teamService.JoinByInviteCode(userID, req.InviteCode)
	if err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team":         dto.ToTeamDTO(*result.Team, true),
		"new_solves":   result.NewSolves,
		"points_added": result.PointsAdded,
	})
}

// LeaveTeam removes the caller from their team.
func (h *TeamHandler) LeaveTeam(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := h.teamService.LeaveTeam(userID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Left team",
	})
}

// RemoveMember expels a member, leader only.
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	teamID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}
	targetID, err := parseIDParam(c, "user_id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid user id")
		return
	}

	if err := h.teamService.RemoveMember(teamID, targetID, actorID); err != nil {
		respondTeamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed",
	})
}

// RegenerateInviteCode rotates a private team's invite code, leader only.
func (h *TeamHandler) RegenerateInviteCode(c *gin.Context) {
	actorID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	teamID, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid team id")
		return
	}

	team, svcErr := h.teamService.RegenerateInviteCode(teamID, actorID)
	if svcErr != nil {
		respondTeamError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamDTO(*team, true))
}

func respondTeamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTeamNotFound):
		apierrors.NotFound(c, "Team not found")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrInvalidTeamName):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrTeamNameTaken):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeAlreadyExists, "Team name already exists")
	case errors.Is(err, services.ErrAlreadyInTeam):
		apierrors.Conflict(c, "You already belong to a team")
	case errors.Is(err, services.ErrAlreadyRequested):
		apierrors.Conflict(c, "You already have a pending join request")
	case errors.Is(err, services.ErrTeamFull):
		apierrors.ConflictWithCode(c, apierrors.ErrCodeTeamFull, "Team is full")
	case errors.Is(err, services.ErrNoPendingRequest):
		apierrors.NotFound(c, "No pending join request for this user")
	case errors.Is(err, services.ErrNotTeamMember):
		apierrors.Forbidden(c, "You are not a member of this team")
	case errors.Is(err, services.ErrNotTeamLeader):
		apierrors.Forbidden(c, "Only the team leader can do this")
	case errors.Is(err, services.ErrCannotRemoveLeader):
		apierrors.BadRequest(c, "The team leader cannot be removed")
	case errors.Is(err, services.ErrLeaderCannotLeave):
		apierrors.BadRequest(c, "Transfer leadership or remove members before leaving")
	case errors.Is(err, services.ErrTeamNotPublic):
		apierrors.Forbidden(c, "This team does not accept join requests")
	case errors.Is(err, services.ErrInvalidInviteCode):
		apierrors.NotFound(c, "Invalid invite code")
	case errors.Is(err, services.ErrInviteCodeForbidden):
		apierrors.BadRequest(c, "Public teams do not use invite codes")
	default:
		apierrors.InternalError(c, "")
	}
}
