package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soratobu/ctf-arena-api/internal/dto"
	apierrors "github.com/soratobu/ctf-arena-api/internal/errors"
	"github.com/soratobu/ctf-arena-api/internal/middleware"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/services"
	"github.com/soratobu/ctf-arena-api/internal/utils"
)

// ChallengeHandler coordinates challenge catalog and flag submission
// handlers.
type ChallengeHandler struct {
	challengeService *services.ChallengeService
	scoringService   *services.ScoringService
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(challengeService *services.ChallengeService, scoringService *services.ScoringService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		scoringService:   scoringService,
	}
}

// ListChallenges returns active challenges for players.
func (h *ChallengeHandler) ListChallenges(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	challenges, total, err := h.challengeService.ListChallenges(services.ListChallengesInput{
		Category: c.Query("category"),
		Page:     params.Page,
		PageSize: params.Limit,
	})
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	items := make([]dto.ChallengeDTO, len(challenges))
	for i, challenge := range challenges {
		items[i] = dto.ToChallengeDTO(challenge)
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges": items,
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// GetChallenge returns one active challenge.
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid challenge id")
		return
	}

	challenge, err := h.challengeService.GetChallenge(id, false)
	if err != nil {
		if errors.Is(err, services.ErrChallengeNotFound) {
			apierrors.NotFound(c, "Challenge not found")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToChallengeDTO(*challenge))
}

// SubmitFlag accepts a flag submission for a challenge.
func (h *ChallengeHandler) SubmitFlag(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid challenge id")
		return
	}

	type SubmitRequest struct {
		Flag string `json:"flag" binding:"required"`
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.scoringService.SubmitFlag(userID, id, req.Flag)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChallengeNotFound), errors.Is(err, services.ErrChallengeInactive):
			apierrors.NotFound(c, "Challenge not found")
		case errors.Is(err, services.ErrUserNotFound):
			apierrors.Unauthorized(c, "")
		case errors.Is(err, services.ErrAlreadySolved):
			apierrors.ConflictWithCode(c, apierrors.ErrCodeAlreadySolved, "You already solved this challenge")
		case errors.Is(err, services.ErrWrongFlag):
			apierrors.BadRequestWithCode(c, apierrors.ErrCodeWrongFlag, "Incorrect flag")
		default:
			apierrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"correct":          true,
		"points_awarded":   result.PointsAwarded,
		"first_team_solve": result.FirstTeamSolve,
		"solved_at":        result.SolvedAt,
	})
}

// AdminListChallenges returns all challenges, hidden included.
func (h *ChallengeHandler) AdminListChallenges(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	challenges, total, err := h.challengeService.ListChallenges(services.ListChallengesInput{
		Category:      c.Query("category"),
		IncludeHidden: true,
		Page:          params.Page,
		PageSize:      params.Limit,
	})
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	items := make([]dto.AdminChallengeDTO, len(challenges))
	for i, challenge := range challenges {
		items[i] = dto.ToAdminChallengeDTO(challenge)
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges": items,
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// CreateChallenge creates a challenge (admin).
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	type CreateRequest struct {
		Name        string `json:"name" binding:"required"`
		Category    string `json:"category" binding:"required"`
		Description string `json:"description"`
		Points      uint   `json:"points" binding:"required,gt=0"`
		Flag        string `json:"flag"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	challenge, err := h.challengeService.CreateChallenge(services.CreateChallengeInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Points:      req.Points,
		Flag:        req.Flag,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidChallenge) {
			apierrors.BadRequest(c, err.Error())
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, dto.ToAdminChallengeDTO(*challenge))
}

// UpdateChallenge updates catalog fields of a challenge (admin).
func (h *ChallengeHandler) UpdateChallenge(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid challenge id")
		return
	}

	type UpdateRequest struct {
		Name        *string `json:"name"`
		Category    *string `json:"category"`
		Description *string `json:"description"`
		Points      *uint   `json:"points"`
		Flag        *string `json:"flag"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	challenge, err := h.challengeService.UpdateChallenge(id, services.UpdateChallengeInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Points:      req.Points,
		Flag:        req.Flag,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChallengeNotFound):
			apierrors.NotFound(c, "Challenge not found")
		case errors.Is(err, services.ErrInvalidChallenge), errors.Is(err, services.ErrChallengePointsFixed):
			apierrors.BadRequest(c, err.Error())
		default:
			apierrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToAdminChallengeDTO(*challenge))
}

// PublishChallenge makes a challenge visible and solvable (admin).
func (h *ChallengeHandler) PublishChallenge(c *gin.Context) {
	h.setStatus(c, true)
}

// UnpublishChallenge hides a challenge (admin).
func (h *ChallengeHandler) UnpublishChallenge(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *ChallengeHandler) setStatus(c *gin.Context, publish bool) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		apierrors.BadRequest(c, "Invalid challenge id")
		return
	}

	var challenge *models.Challenge
	if publish {
		challenge, err = h.challengeService.PublishChallenge(id)
	} else {
		challenge, err = h.challengeService.UnpublishChallenge(id)
	}
	if err != nil {
		if errors.Is(err, services.ErrChallengeNotFound) {
			apierrors.NotFound(c, "Challenge not found")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToAdminChallengeDTO(*challenge))
}

func parseIDParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
