package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soratobu/ctf-arena-api/internal/constants"
	apierrors "github.com/soratobu/ctf-arena-api/internal/errors"
	"github.com/soratobu/ctf-arena-api/internal/services"
)

// LeaderboardHandler serves the leaderboard and solve feed projections.
type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

// TopTeams returns the team leaderboard.
func (h *LeaderboardHandler) TopTeams(c *gin.Context) {
	limit := limitQuery(c, constants.DefaultLeaderboardLimit)

	entries, err := h.leaderboardService.TopTeams(c.Request.Context(), limit)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teams": entries,
	})
}

// TopUsers returns the individual leaderboard.
func (h *LeaderboardHandler) TopUsers(c *gin.Context) {
	limit := limitQuery(c, constants.DefaultLeaderboardLimit)

	entries, err := h.leaderboardService.TopUsers(c.Request.Context(), limit)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": entries,
	})
}

// RecentSolves returns the live solve feed.
func (h *LeaderboardHandler) RecentSolves(c *gin.Context) {
	limit := limitQuery(c, constants.DefaultSolveFeedLimit)

	feed, err := h.leaderboardService.RecentSolves(limit)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"solves": feed,
	})
}

func limitQuery(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil || limit <= 0 || limit > constants.MaxPageSize {
		return fallback
	}
	return limit
}
