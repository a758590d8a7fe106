package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/soratobu/ctf-arena-api/internal/repository"
)

// Aggregate staleness of a few hundred milliseconds is acceptable for
// leaderboard reads; 15 seconds keeps the board near-real-time while
// shielding the database from refresh storms.
const leaderboardCacheTTL = 15 * time.Second

// LeaderboardEntry is one row of a leaderboard projection.
type LeaderboardEntry struct {
	ID          uint64     `json:"id"`
	DisplayName string     `json:"display_name"`
	Points      uint       `json:"points"`
	SolveCount  uint       `json:"solve_count"`
	LastSolveAt *time.Time `json:"last_solve_at"`
	Rank        int        `json:"rank"`
}

// SolveFeedEntry is one row of the live solve feed.
type SolveFeedEntry struct {
	ChallengeID   uint64    `json:"challenge_id"`
	ChallengeName string    `json:"challenge_name"`
	UserID        uint64    `json:"user_id"`
	Username      string    `json:"username"`
	TeamID        *uint64   `json:"team_id"`
	Points        uint      `json:"points"`
	IsTeamSolve   bool      `json:"is_team_solve"`
	SolvedAt      time.Time `json:"solved_at"`
}

// LeaderboardService builds read-only projections over the aggregates, with
// a short-lived Redis cache in front. The database stays authoritative:
// cache failures fall through to SQL and are only logged.
type LeaderboardService struct {
	userRepo  repository.UserRepository
	teamRepo  repository.TeamRepository
	solveRepo repository.SolveRepository
	cache     *redis.Client
}

// NewLeaderboardService creates a new LeaderboardService. A nil cache client
// disables caching.
func NewLeaderboardService(
	userRepo repository.UserRepository,
	teamRepo repository.TeamRepository,
	solveRepo repository.SolveRepository,
	cache *redis.Client,
) *LeaderboardService {
	return &LeaderboardService{
		userRepo:  userRepo,
		teamRepo:  teamRepo,
		solveRepo: solveRepo,
		cache:     cache,
	}
}

// TopTeams returns the team leaderboard ordered by points descending;
// equal-point teams rank by earlier last solve, rewarding speed.
func (s *LeaderboardService) TopTeams(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	cacheKey := fmt.Sprintf("leaderboard:teams:%d", limit)
	if entries, ok := s.fromCache(ctx, cacheKey); ok {
		return entries, nil
	}

	teams, err := s.teamRepo.TopByPoints(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query team leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, len(teams))
	for i, team := range teams {
		entries[i] = LeaderboardEntry{
			ID:          team.ID,
			DisplayName: team.Name,
			Points:      team.Points,
			SolveCount:  team.SolveCount,
			LastSolveAt: team.LastSolveAt,
			Rank:        i + 1,
		}
	}

	s.toCache(ctx, cacheKey, entries)
	return entries, nil
}

// TopUsers returns the individual leaderboard with the same ordering rules
// as TopTeams.
func (s *LeaderboardService) TopUsers(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	cacheKey := fmt.Sprintf("leaderboard:users:%d", limit)
	if entries, ok := s.fromCache(ctx, cacheKey); ok {
		return entries, nil
	}

	users, err := s.userRepo.TopByPoints(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, len(users))
	for i, user := range users {
		entries[i] = LeaderboardEntry{
			ID:          user.ID,
			DisplayName: user.Username,
			Points:      user.Points,
			SolveCount:  user.SolveCount,
			LastSolveAt: user.LastSolveAt,
			Rank:        i + 1,
		}
	}

	s.toCache(ctx, cacheKey, entries)
	return entries, nil
}

// RecentSolves returns the newest ledger entries for the live solve feed.
func (s *LeaderboardService) RecentSolves(limit int) ([]SolveFeedEntry, error) {
	solves, err := s.solveRepo.ListRecent(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query solve feed: %w", err)
	}

	feed := make([]SolveFeedEntry, len(solves))
	for i, solve := range solves {
		feed[i] = SolveFeedEntry{
			ChallengeID:   solve.ChallengeID,
			ChallengeName: solve.Challenge.Name,
			UserID:        solve.UserID,
			Username:      solve.User.Username,
			TeamID:        solve.TeamID,
			Points:        solve.Points,
			IsTeamSolve:   solve.IsTeamSolve,
			SolvedAt:      solve.CreatedAt,
		}
	}
	return feed, nil
}

func (s *LeaderboardService) fromCache(ctx context.Context, key string) ([]LeaderboardEntry, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("key", key).Warn("leaderboard cache read failed")
		}
		return nil, false
	}

	var entries []LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("leaderboard cache entry corrupt")
		return nil, false
	}
	return entries, true
}

func (s *LeaderboardService) toCache(ctx context.Context, key string, entries []LeaderboardEntry) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, leaderboardCacheTTL).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("leaderboard cache write failed")
	}
}
