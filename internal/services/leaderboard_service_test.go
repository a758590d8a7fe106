package services

import (
	"context"
	"testing"
	"time"

	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type leaderboardTestEnv struct {
	db          *gorm.DB
	leaderboard *LeaderboardService
}

func setupLeaderboardTestEnv(t *testing.T) leaderboardTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Challenge{},
		&models.Solve{},
		&models.TeamSolve{},
	)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	solveRepo := repository.NewSolveRepository(db)

	// nil cache: the database path is what these tests exercise.
	leaderboard := NewLeaderboardService(userRepo, teamRepo, solveRepo, nil)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return leaderboardTestEnv{db: db, leaderboard: leaderboard}
}

func TestLeaderboardService_TopUsers_Ordering(t *testing.T) {
	env := setupLeaderboardTestEnv(t)

	early := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	users := []models.User{
		{Username: "slow", Email: "slow@example.com", PasswordHash: "h", Points: 300, SolveCount: 3, LastSolveAt: &late},
		{Username: "fast", Email: "fast@example.com", PasswordHash: "h", Points: 300, SolveCount: 3, LastSolveAt: &early},
		{Username: "top", Email: "top@example.com", PasswordHash: "h", Points: 500, SolveCount: 5, LastSolveAt: &late},
		{Username: "idle", Email: "idle@example.com", PasswordHash: "h", Points: 0, SolveCount: 0},
	}
	for i := range users {
		require.NoError(t, env.db.Create(&users[i]).Error)
	}

	entries, err := env.leaderboard.TopUsers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Highest points first; ties broken by the earlier last solve.
	require.Equal(t, "top", entries[0].DisplayName)
	require.Equal(t, "fast", entries[1].DisplayName)
	require.Equal(t, "slow", entries[2].DisplayName)
	require.Equal(t, "idle", entries[3].DisplayName)

	for i, entry := range entries {
		require.Equal(t, i+1, entry.Rank)
	}
}

func TestLeaderboardService_TopTeams_Ordering(t *testing.T) {
	env := setupLeaderboardTestEnv(t)

	early := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	teams := []models.Team{
		{Name: "Beta", NameKey: "beta", LeaderID: 1, Points: 400, SolveCount: 4, LastSolveAt: &late},
		{Name: "Alpha", NameKey: "alpha", LeaderID: 2, Points: 400, SolveCount: 4, LastSolveAt: &early},
		{Name: "Gamma", NameKey: "gamma", LeaderID: 3, Points: 100, SolveCount: 1, LastSolveAt: &early},
	}
	for i := range teams {
		require.NoError(t, env.db.Create(&teams[i]).Error)
	}

	entries, err := env.leaderboard.TopTeams(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "Alpha", entries[0].DisplayName)
	require.Equal(t, "Beta", entries[1].DisplayName)
	require.Equal(t, "Gamma", entries[2].DisplayName)
}

func TestLeaderboardService_TopTeams_Limit(t *testing.T) {
	env := setupLeaderboardTestEnv(t)

	for i, name := range []string{"one", "two", "three"} {
		team := models.Team{Name: name, NameKey: name, LeaderID: uint64(i + 1), Points: uint(100 * (i + 1))}
		require.NoError(t, env.db.Create(&team).Error)
	}

	entries, err := env.leaderboard.TopTeams(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "three", entries[0].DisplayName)
}

func TestLeaderboardService_RecentSolves(t *testing.T) {
	env := setupLeaderboardTestEnv(t)

	user := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, env.db.Create(&user).Error)

	challenges := []models.Challenge{
		{Name: "web-1", Category: "web", Points: 100, Flag: "f1", Status: models.ChallengeStatusActive},
		{Name: "web-2", Category: "web", Points: 200, Flag: "f2", Status: models.ChallengeStatusActive},
	}
	for i := range challenges {
		require.NoError(t, env.db.Create(&challenges[i]).Error)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	solves := []models.Solve{
		{UserID: user.ID, ChallengeID: challenges[0].ID, Points: 100, CreatedAt: base},
		{UserID: user.ID, ChallengeID: challenges[1].ID, Points: 200, CreatedAt: base.Add(time.Hour)},
	}
	for i := range solves {
		require.NoError(t, env.db.Create(&solves[i]).Error)
	}

	feed, err := env.leaderboard.RecentSolves(10)
	require.NoError(t, err)
	require.Len(t, feed, 2)

	// Newest first, with challenge and user context resolved.
	require.Equal(t, "web-2", feed[0].ChallengeName)
	require.Equal(t, "alice", feed[0].Username)
	require.Equal(t, uint(200), feed[0].Points)
	require.Equal(t, "web-1", feed[1].ChallengeName)
}
