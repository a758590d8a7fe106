package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/soratobu/ctf-arena-api/internal/constants"
	"github.com/soratobu/ctf-arena-api/internal/database"
	"github.com/soratobu/ctf-arena-api/internal/dto"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/soratobu/ctf-arena-api/internal/services"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type teamHandlerTestEnv struct {
	db             *gorm.DB
	handler        *TeamHandler
	teamService    *services.TeamService
	scoringService *services.ScoringService
}

func setupTeamHandlerTestEnv(t *testing.T) teamHandlerTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.JoinRequest{},
		&models.Challenge{},
		&models.Solve{},
		&models.TeamSolve{},
	)
	require.NoError(t, err)

	database.SetDB(db)

	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	solveRepo := repository.NewSolveRepository(db)

	notifier := services.NewRedisNotifier(nil)
	teamService := services.NewTeamService(userRepo, teamRepo, solveRepo, notifier)
	scoringService := services.NewScoringService(userRepo, challengeRepo, teamRepo, solveRepo, notifier)
	handler := NewTeamHandler(teamService, scoringService)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return teamHandlerTestEnv{
		db:             db,
		handler:        handler,
		teamService:    teamService,
		scoringService: scoringService,
	}
}

func teamTestContext(method, url string, body []byte, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyUserID, userID)

	return c, w
}

func createTestTeamUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestTeamHandler_CreateTeam(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	user := createTestTeamUser(t, env.db, "leader")

	payload := map[string]interface{}{"name": "Night Owls", "is_public": false}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodPost, "/api/teams", body, user.ID)

	env.handler.CreateTeam(c)

	require.Equal(t, http.StatusCreated, w.Code)

	var response dto.TeamDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, "Night Owls", response.Name)
	require.Equal(t, user.ID, response.LeaderID)
	require.False(t, response.IsPublic)
	require.NotEmpty(t, response.InviteCode)
}

func TestTeamHandler_CreateTeam_NameTaken(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	first := createTestTeamUser(t, env.db, "first")
	second := createTestTeamUser(t, env.db, "second")

	_, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: first.ID,
		Name:     "Night Owls",
		IsPublic: true,
	})
	require.NoError(t, err)

	payload := map[string]interface{}{"name": "night owls", "is_public": true}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodPost, "/api/teams", body, second.ID)

	env.handler.CreateTeam(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTeamHandler_GetTeam_InviteCodeHiddenFromOutsiders(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	outsider := createTestTeamUser(t, env.db, "outsider")

	team, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Shadow Cell",
		IsPublic: false,
	})
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodGet, "/api/teams/1", nil, outsider.ID)
	c.Params = gin.Params{{Key: "id", Value: itoa(team.ID)}}

	env.handler.GetTeam(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), team.InviteCode)

	// The leader sees the code.
	c, w = teamTestContext(http.MethodGet, "/api/teams/1", nil, leader.ID)
	c.Params = gin.Params{{Key: "id", Value: itoa(team.ID)}}

	env.handler.GetTeam(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), team.InviteCode)
}

func TestTeamHandler_AcceptJoinRequest(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	joiner := createTestTeamUser(t, env.db, "joiner")

	team, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Owls",
		IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, env.teamService.RequestJoin(team.ID, joiner.ID))

	c, w := teamTestContext(http.MethodPost, "/api/teams/1/requests/2/accept", nil, leader.ID)
	c.Params = gin.Params{
		{Key: "id", Value: itoa(team.ID)},
		{Key: "user_id", Value: itoa(joiner.ID)},
	}

	env.handler.AcceptJoinRequest(c)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Contains(t, response, "team")
	require.Contains(t, response, "new_solves")
	require.Contains(t, response, "points_added")

	var members int64
	require.NoError(t, env.db.Model(&models.TeamMember{}).
		Where("team_id = ?", team.ID).Count(&members).Error)
	require.Equal(t, int64(2), members)
}

func TestTeamHandler_AcceptJoinRequest_NoPendingRequest(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	stranger := createTestTeamUser(t, env.db, "stranger")

	team, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Owls",
		IsPublic: true,
	})
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodPost, "/api/teams/1/requests/2/accept", nil, leader.ID)
	c.Params = gin.Params{
		{Key: "id", Value: itoa(team.ID)},
		{Key: "user_id", Value: itoa(stranger.ID)},
	}

	env.handler.AcceptJoinRequest(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeamHandler_GetTeamSolves(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	team, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Owls",
		IsPublic: true,
	})
	require.NoError(t, err)

	challenge := &models.Challenge{
		Name:     "pwn-me",
		Category: "pwn",
		Points:   100,
		Flag:     "FLAG{pwn-me}",
		Status:   models.ChallengeStatusActive,
	}
	require.NoError(t, env.db.Create(challenge).Error)

	_, err = env.scoringService.SubmitFlag(leader.ID, challenge.ID, challenge.Flag)
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodGet, "/api/teams/1/solves", nil, leader.ID)
	c.Params = gin.Params{{Key: "id", Value: itoa(team.ID)}}

	env.handler.GetTeamSolves(c)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Solves []dto.SolveDTO `json:"solves"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Solves, 1)
	require.Equal(t, challenge.ID, response.Solves[0].ChallengeID)
	require.Equal(t, uint(100), response.Solves[0].Points)
	require.True(t, response.Solves[0].IsTeamSolve)
}

func TestTeamHandler_GetTeamSolves_TeamNotFound(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	user := createTestTeamUser(t, env.db, "player")

	c, w := teamTestContext(http.MethodGet, "/api/teams/999/solves", nil, user.ID)
	c.Params = gin.Params{{Key: "id", Value: "999"}}

	env.handler.GetTeamSolves(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeamHandler_LeaveTeam(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	_, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Owls",
		IsPublic: true,
	})
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodPost, "/api/teams/leave", nil, leader.ID)

	env.handler.LeaveTeam(c)

	require.Equal(t, http.StatusOK, w.Code)

	c, w = teamTestContext(http.MethodGet, "/api/teams/me", nil, leader.ID)
	env.handler.GetMyTeam(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTeamHandler_RemoveMember_NotLeader(t *testing.T) {
	env := setupTeamHandlerTestEnv(t)

	leader := createTestTeamUser(t, env.db, "leader")
	mate := createTestTeamUser(t, env.db, "mate")

	team, err := env.teamService.CreateTeam(services.CreateTeamInput{
		LeaderID: leader.ID,
		Name:     "Owls",
		IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, env.teamService.RequestJoin(team.ID, mate.ID))
	_, err = env.teamService.AcceptJoinRequest(team.ID, mate.ID, leader.ID)
	require.NoError(t, err)

	c, w := teamTestContext(http.MethodDelete, "/api/teams/1/members/1", nil, mate.ID)
	c.Params = gin.Params{
		{Key: "id", Value: itoa(team.ID)},
		{Key: "user_id", Value: itoa(leader.ID)},
	}

	env.handler.RemoveMember(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}
