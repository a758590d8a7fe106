package main

import (
	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/soratobu/ctf-arena-api/internal/config"
	"github.com/soratobu/ctf-arena-api/internal/constants"
	"github.com/soratobu/ctf-arena-api/internal/database"
	"github.com/soratobu/ctf-arena-api/internal/handlers"
	"github.com/soratobu/ctf-arena-api/internal/middleware"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/soratobu/ctf-arena-api/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	gin.SetMode(cfg.GinMode)
	if cfg.GinMode == "release" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := database.Connect(cfg); err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	redisClient, err := database.ConnectRedis(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}

	r := gin.Default()

	store, err := redisStore.NewStore(
		10,
		"tcp",
		cfg.RedisAddr(),
		"", // password
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create session store")
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	solveRepo := repository.NewSolveRepository(db)

	notifier := services.NewRedisNotifier(redisClient)
	authService := services.NewAuthService(userRepo)
	challengeService := services.NewChallengeService(challengeRepo, notifier)
	scoringService := services.NewScoringService(userRepo, challengeRepo, teamRepo, solveRepo, notifier)
	teamService := services.NewTeamService(userRepo, teamRepo, solveRepo, notifier)
	leaderboardService := services.NewLeaderboardService(userRepo, teamRepo, solveRepo, redisClient)

	authHandler := handlers.NewAuthHandler(authService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, scoringService)
	teamHandler := handlers.NewTeamHandler(teamService, scoringService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		challenges := api.Group("/challenges")
		challenges.Use(middleware.RequireAuth())
		{
			challenges.GET("", challengeHandler.ListChallenges)
			challenges.GET("/:id", challengeHandler.GetChallenge)
			challenges.POST("/:id/submit", challengeHandler.SubmitFlag)
		}

		teams := api.Group("/teams")
		teams.Use(middleware.RequireAuth())
		{
			teams.POST("", teamHandler.CreateTeam)
			teams.GET("/me", teamHandler.GetMyTeam)
			teams.POST("/join", teamHandler.JoinByInviteCode)
			teams.POST("/leave", teamHandler.LeaveTeam)
			teams.GET("/:id", teamHandler.GetTeam)
			teams.GET("/:id/solves", teamHandler.GetTeamSolves)
			teams.POST("/:id/requests", teamHandler.RequestJoin)
			teams.GET("/:id/requests", teamHandler.ListJoinRequests)
			teams.POST("/:id/requests/:user_id/accept", teamHandler.AcceptJoinRequest)
			teams.DELETE("/:id/requests/:user_id", teamHandler.RejectJoinRequest)
			teams.DELETE("/:id/members/:user_id", teamHandler.RemoveMember)
			teams.POST("/:id/regenerate-code", teamHandler.RegenerateInviteCode)
		}

		leaderboard := api.Group("/leaderboard")
		{
			leaderboard.GET("/teams", leaderboardHandler.TopTeams)
			leaderboard.GET("/users", leaderboardHandler.TopUsers)
			leaderboard.GET("/solves", leaderboardHandler.RecentSolves)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(), middleware.RequireAdmin())
		{
			admin.GET("/challenges", challengeHandler.AdminListChallenges)
			admin.POST("/challenges", challengeHandler.CreateChallenge)
			admin.PUT("/challenges/:id", challengeHandler.UpdateChallenge)
			admin.POST("/challenges/:id/publish", challengeHandler.PublishChallenge)
			admin.POST("/challenges/:id/unpublish", challengeHandler.UnpublishChallenge)
		}
	}

	logrus.Info("server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		logrus.WithError(err).Fatal("failed to start server")
	}
}
