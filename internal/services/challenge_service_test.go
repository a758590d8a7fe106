package services

import (
	"strings"
	"testing"

	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type challengeTestEnv struct {
	db         *gorm.DB
	challenges *ChallengeService
	notifier   *fakeNotifier
}

func setupChallengeTestEnv(t *testing.T) challengeTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Challenge{}))

	notifier := &fakeNotifier{}
	challenges := NewChallengeService(repository.NewChallengeRepository(db), notifier)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return challengeTestEnv{db: db, challenges: challenges, notifier: notifier}
}

func TestChallengeService_CreateChallenge_DefaultsToInactive(t *testing.T) {
	env := setupChallengeTestEnv(t)

	challenge, err := env.challenges.CreateChallenge(CreateChallengeInput{
		Name:     "heap-feng-shui",
		Category: "pwn",
		Points:   500,
		Flag:     "FLAG{heap}",
	})
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusInactive, challenge.Status)
	require.Equal(t, "FLAG{heap}", challenge.Flag)
}

func TestChallengeService_CreateChallenge_GeneratesFlag(t *testing.T) {
	env := setupChallengeTestEnv(t)

	challenge, err := env.challenges.CreateChallenge(CreateChallengeInput{
		Name:     "warmup",
		Category: "misc",
		Points:   50,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(challenge.Flag, "FLAG{"))
	require.True(t, strings.HasSuffix(challenge.Flag, "}"))
}

func TestChallengeService_CreateChallenge_Invalid(t *testing.T) {
	env := setupChallengeTestEnv(t)

	_, err := env.challenges.CreateChallenge(CreateChallengeInput{Category: "web", Points: 100})
	require.ErrorIs(t, err, ErrInvalidChallenge)

	_, err = env.challenges.CreateChallenge(CreateChallengeInput{Name: "x", Category: "web"})
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestChallengeService_PublishUnpublish(t *testing.T) {
	env := setupChallengeTestEnv(t)

	challenge, err := env.challenges.CreateChallenge(CreateChallengeInput{
		Name:     "warmup",
		Category: "misc",
		Points:   50,
	})
	require.NoError(t, err)

	published, err := env.challenges.PublishChallenge(challenge.ID)
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusActive, published.Status)
	require.Len(t, env.notifier.events, 1)
	require.Equal(t, EventChallengePublished, env.notifier.events[0].Type)

	hidden, err := env.challenges.UnpublishChallenge(challenge.ID)
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusInactive, hidden.Status)
}

func TestChallengeService_ListChallenges_PlayersSeeActiveOnly(t *testing.T) {
	env := setupChallengeTestEnv(t)

	visible, err := env.challenges.CreateChallenge(CreateChallengeInput{Name: "a", Category: "web", Points: 100})
	require.NoError(t, err)
	_, err = env.challenges.PublishChallenge(visible.ID)
	require.NoError(t, err)

	_, err = env.challenges.CreateChallenge(CreateChallengeInput{Name: "b", Category: "web", Points: 100})
	require.NoError(t, err)

	list, total, err := env.challenges.ListChallenges(ListChallengesInput{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	require.Equal(t, "a", list[0].Name)

	all, total, err := env.challenges.ListChallenges(ListChallengesInput{IncludeHidden: true, Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, all, 2)
}

func TestChallengeService_GetChallenge_HiddenLooksMissing(t *testing.T) {
	env := setupChallengeTestEnv(t)

	challenge, err := env.challenges.CreateChallenge(CreateChallengeInput{Name: "a", Category: "web", Points: 100})
	require.NoError(t, err)

	_, err = env.challenges.GetChallenge(challenge.ID, false)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	loaded, err := env.challenges.GetChallenge(challenge.ID, true)
	require.NoError(t, err)
	require.Equal(t, challenge.ID, loaded.ID)
}

func TestChallengeService_UpdateChallenge_Partial(t *testing.T) {
	env := setupChallengeTestEnv(t)

	challenge, err := env.challenges.CreateChallenge(CreateChallengeInput{Name: "a", Category: "web", Points: 100})
	require.NoError(t, err)

	newPoints := uint(250)
	updated, err := env.challenges.UpdateChallenge(challenge.ID, UpdateChallengeInput{Points: &newPoints})
	require.NoError(t, err)
	require.Equal(t, uint(250), updated.Points)
	require.Equal(t, "a", updated.Name)

	empty := ""
	_, err = env.challenges.UpdateChallenge(challenge.ID, UpdateChallengeInput{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidChallenge)
}
