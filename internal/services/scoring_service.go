package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrAlreadySolved = errors.New("challenge already solved by this user")
	ErrWrongFlag     = errors.New("wrong flag")
)

// Optimistic-concurrency conflicts are expected when teammates race on the
// same flag, so the ledger append is retried a bounded number of times.
const (
	submitMaxAttempts  = 3
	submitRetryBackoff = 25 * time.Millisecond
)

// ScoringService is the scoring engine: the single owner of the rules that
// keep user points, team points, and solved-sets consistent as flags are
// submitted concurrently. All writes go through the solve ledger; the
// denormalized aggregates are a projection maintained in the same
// transaction.
type ScoringService struct {
	userRepo      repository.UserRepository
	challengeRepo repository.ChallengeRepository
	teamRepo      repository.TeamRepository
	solveRepo     repository.SolveRepository
	notifier      Notifier
}

// NewScoringService creates a new ScoringService.
func NewScoringService(
	userRepo repository.UserRepository,
	challengeRepo repository.ChallengeRepository,
	teamRepo repository.TeamRepository,
	solveRepo repository.SolveRepository,
	notifier Notifier,
) *ScoringService {
	return &ScoringService{
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		teamRepo:      teamRepo,
		solveRepo:     solveRepo,
		notifier:      notifier,
	}
}

// SubmitResult reports an accepted flag submission.
type SubmitResult struct {
	// PointsAwarded is the submitter's personal award, always the full
	// challenge value on a first personal solve. Points are never split
	// among teammates.
	PointsAwarded uint
	// FirstTeamSolve is true when this submission also won the team its
	// credit for the challenge. Teammates who solve later keep personal
	// credit but add nothing to the team aggregate.
	FirstTeamSolve bool
	SolvedAt       time.Time
}

// SubmitFlag validates a flag submission and, when correct, appends it to
// the ledger and updates the affected aggregates. Retrying a successful
// submission yields ErrAlreadySolved, never a double credit.
func (s *ScoringService) SubmitFlag(userID, challengeID uint64, flag string) (*SubmitResult, error) {
	challenge, err := s.challengeRepo.FindByID(challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to find challenge: %w", err)
	}
	if challenge.Status != models.ChallengeStatusActive {
		return nil, ErrChallengeInactive
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	solved, err := s.solveRepo.HasSolved(user.ID, challenge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check solve history: %w", err)
	}
	if solved {
		return nil, ErrAlreadySolved
	}

	if flag != challenge.Flag {
		return nil, ErrWrongFlag
	}

	var teamID *uint64
	team, err := s.teamRepo.FindByMember(user.ID)
	switch {
	case err == nil:
		teamID = &team.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Solo player.
	default:
		return nil, fmt.Errorf("failed to resolve team: %w", err)
	}

	record, err := s.recordWithRetry(repository.RecordSolveParams{
		UserID:      user.ID,
		ChallengeID: challenge.ID,
		TeamID:      teamID,
		Points:      challenge.Points,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSolve) {
			// Lost a race against our own retry or a duplicate request.
			return nil, ErrAlreadySolved
		}
		return nil, fmt.Errorf("failed to record solve: %w", err)
	}

	s.notifier.Publish(EventSolveAccepted, map[string]interface{}{
		"user_id":          user.ID,
		"username":         user.Username,
		"challenge_id":     challenge.ID,
		"challenge_name":   challenge.Name,
		"team_id":          teamID,
		"points":           challenge.Points,
		"first_team_solve": record.FirstTeamSolve,
	})

	return &SubmitResult{
		PointsAwarded:  challenge.Points,
		FirstTeamSolve: record.FirstTeamSolve,
		SolvedAt:       record.Solve.CreatedAt,
	}, nil
}

// recordWithRetry retries the transactional ledger append on infrastructure
// failures. Duplicate-key outcomes are definitive and returned immediately.
func (s *ScoringService) recordWithRetry(params repository.RecordSolveParams) (*repository.RecordSolveResult, error) {
	var lastErr error
	for attempt := 1; attempt <= submitMaxAttempts; attempt++ {
		record, err := s.solveRepo.Record(params)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, repository.ErrDuplicateSolve) {
			return nil, err
		}
		lastErr = err
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":      params.UserID,
			"challenge_id": params.ChallengeID,
			"attempt":      attempt,
		}).Warn("solve record attempt failed")
		time.Sleep(submitRetryBackoff * time.Duration(attempt))
	}
	return nil, lastErr
}

// SolvesForUser returns a user's ledger entries, oldest first.
func (s *ScoringService) SolvesForUser(userID uint64) ([]models.Solve, error) {
	solves, err := s.solveRepo.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list solves: %w", err)
	}
	return solves, nil
}

// SolvesForTeam returns the ledger entries attributed to a team, oldest
// first. Absorbed credits live in the team solved-set, not the ledger, so
// they do not appear here.
func (s *ScoringService) SolvesForTeam(teamID uint64) ([]models.Solve, error) {
	solves, err := s.solveRepo.ListByTeam(teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team solves: %w", err)
	}
	return solves, nil
}
