package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/repository"
	"github.com/soratobu/ctf-arena-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrChallengeInactive    = errors.New("challenge is not active")
	ErrInvalidChallenge     = errors.New("challenge name, category, and a positive point value are required")
	ErrChallengePointsFixed = errors.New("challenge points must be positive")
)

// ChallengeService manages the challenge catalog. Scoring reads the catalog
// but never writes it; admin edits here never touch ledger history.
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	notifier      Notifier
}

// NewChallengeService creates a new ChallengeService.
func NewChallengeService(challengeRepo repository.ChallengeRepository, notifier Notifier) *ChallengeService {
	return &ChallengeService{
		challengeRepo: challengeRepo,
		notifier:      notifier,
	}
}

// CreateChallengeInput represents parameters to create a challenge.
type CreateChallengeInput struct {
	Name        string
	Category    string
	Description string
	Points      uint
	// Flag may be empty, in which case one is generated.
	Flag string
}

// CreateChallenge creates a challenge in the inactive state; it only becomes
// solvable once published.
func (s *ChallengeService) CreateChallenge(input CreateChallengeInput) (*models.Challenge, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" || category == "" || input.Points == 0 {
		return nil, ErrInvalidChallenge
	}

	flag := strings.TrimSpace(input.Flag)
	if flag == "" {
		flag = utils.GenerateFlag()
	}

	challenge := &models.Challenge{
		Name:        name,
		Category:    category,
		Description: input.Description,
		Points:      input.Points,
		Flag:        flag,
		Status:      models.ChallengeStatusInactive,
	}

	if err := s.challengeRepo.Create(challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	return challenge, nil
}

// UpdateChallengeInput represents a partial challenge update.
type UpdateChallengeInput struct {
	Name        *string
	Category    *string
	Description *string
	Points      *uint
	Flag        *string
}

// UpdateChallenge updates catalog fields. Point edits apply to future solves
// only: already-awarded ledger entries keep the value recorded at award
// time.
func (s *ChallengeService) UpdateChallenge(id uint64, input UpdateChallengeInput) (*models.Challenge, error) {
	challenge, err := s.challengeRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to find challenge: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidChallenge
		}
		challenge.Name = name
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, ErrInvalidChallenge
		}
		challenge.Category = category
	}
	if input.Description != nil {
		challenge.Description = *input.Description
	}
	if input.Points != nil {
		if *input.Points == 0 {
			return nil, ErrChallengePointsFixed
		}
		challenge.Points = *input.Points
	}
	if input.Flag != nil && strings.TrimSpace(*input.Flag) != "" {
		challenge.Flag = strings.TrimSpace(*input.Flag)
	}

	if err := s.challengeRepo.Update(challenge); err != nil {
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}
	return challenge, nil
}

// PublishChallenge makes a challenge solvable and announces it.
func (s *ChallengeService) PublishChallenge(id uint64) (*models.Challenge, error) {
	challenge, err := s.setStatus(id, models.ChallengeStatusActive)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(EventChallengePublished, map[string]interface{}{
		"challenge_id": challenge.ID,
		"name":         challenge.Name,
		"category":     challenge.Category,
		"points":       challenge.Points,
	})
	return challenge, nil
}

// UnpublishChallenge hides a challenge from players. Existing solves and
// awarded points stay.
func (s *ChallengeService) UnpublishChallenge(id uint64) (*models.Challenge, error) {
	return s.setStatus(id, models.ChallengeStatusInactive)
}

func (s *ChallengeService) setStatus(id uint64, status models.ChallengeStatus) (*models.Challenge, error) {
	if err := s.challengeRepo.SetStatus(id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to set challenge status: %w", err)
	}

	challenge, err := s.challengeRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload challenge: %w", err)
	}
	return challenge, nil
}

// ListChallengesInput represents filters for listing challenges.
type ListChallengesInput struct {
	Category       string
	IncludeHidden  bool
	StatusOverride *models.ChallengeStatus
	Page           int
	PageSize       int
}

// ListChallenges lists catalog entries. Player-facing calls see active
// challenges only; admin calls set IncludeHidden.
func (s *ChallengeService) ListChallenges(input ListChallengesInput) ([]models.Challenge, int64, error) {
	filter := repository.ChallengeFilter{
		Category: input.Category,
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if !input.IncludeHidden {
		active := models.ChallengeStatusActive
		filter.Status = &active
	} else if input.StatusOverride != nil {
		filter.Status = input.StatusOverride
	}

	challenges, total, err := s.challengeRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list challenges: %w", err)
	}
	return challenges, total, nil
}

// GetChallenge returns a challenge. Player-facing calls get
// ErrChallengeNotFound for hidden challenges rather than revealing they
// exist.
func (s *ChallengeService) GetChallenge(id uint64, includeHidden bool) (*models.Challenge, error) {
	challenge, err := s.challengeRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to find challenge: %w", err)
	}
	if !includeHidden && challenge.Status != models.ChallengeStatusActive {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}
