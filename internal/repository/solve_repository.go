package repository

import (
	"errors"
	"fmt"

	"github.com/soratobu/ctf-arena-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicateSolve is returned when the ledger already holds an entry
	// for this (user, challenge) pair.
	ErrDuplicateSolve = errors.New("solve repository: duplicate ledger entry for user and challenge")
)

// GormSolveRepository is a GORM implementation of SolveRepository
type GormSolveRepository struct {
	db *gorm.DB
}

// NewSolveRepository creates a new SolveRepository
func NewSolveRepository(db *gorm.DB) SolveRepository {
	return &GormSolveRepository{db: db}
}

// Record appends a ledger entry and applies all aggregate updates in one
// transaction. The ledger's (user, challenge) unique index and the
// team-solve (team, challenge) primary key are the linearization points:
// concurrent identical submissions resolve to exactly one ErrDuplicateSolve
// per user and exactly one first team solve per team, with no lost aggregate
// updates because every increment is an atomic SQL expression.
func (r *GormSolveRepository) Record(p RecordSolveParams) (*RecordSolveResult, error) {
	result := &RecordSolveResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		firstTeamSolve := false
		if p.TeamID != nil {
			teamSolve := models.TeamSolve{
				TeamID:      *p.TeamID,
				ChallengeID: p.ChallengeID,
				Points:      p.Points,
				SolvedBy:    &p.UserID,
				CreatedAt:   p.SubmittedAt,
			}
			// ON CONFLICT DO NOTHING keeps the transaction usable after
			// losing the race: Postgres aborts the whole transaction on a
			// raw unique violation.
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&teamSolve)
			if res.Error != nil {
				return fmt.Errorf("failed to record team solve: %w", res.Error)
			}
			// Zero rows means a teammate got there first; this stays a
			// personal credit.
			firstTeamSolve = res.RowsAffected > 0
		}

		solve := models.Solve{
			UserID:      p.UserID,
			ChallengeID: p.ChallengeID,
			TeamID:      p.TeamID,
			Points:      p.Points,
			IsTeamSolve: firstTeamSolve,
			CreatedAt:   p.SubmittedAt,
		}
		if err := tx.Create(&solve).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSolve
			}
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", p.UserID).
			Updates(map[string]interface{}{
				"points":        gorm.Expr("points + ?", p.Points),
				"solve_count":   gorm.Expr("solve_count + ?", 1),
				"last_solve_at": p.SubmittedAt,
			}).Error; err != nil {
			return fmt.Errorf("failed to update user aggregate: %w", err)
		}

		if firstTeamSolve {
			if err := tx.Model(&models.Team{}).Where("id = ?", *p.TeamID).
				Updates(map[string]interface{}{
					"points":        gorm.Expr("points + ?", p.Points),
					"solve_count":   gorm.Expr("solve_count + ?", 1),
					"last_solve_at": p.SubmittedAt,
					"version":       gorm.Expr("version + ?", 1),
				}).Error; err != nil {
				return fmt.Errorf("failed to update team aggregate: %w", err)
			}
		}

		if err := tx.Model(&models.Challenge{}).Where("id = ?", p.ChallengeID).
			Update("solve_count", gorm.Expr("solve_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to update challenge solve count: %w", err)
		}

		result.Solve = solve
		result.FirstTeamSolve = firstTeamSolve
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HasSolved reports whether the user already has a ledger entry for the
// challenge
func (r *GormSolveRepository) HasSolved(userID, challengeID uint64) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Solve{}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser lists a user's ledger entries
func (r *GormSolveRepository) ListByUser(userID uint64) ([]models.Solve, error) {
	var solves []models.Solve
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&solves).Error; err != nil {
		return nil, err
	}
	return solves, nil
}

// ListByTeam lists ledger entries attributed to a team
func (r *GormSolveRepository) ListByTeam(teamID uint64) ([]models.Solve, error) {
	var solves []models.Solve
	if err := r.db.Where("team_id = ?", teamID).
		Order("created_at ASC, id ASC").
		Find(&solves).Error; err != nil {
		return nil, err
	}
	return solves, nil
}

// ListRecent lists the newest ledger entries for the live solve feed
func (r *GormSolveRepository) ListRecent(limit int) ([]models.Solve, error) {
	var solves []models.Solve
	if err := r.db.Preload("Challenge").Preload("User").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&solves).Error; err != nil {
		return nil, err
	}
	return solves, nil
}

// ListTeamSolves lists the challenges a team holds credit for
func (r *GormSolveRepository) ListTeamSolves(teamID uint64) ([]models.TeamSolve, error) {
	var teamSolves []models.TeamSolve
	if err := r.db.Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&teamSolves).Error; err != nil {
		return nil, err
	}
	return teamSolves, nil
}
