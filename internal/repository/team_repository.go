package repository

import (
	"errors"
	"fmt"

	"github.com/soratobu/ctf-arena-api/internal/constants"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTeamCapacity is returned when a join would push the roster past
	// the team size cap. Checked inside the join transaction so two
	// concurrent accepts cannot both land on a team with one seat left.
	ErrTeamCapacity = errors.New("team repository: team is at capacity")
	// ErrRequestMissing is returned when the pending join request expected
	// by a join transaction no longer exists.
	ErrRequestMissing = errors.New("team repository: pending join request not found")
	// ErrMemberConflict is returned when the joining user already holds a
	// membership row somewhere.
	ErrMemberConflict = errors.New("team repository: user already belongs to a team")
	// ErrTeamStale is returned when the team row changed after the caller
	// loaded it. The caller must reload the team and retry the admission.
	ErrTeamStale = errors.New("team repository: team version changed")
)

// GormTeamRepository is a GORM implementation of TeamRepository
type GormTeamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new TeamRepository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &GormTeamRepository{db: db}
}

// FindByID finds a team by ID
func (r *GormTeamRepository) FindByID(id uint64) (*models.Team, error) {
	var team models.Team
	if err := r.db.First(&team, id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindByNameKey finds a team by its lowercased name
func (r *GormTeamRepository) FindByNameKey(nameKey string) (*models.Team, error) {
	var team models.Team
	if err := r.db.Where("name_key = ?", nameKey).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindByInviteCode finds a private team by invite code
func (r *GormTeamRepository) FindByInviteCode(code string) (*models.Team, error) {
	var team models.Team
	if err := r.db.Where("invite_code = ? AND invite_code <> ''", code).First(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// FindByMember finds the team a user belongs to
func (r *GormTeamRepository) FindByMember(userID uint64) (*models.Team, error) {
	var member models.TeamMember
	if err := r.db.Where("user_id = ?", userID).First(&member).Error; err != nil {
		return nil, err
	}
	return r.FindByID(member.TeamID)
}

// FindMember finds a specific team member
func (r *GormTeamRepository) FindMember(teamID, userID uint64) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FindMembershipByUser finds a user's membership in any team
func (r *GormTeamRepository) FindMembershipByUser(userID uint64) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.Where("user_id = ?", userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all members of a team
func (r *GormTeamRepository) ListMembers(teamID uint64) ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := r.db.Preload("User").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// CountMembers counts the team roster, leader included
func (r *GormTeamRepository) CountMembers(teamID uint64) (int64, error) {
	var count int64
	if err := r.db.Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateWithSeed creates a team, its leader membership, and the team-solve
// rows seeded from the leader's history atomically. The caller sets the
// team's points, solve count, and last solve time from the same ledger rows
// the seeds were built from, so the aggregate and the solved-set stay
// consistent from the first moment the team is visible.
func (r *GormTeamRepository) CreateWithSeed(team *models.Team, leader *models.TeamMember, seeds []models.TeamSolve) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			return fmt.Errorf("failed to create team: %w", err)
		}

		leader.TeamID = team.ID
		if err := tx.Create(leader).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrMemberConflict
			}
			return fmt.Errorf("failed to create leader membership: %w", err)
		}

		for i := range seeds {
			seeds[i].TeamID = team.ID
			if err := tx.Create(&seeds[i]).Error; err != nil {
				return fmt.Errorf("failed to seed team solve: %w", err)
			}
		}
		return nil
	})
}

// AbsorbMember adds a member to a team and credits the team with the
// member's prior solves it does not already hold, all in one transaction.
// Candidate rows that collide with an existing team solve (a teammate
// solved or absorbed the same challenge concurrently) are skipped, and only
// the rows actually inserted count toward the aggregate update.
//
// The first statement is a conditional bump of the team's version column.
// It serializes admissions on the team row and fails with ErrTeamStale when
// anything bumped the version after the caller loaded the team, so the
// capacity count below can never be satisfied by two admissions racing on
// the same seat.
func (r *GormTeamRepository) AbsorbMember(p AbsorbMemberParams) (*AbsorbMemberResult, error) {
	result := &AbsorbMemberResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		gate := tx.Model(&models.Team{}).
			Where("id = ? AND version = ?", p.Team.ID, p.Team.Version).
			Update("version", gorm.Expr("version + ?", 1))
		if gate.Error != nil {
			return fmt.Errorf("failed to gate admission: %w", gate.Error)
		}
		if gate.RowsAffected == 0 {
			return ErrTeamStale
		}

		var count int64
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ?", p.Team.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if count >= constants.MaxTeamSize {
			return ErrTeamCapacity
		}

		if p.DeletePending {
			res := tx.Where("team_id = ? AND user_id = ?", p.Team.ID, p.Member.UserID).
				Delete(&models.JoinRequest{})
			if res.Error != nil {
				return fmt.Errorf("failed to consume join request: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrRequestMissing
			}
		}

		if err := tx.Create(p.Member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrMemberConflict
			}
			return fmt.Errorf("failed to create membership: %w", err)
		}

		for _, candidate := range p.Candidates {
			candidate.TeamID = p.Team.ID
			// ON CONFLICT DO NOTHING instead of catching the unique
			// violation: Postgres aborts the transaction on a raw
			// violation, and the remaining candidates still need to land.
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
			if res.Error != nil {
				return fmt.Errorf("failed to absorb solve: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			result.NewSolves++
			result.PointsAdded += candidate.Points
		}

		// The gate already bumped the version.
		if result.NewSolves > 0 {
			if err := tx.Model(&models.Team{}).Where("id = ?", p.Team.ID).
				Updates(map[string]interface{}{
					"points":      gorm.Expr("points + ?", result.PointsAdded),
					"solve_count": gorm.Expr("solve_count + ?", result.NewSolves),
				}).Error; err != nil {
				return fmt.Errorf("failed to update team aggregate: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveMember removes a member from a team. Team points and solve credits
// are deliberately left untouched: team achievement is immutable history,
// even after roster changes. A team left with no members is deleted together
// with its pending requests and solve credits; the ledger keeps the
// underlying solves.
func (r *GormTeamRepository) RemoveMember(teamID, userID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			Delete(&models.TeamMember{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove member: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var remaining int64
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ?", teamID).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("failed to count remaining members: %w", err)
		}
		if remaining > 0 {
			return nil
		}

		if err := tx.Where("team_id = ?", teamID).Delete(&models.JoinRequest{}).Error; err != nil {
			return fmt.Errorf("failed to delete join requests: %w", err)
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamSolve{}).Error; err != nil {
			return fmt.Errorf("failed to delete team solves: %w", err)
		}
		if err := tx.Delete(&models.Team{}, teamID).Error; err != nil {
			return fmt.Errorf("failed to delete team: %w", err)
		}
		return nil
	})
}

// Update updates team fields that are not scoring aggregates
func (r *GormTeamRepository) Update(team *models.Team) error {
	return r.db.Save(team).Error
}

// CreateJoinRequest records a pending join request
func (r *GormTeamRepository) CreateJoinRequest(request *models.JoinRequest) error {
	return r.db.Create(request).Error
}

// FindJoinRequest finds a pending join request
func (r *GormTeamRepository) FindJoinRequest(teamID, userID uint64) (*models.JoinRequest, error) {
	var request models.JoinRequest
	if err := r.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// ListJoinRequests lists a team's pending join requests
func (r *GormTeamRepository) ListJoinRequests(teamID uint64) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	if err := r.db.Preload("User").
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// DeleteJoinRequest removes a pending join request
func (r *GormTeamRepository) DeleteJoinRequest(teamID, userID uint64) error {
	res := r.db.Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.JoinRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HasPendingRequest reports whether the user has a pending request with any
// team
func (r *GormTeamRepository) HasPendingRequest(userID uint64) (bool, error) {
	var count int64
	if err := r.db.Model(&models.JoinRequest{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TopByPoints lists teams for the leaderboard. Ties on points go to the
// earlier last solve; teams that never solved sort last.
func (r *GormTeamRepository) TopByPoints(limit int) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.
		Order("points DESC, last_solve_at IS NULL, last_solve_at ASC, id ASC").
		Limit(limit).
		Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}
