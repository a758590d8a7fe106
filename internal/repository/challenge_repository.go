package repository

import (
	"github.com/soratobu/ctf-arena-api/internal/database"
	"github.com/soratobu/ctf-arena-api/internal/models"
	"github.com/soratobu/ctf-arena-api/internal/utils"
	"gorm.io/gorm"
)

// GormChallengeRepository is a GORM implementation of ChallengeRepository
type GormChallengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository creates a new ChallengeRepository
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &GormChallengeRepository{db: db}
}

// Create creates a new challenge
func (r *GormChallengeRepository) Create(challenge *models.Challenge) error {
	return r.db.Create(challenge).Error
}

// FindByID finds a challenge by ID
func (r *GormChallengeRepository) FindByID(id uint64) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.First(&challenge, id).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

// List retrieves challenges with filtering and pagination
func (r *GormChallengeRepository) List(filter ChallengeFilter) ([]models.Challenge, int64, error) {
	query := r.db.Model(&models.Challenge{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Scopes(database.Paginate(utils.PaginationParams{
			Offset: offset,
			Limit:  filter.PageSize,
		}))
	}

	var challenges []models.Challenge
	if err := query.Order("category ASC, points ASC, id ASC").Find(&challenges).Error; err != nil {
		return nil, 0, err
	}
	return challenges, total, nil
}

// Update updates a challenge. Ledger entries keep the point value recorded
// at award time, so editing Points here never rewrites scoring history.
func (r *GormChallengeRepository) Update(challenge *models.Challenge) error {
	return r.db.Save(challenge).Error
}

// SetStatus flips a challenge between active and inactive
func (r *GormChallengeRepository) SetStatus(id uint64, status models.ChallengeStatus) error {
	result := r.db.Model(&models.Challenge{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
