package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aulaworks/aula-go-api/internal/models"
)

// AssignmentRepository is the read-only view of the assignment registry the
// submission workflow depends on.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Preload("Group").
		First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}
