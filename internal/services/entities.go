package services

import (
	"fmt"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// flaggableEntities maps each flaggable entity kind to its model.
var flaggableEntities = map[models.EntityType]func() interface{}{
	models.EntityJobPosting: func() interface{} { return &models.JobPosting{} },
	models.EntityUser:       func() interface{} { return &models.User{} },
	models.EntityResume:     func() interface{} { return &models.Resume{} },
}

func entityExists(tx *gorm.DB, entityType models.EntityType, id uuid.UUID) (bool, error) {
	newModel, ok := flaggableEntities[entityType]
	if !ok {
		return false, newValidationError("flagged_entity_type", "is not supported")
	}

	var count int64
	if err := tx.Model(newModel()).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", entityType, err)
	}
	return count > 0, nil
}
