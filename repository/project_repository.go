package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"BeatFlow/model"
)

// ProjectRepository 工作区项目的持久化操作
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create stores a new project.
func (r *ProjectRepository) Create(project *model.Project) error {
	if err := r.db.Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID, or nil when absent.
func (r *ProjectRepository) GetByID(id string) (*model.Project, error) {
	var project model.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &project, nil
}

// ListByUser retrieves a user's projects, most recently updated first.
func (r *ProjectRepository) ListByUser(userID string) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user %s: %w", userID, err)
	}
	return projects, nil
}

// Update stores changed title/notes for a project the user owns.
func (r *ProjectRepository) Update(project *model.Project) error {
	res := r.db.Model(&model.Project{}).
		Where("id = ? AND user_id = ?", project.ID, project.UserID).
		Updates(map[string]interface{}{"title": project.Title, "notes": project.Notes})
	if res.Error != nil {
		return fmt.Errorf("failed to update project %s: %w", project.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %s not found or not owned by user", project.ID)
	}
	return nil
}

// Delete removes a project the user owns.
func (r *ProjectRepository) Delete(id, userID string) error {
	res := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Project{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %s not found or not owned by user", id)
	}
	return nil
}
