package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agentchat/models"
)

// CategoryRepository defines the interface for interacting with agent
// category records.
type CategoryRepository interface {
	Create(category *models.AgentCategory) (*models.AgentCategory, error)
	GetByID(id string) (*models.AgentCategory, error)
	List(params PaginationParams) ([]models.AgentCategory, Pagination, error)
	Update(id string, updates map[string]interface{}) (*models.AgentCategory, error)
	Deactivate(id string) error
}

type categoryRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCategoryRepository creates a new instance of CategoryRepository.
func NewCategoryRepository(db *gorm.DB, logger *zap.Logger) CategoryRepository {
	return &categoryRepository{db: db, logger: logger}
}

func (r *categoryRepository) Create(category *models.AgentCategory) (*models.AgentCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrValidation)
	}

	// Name must be unique among active categories.
	var count int64
	if err := r.db.Model(&models.AgentCategory{}).
		Where("name = ? AND is_active = ?", category.Name, true).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("category %q: %w", category.Name, ErrDuplicateName)
	}

	category.ID = uuid.NewString()
	category.IsActive = true
	if err := r.db.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	r.logger.Info("category created", zap.String("categoryId", category.ID), zap.String("name", category.Name))
	return category, nil
}

func (r *categoryRepository) GetByID(id string) (*models.AgentCategory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: category id is required", ErrValidation)
	}
	var category models.AgentCategory
	if err := r.db.First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch category %s: %w", id, err)
	}
	return &category, nil
}

func (r *categoryRepository) List(params PaginationParams) ([]models.AgentCategory, Pagination, error) {
	params.normalize(10, "display_order", "asc")

	var total int64
	if err := r.db.Model(&models.AgentCategory{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count categories: %w", err)
	}

	var categories []models.AgentCategory
	err := r.db.Where("is_active = ?", true).
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&categories).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, makePagination(params, total), nil
}

func (r *categoryRepository) Update(id string, updates map[string]interface{}) (*models.AgentCategory, error) {
	category, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if name, ok := updates["name"].(string); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: category name cannot be empty", ErrValidation)
		}
		if name != category.Name {
			var count int64
			if err := r.db.Model(&models.AgentCategory{}).
				Where("name = ? AND is_active = ? AND id <> ?", name, true, id).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to check category name: %w", err)
			}
			if count > 0 {
				return nil, fmt.Errorf("category %q: %w", name, ErrDuplicateName)
			}
		}
		updates["name"] = name
	}

	if err := r.db.Model(category).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update category %s: %w", id, err)
	}
	return category, nil
}

func (r *categoryRepository) Deactivate(id string) error {
	category, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := r.db.Model(category).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate category %s: %w", id, err)
	}
	return nil
}
