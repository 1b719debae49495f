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

// UserRepository defines the interface for interacting with user records.
type UserRepository interface {
	// Upsert creates the user on first login and refreshes profile fields
	// on subsequent logins. The id is taken from the identity provider
	// when present, otherwise generated.
	Upsert(user *models.User) (*models.User, error)
	GetByID(id string) (*models.User, error)
	List(params PaginationParams) ([]models.User, Pagination, error)
	Update(id string, updates map[string]interface{}) (*models.User, error)
	// Deactivate soft-deletes the user; records are never removed.
	Deactivate(id string) error
}

type userRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) Upsert(user *models.User) (*models.User, error) {
	if strings.TrimSpace(user.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	var existing models.User
	var err error
	if user.ID != "" {
		err = r.db.First(&existing, "id = ?", user.ID).Error
	} else {
		err = r.db.First(&existing, "email = ?", user.Email).Error
	}

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		user.IsActive = true
		if user.Plan == "" {
			user.Plan = models.PlanFree
		}
		if err := r.db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		r.logger.Info("user created",
			zap.String("userId", user.ID),
			zap.String("provider", user.Provider))
		return user, nil
	}

	// Refresh profile fields that may have changed at the identity provider.
	updates := map[string]interface{}{}
	if user.Name != "" && user.Name != existing.Name {
		updates["name"] = user.Name
	}
	if user.Avatar != "" && user.Avatar != existing.Avatar {
		updates["avatar"] = user.Avatar
	}
	if user.Provider != "" && user.Provider != existing.Provider {
		updates["provider"] = user.Provider
	}
	if len(updates) > 0 {
		if err := r.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", existing.ID, err)
		}
	}
	return &existing, nil
}

func (r *userRepository) GetByID(id string) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	return &user, nil
}

func (r *userRepository) List(params PaginationParams) ([]models.User, Pagination, error) {
	params.normalize(10, "created_at", "desc")

	var total int64
	if err := r.db.Model(&models.User{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	err := r.db.Where("is_active = ?", true).
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&users).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list users: %w", err)
	}
	return users, makePagination(params, total), nil
}

func (r *userRepository) Update(id string, updates map[string]interface{}) (*models.User, error) {
	user, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := r.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return user, nil
}

func (r *userRepository) Deactivate(id string) error {
	user, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := r.db.Model(user).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate user %s: %w", id, err)
	}
	r.logger.Info("user deactivated", zap.String("userId", id))
	return nil
}
