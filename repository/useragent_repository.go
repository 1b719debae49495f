package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agentchat/models"
)

// UserAgentRepository defines the interface for interacting with
// entitlement records. Business rules around granting and expiry live in
// the entitlement service; this layer reads and writes records.
type UserAgentRepository interface {
	// GetActiveByUserAndAgent returns the active entitlement for the pair,
	// expired or not, or ErrNotFound.
	GetActiveByUserAndAgent(userID, agentID string) (*models.UserAgent, error)
	Create(entitlement *models.UserAgent) (*models.UserAgent, error)
	ListByUser(userID string, params PaginationParams) ([]models.UserAgent, Pagination, error)
	Deactivate(id string) error
	UpdateExpiry(id string, expiresAt *time.Time) error
	// IncrementUsage bumps the message counter and last-used timestamp.
	// The increment runs in the database so concurrent sends do not lose
	// updates.
	IncrementUsage(id string) error
}

type userAgentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserAgentRepository creates a new instance of UserAgentRepository.
func NewUserAgentRepository(db *gorm.DB, logger *zap.Logger) UserAgentRepository {
	return &userAgentRepository{db: db, logger: logger}
}

func (r *userAgentRepository) GetActiveByUserAndAgent(userID, agentID string) (*models.UserAgent, error) {
	if userID == "" || agentID == "" {
		return nil, fmt.Errorf("%w: userId and agentId are required", ErrValidation)
	}
	var entitlement models.UserAgent
	err := r.db.
		Where("user_id = ? AND agent_id = ? AND is_active = ?", userID, agentID, true).
		First(&entitlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entitlement for user %s agent %s: %w", userID, agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch entitlement: %w", err)
	}
	return &entitlement, nil
}

func (r *userAgentRepository) Create(entitlement *models.UserAgent) (*models.UserAgent, error) {
	if entitlement.UserID == "" || entitlement.AgentID == "" {
		return nil, fmt.Errorf("%w: userId and agentId are required", ErrValidation)
	}
	entitlement.ID = uuid.NewString()
	entitlement.IsActive = true
	if entitlement.PurchasedAt.IsZero() {
		entitlement.PurchasedAt = time.Now()
	}
	if err := r.db.Create(entitlement).Error; err != nil {
		return nil, fmt.Errorf("failed to create entitlement: %w", err)
	}
	r.logger.Info("entitlement created",
		zap.String("entitlementId", entitlement.ID),
		zap.String("userId", entitlement.UserID),
		zap.String("agentId", entitlement.AgentID))
	return entitlement, nil
}

func (r *userAgentRepository) ListByUser(userID string, params PaginationParams) ([]models.UserAgent, Pagination, error) {
	if userID == "" {
		return nil, Pagination{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	params.normalize(10, "purchased_at", "desc")

	query := r.db.Model(&models.UserAgent{}).
		Where("user_id = ? AND is_active = ?", userID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count entitlements: %w", err)
	}

	var entitlements []models.UserAgent
	err := query.
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&entitlements).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list entitlements: %w", err)
	}
	return entitlements, makePagination(params, total), nil
}

func (r *userAgentRepository) Deactivate(id string) error {
	result := r.db.Model(&models.UserAgent{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate entitlement %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entitlement %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *userAgentRepository) UpdateExpiry(id string, expiresAt *time.Time) error {
	result := r.db.Model(&models.UserAgent{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt)
	if result.Error != nil {
		return fmt.Errorf("failed to update entitlement %s expiry: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entitlement %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *userAgentRepository) IncrementUsage(id string) error {
	result := r.db.Model(&models.UserAgent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"message_count": gorm.Expr("message_count + 1"),
			"last_used_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update entitlement %s usage: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entitlement %s: %w", id, ErrNotFound)
	}
	return nil
}
