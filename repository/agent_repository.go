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

// AgentQueryParams filters the agent listing.
type AgentQueryParams struct {
	PaginationParams
	CategoryID string
	// Search matches agent names by prefix, case-insensitively.
	Search string
}

// AgentRepository defines the interface for interacting with agent records.
type AgentRepository interface {
	Create(agent *models.Agent) (*models.Agent, error)
	GetByID(id string) (*models.Agent, error)
	List(params AgentQueryParams) ([]models.Agent, Pagination, error)
	Update(id string, updates map[string]interface{}) (*models.Agent, error)
	// Deactivate soft-deletes the agent. It fails with ErrAgentInUse while
	// any active chat still references the agent.
	Deactivate(id string) error
}

type agentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAgentRepository creates a new instance of AgentRepository.
func NewAgentRepository(db *gorm.DB, logger *zap.Logger) AgentRepository {
	return &agentRepository{db: db, logger: logger}
}

func (r *agentRepository) Create(agent *models.Agent) (*models.Agent, error) {
	agent.Name = strings.TrimSpace(agent.Name)
	if agent.Name == "" || agent.CategoryID == "" {
		return nil, fmt.Errorf("%w: agent name and categoryId are required", ErrValidation)
	}

	var category models.AgentCategory
	if err := r.db.First(&category, "id = ? AND is_active = ?", agent.CategoryID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %s: %w", agent.CategoryID, ErrInvalidReference)
		}
		return nil, fmt.Errorf("failed to fetch category %s: %w", agent.CategoryID, err)
	}

	// Name must be unique among active agents within the category.
	var count int64
	if err := r.db.Model(&models.Agent{}).
		Where("name = ? AND category_id = ? AND is_active = ?", agent.Name, agent.CategoryID, true).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check agent name: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("agent %q in category %s: %w", agent.Name, agent.CategoryID, ErrDuplicateName)
	}

	agent.ID = uuid.NewString()
	agent.IsActive = true
	if err := r.db.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	r.logger.Info("agent created",
		zap.String("agentId", agent.ID),
		zap.String("name", agent.Name),
		zap.String("model", agent.Model))
	return agent, nil
}

func (r *agentRepository) GetByID(id string) (*models.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: agent id is required", ErrValidation)
	}
	var agent models.Agent
	if err := r.db.First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch agent %s: %w", id, err)
	}
	return &agent, nil
}

func (r *agentRepository) List(params AgentQueryParams) ([]models.Agent, Pagination, error) {
	params.normalize(10, "name", "asc")

	query := r.db.Model(&models.Agent{}).Where("is_active = ?", true)
	if params.CategoryID != "" {
		query = query.Where("category_id = ?", params.CategoryID)
	}
	if term := strings.ToLower(strings.TrimSpace(params.Search)); term != "" {
		query = query.Where("LOWER(name) LIKE ?", term+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count agents: %w", err)
	}

	var agents []models.Agent
	err := query.
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&agents).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, makePagination(params.PaginationParams, total), nil
}

func (r *agentRepository) Update(id string, updates map[string]interface{}) (*models.Agent, error) {
	agent, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if name, ok := updates["name"].(string); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: agent name cannot be empty", ErrValidation)
		}
		if name != agent.Name {
			categoryID := agent.CategoryID
			if cid, ok := updates["category_id"].(string); ok && cid != "" {
				categoryID = cid
			}
			var count int64
			if err := r.db.Model(&models.Agent{}).
				Where("name = ? AND category_id = ? AND is_active = ? AND id <> ?", name, categoryID, true, id).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("failed to check agent name: %w", err)
			}
			if count > 0 {
				return nil, fmt.Errorf("agent %q in category %s: %w", name, categoryID, ErrDuplicateName)
			}
		}
		updates["name"] = name
	}

	if err := r.db.Model(agent).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent %s: %w", id, err)
	}
	return agent, nil
}

func (r *agentRepository) Deactivate(id string) error {
	agent, err := r.GetByID(id)
	if err != nil {
		return err
	}

	var activeChats int64
	if err := r.db.Model(&models.Chat{}).
		Where("agent_id = ? AND is_active = ?", id, true).
		Count(&activeChats).Error; err != nil {
		return fmt.Errorf("failed to count active chats for agent %s: %w", id, err)
	}
	if activeChats > 0 {
		return fmt.Errorf("agent %s: %w", id, ErrAgentInUse)
	}

	if err := r.db.Model(agent).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate agent %s: %w", id, err)
	}
	r.logger.Info("agent deactivated", zap.String("agentId", id))
	return nil
}
