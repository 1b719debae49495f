package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agentchat/models"
)

// ChatRepository defines the interface for interacting with chat threads.
// Ownership is enforced here: every user-facing read or write goes through
// GetByIDForUser, which collapses "missing" and "not yours" into one
// ErrNotFound.
type ChatRepository interface {
	Create(chat *models.Chat) (*models.Chat, error)
	GetByIDForUser(id, userID string) (*models.Chat, error)
	ListByUser(userID string, params PaginationParams) ([]models.Chat, Pagination, error)
	UpdateTitle(id, userID, title string) (*models.Chat, error)
	Deactivate(id, userID string) error
	// SearchByTitle matches chat titles by prefix, case-insensitively,
	// paginating in memory.
	SearchByTitle(userID, term string, params PaginationParams) ([]models.Chat, Pagination, error)
}

type chatRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *gorm.DB, logger *zap.Logger) ChatRepository {
	return &chatRepository{db: db, logger: logger}
}

func (r *chatRepository) Create(chat *models.Chat) (*models.Chat, error) {
	if chat.UserID == "" || chat.AgentID == "" {
		return nil, fmt.Errorf("%w: userId and agentId are required", ErrValidation)
	}
	chat.ID = uuid.NewString()
	chat.Title = strings.TrimSpace(chat.Title)
	if chat.Title == "" {
		chat.Title = models.DefaultChatTitle
	}
	chat.IsActive = true
	chat.MessageCount = 0
	now := time.Now()
	chat.LastMessageAt = &now

	if err := r.db.Create(chat).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	r.logger.Info("chat created",
		zap.String("chatId", chat.ID),
		zap.String("userId", chat.UserID),
		zap.String("agentId", chat.AgentID))
	return chat, nil
}

func (r *chatRepository) GetByIDForUser(id, userID string) (*models.Chat, error) {
	if id == "" || userID == "" {
		return nil, fmt.Errorf("%w: chat id and userId are required", ErrValidation)
	}
	var chat models.Chat
	err := r.db.First(&chat, "id = ? AND user_id = ? AND is_active = ?", id, userID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch chat %s: %w", id, err)
	}
	return &chat, nil
}

func (r *chatRepository) ListByUser(userID string, params PaginationParams) ([]models.Chat, Pagination, error) {
	if userID == "" {
		return nil, Pagination{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	params.normalize(10, "last_message_at", "desc")

	query := r.db.Model(&models.Chat{}).Where("user_id = ? AND is_active = ?", userID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count chats: %w", err)
	}

	var chats []models.Chat
	err := query.
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&chats).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, makePagination(params, total), nil
}

func (r *chatRepository) UpdateTitle(id, userID, title string) (*models.Chat, error) {
	chat, err := r.GetByIDForUser(id, userID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Chat"
	}
	if err := r.db.Model(chat).Update("title", title).Error; err != nil {
		return nil, fmt.Errorf("failed to update chat %s title: %w", id, err)
	}
	return chat, nil
}

func (r *chatRepository) Deactivate(id, userID string) error {
	chat, err := r.GetByIDForUser(id, userID)
	if err != nil {
		return err
	}
	if err := r.db.Model(chat).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate chat %s: %w", id, err)
	}
	r.logger.Info("chat deactivated", zap.String("chatId", id), zap.String("userId", userID))
	return nil
}

func (r *chatRepository) SearchByTitle(userID, term string, params PaginationParams) ([]models.Chat, Pagination, error) {
	if userID == "" {
		return nil, Pagination{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	params.normalize(10, "title", "asc")
	term = strings.ToLower(strings.TrimSpace(term))

	var all []models.Chat
	err := r.db.
		Where("user_id = ? AND is_active = ? AND LOWER(title) LIKE ?", userID, true, term+"%").
		Order("title asc, last_message_at desc").
		Find(&all).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to search chats: %w", err)
	}

	total := int64(len(all))
	start := params.offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], makePagination(params, total), nil
}

// bumpActivity increments the denormalized message counter and refreshes
// the last-activity timestamp. The increment is expressed in SQL so two
// concurrent sends on the same chat cannot lose an update.
func bumpActivity(tx *gorm.DB, chatID string) error {
	result := tx.Model(&models.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update chat %s activity: %w", chatID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}
