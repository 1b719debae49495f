package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agentchat/metrics"
	"agentchat/models"
)

// MessageRepository defines the interface for interacting with message
// records.
type MessageRepository interface {
	// Create validates and persists one turn. The chat must belong to the
	// caller and be active; content must be non-empty after trimming. The
	// insert and the chat's counter bump run in one transaction.
	Create(message *models.Message) (*models.Message, error)
	ListByChat(chatID, userID string, params PaginationParams) ([]models.Message, Pagination, error)
	// GetRecent returns up to limit active messages in chronological order.
	GetRecent(chatID, userID string, limit int) ([]models.Message, error)
	// FirstByRole returns the oldest active message with the given role,
	// or nil when the chat has none.
	FirstByRole(chatID, userID string, role models.MessageRole) (*models.Message, error)
	Update(id, userID string, content string, metadata *models.MessageMetadata) (*models.Message, error)
	Deactivate(id, userID string) error
	// SearchByContent scans the caller's chats for messages containing the
	// term, case-insensitively. Chats are queried in batches of ten and
	// the match plus pagination happen in memory. Fine at small scale
	// only.
	SearchByContent(userID, term string, params PaginationParams) ([]models.Message, Pagination, error)
}

type messageRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewMessageRepository creates a new instance of MessageRepository.
func NewMessageRepository(db *gorm.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

// chatBatchSize caps the "IN" clause length of the content search.
const chatBatchSize = 10

func (m *messageRepository) ownedChat(tx *gorm.DB, chatID, userID string) (*models.Chat, error) {
	var chat models.Chat
	err := tx.First(&chat, "id = ? AND user_id = ? AND is_active = ?", chatID, userID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch chat %s: %w", chatID, err)
	}
	return &chat, nil
}

func (m *messageRepository) Create(message *models.Message) (*models.Message, error) {
	if message.ChatID == "" || message.UserID == "" {
		return nil, fmt.Errorf("%w: chatId and userId are required", ErrValidation)
	}
	if !models.ValidRole(message.Role) {
		return nil, fmt.Errorf("%w: role must be user, assistant or system", ErrValidation)
	}
	message.Content = strings.TrimSpace(message.Content)
	if message.Content == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if _, err := m.ownedChat(tx, message.ChatID, message.UserID); err != nil {
			return err
		}
		message.ID = uuid.NewString()
		message.IsActive = true
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return bumpActivity(tx, message.ChatID)
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesPersisted.WithLabelValues(string(message.Role)).Inc()
	m.logger.Debug("message created",
		zap.String("messageId", message.ID),
		zap.String("chatId", message.ChatID),
		zap.String("role", string(message.Role)))
	return message, nil
}

func (m *messageRepository) ListByChat(chatID, userID string, params PaginationParams) ([]models.Message, Pagination, error) {
	if _, err := m.ownedChat(m.db, chatID, userID); err != nil {
		return nil, Pagination{}, err
	}
	params.normalize(50, "created_at", "asc")

	query := m.db.Model(&models.Message{}).Where("chat_id = ? AND is_active = ?", chatID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []models.Message
	err := query.
		Order(params.OrderBy + " " + params.OrderDirection).
		Offset(params.offset()).Limit(params.Limit).
		Find(&messages).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, makePagination(params, total), nil
}

func (m *messageRepository) GetRecent(chatID, userID string, limit int) ([]models.Message, error) {
	if _, err := m.ownedChat(m.db, chatID, userID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 20
	}

	var messages []models.Message
	err := m.db.
		Where("chat_id = ? AND is_active = ?", chatID, true).
		Order("created_at desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent messages: %w", err)
	}

	// Newest-first from the query, flipped to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (m *messageRepository) FirstByRole(chatID, userID string, role models.MessageRole) (*models.Message, error) {
	if _, err := m.ownedChat(m.db, chatID, userID); err != nil {
		return nil, err
	}

	var message models.Message
	err := m.db.
		Where("chat_id = ? AND role = ? AND is_active = ?", chatID, role, true).
		Order("created_at asc").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch first %s message: %w", role, err)
	}
	return &message, nil
}

func (m *messageRepository) Update(id, userID string, content string, metadata *models.MessageMetadata) (*models.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrValidation)
	}
	var message models.Message
	if err := m.db.First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if _, err := m.ownedChat(m.db, message.ChatID, userID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if content != "" {
		content = strings.TrimSpace(content)
		if content == "" {
			return nil, fmt.Errorf("%w: message content cannot be empty", ErrValidation)
		}
		updates["content"] = content
	}
	if metadata != nil {
		updates["metadata"] = metadata
	}
	if len(updates) == 0 {
		return &message, nil
	}
	if err := m.db.Model(&message).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update message %s: %w", id, err)
	}
	return &message, nil
}

func (m *messageRepository) Deactivate(id, userID string) error {
	var message models.Message
	if err := m.db.First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if _, err := m.ownedChat(m.db, message.ChatID, userID); err != nil {
		return err
	}
	if err := m.db.Model(&message).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate message %s: %w", id, err)
	}
	return nil
}

func (m *messageRepository) SearchByContent(userID, term string, params PaginationParams) ([]models.Message, Pagination, error) {
	if userID == "" {
		return nil, Pagination{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	params.normalize(20, "created_at", "desc")
	term = strings.ToLower(strings.TrimSpace(term))

	var chatIDs []string
	err := m.db.Model(&models.Chat{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("id", &chatIDs).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list chats: %w", err)
	}
	if len(chatIDs) == 0 {
		return []models.Message{}, makePagination(params, 0), nil
	}

	var matches []models.Message
	for start := 0; start < len(chatIDs); start += chatBatchSize {
		end := start + chatBatchSize
		if end > len(chatIDs) {
			end = len(chatIDs)
		}
		var batch []models.Message
		err := m.db.
			Where("chat_id IN ? AND is_active = ?", chatIDs[start:end], true).
			Order("created_at desc").
			Limit(100).
			Find(&batch).Error
		if err != nil {
			return nil, Pagination{}, fmt.Errorf("failed to search messages: %w", err)
		}
		for _, msg := range batch {
			if strings.Contains(strings.ToLower(msg.Content), term) {
				matches = append(matches, msg)
			}
		}
	}

	total := int64(len(matches))
	startIdx := params.offset()
	if startIdx > len(matches) {
		startIdx = len(matches)
	}
	endIdx := startIdx + params.Limit
	if endIdx > len(matches) {
		endIdx = len(matches)
	}
	return matches[startIdx:endIdx], makePagination(params, total), nil
}
