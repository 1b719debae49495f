package services

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"agentchat/config"
	"agentchat/models"
	"agentchat/repository"
)

// MockChatRepository is a mock type for the ChatRepository interface.
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Create(chat *models.Chat) (*models.Chat, error) {
	args := m.Called(chat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatRepository) GetByIDForUser(id, userID string) (*models.Chat, error) {
	args := m.Called(id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatRepository) ListByUser(userID string, params repository.PaginationParams) ([]models.Chat, repository.Pagination, error) {
	args := m.Called(userID, params)
	if args.Get(0) == nil {
		return nil, repository.Pagination{}, args.Error(2)
	}
	return args.Get(0).([]models.Chat), args.Get(1).(repository.Pagination), args.Error(2)
}

func (m *MockChatRepository) UpdateTitle(id, userID, title string) (*models.Chat, error) {
	args := m.Called(id, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockChatRepository) Deactivate(id, userID string) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockChatRepository) SearchByTitle(userID, term string, params repository.PaginationParams) ([]models.Chat, repository.Pagination, error) {
	args := m.Called(userID, term, params)
	if args.Get(0) == nil {
		return nil, repository.Pagination{}, args.Error(2)
	}
	return args.Get(0).([]models.Chat), args.Get(1).(repository.Pagination), args.Error(2)
}

// MockMessageRepository is a mock type for the MessageRepository
// interface.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(message *models.Message) (*models.Message, error) {
	args := m.Called(message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByChat(chatID, userID string, params repository.PaginationParams) ([]models.Message, repository.Pagination, error) {
	args := m.Called(chatID, userID, params)
	if args.Get(0) == nil {
		return nil, repository.Pagination{}, args.Error(2)
	}
	return args.Get(0).([]models.Message), args.Get(1).(repository.Pagination), args.Error(2)
}

func (m *MockMessageRepository) GetRecent(chatID, userID string, limit int) ([]models.Message, error) {
	args := m.Called(chatID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) FirstByRole(chatID, userID string, role models.MessageRole) (*models.Message, error) {
	args := m.Called(chatID, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) Update(id, userID string, content string, metadata *models.MessageMetadata) (*models.Message, error) {
	args := m.Called(id, userID, content, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) Deactivate(id, userID string) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockMessageRepository) SearchByContent(userID, term string, params repository.PaginationParams) ([]models.Message, repository.Pagination, error) {
	args := m.Called(userID, term, params)
	if args.Get(0) == nil {
		return nil, repository.Pagination{}, args.Error(2)
	}
	return args.Get(0).([]models.Message), args.Get(1).(repository.Pagination), args.Error(2)
}

// MockAgentService is a mock type for the AgentService interface.
type MockAgentService struct {
	mock.Mock
}

func (m *MockAgentService) GetAgentForChat(chatID, userID string) *models.Agent {
	args := m.Called(chatID, userID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.Agent)
}

func (m *MockAgentService) SystemPromptFor(agent *models.Agent) string {
	args := m.Called(agent)
	return args.String(0)
}

func (m *MockAgentService) ModelFor(agent *models.Agent) string {
	args := m.Called(agent)
	return args.String(0)
}

// MockEntitlementService is a mock type for the EntitlementService
// interface.
type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) CheckAccess(userID, agentID string) (AccessCheck, error) {
	args := m.Called(userID, agentID)
	return args.Get(0).(AccessCheck), args.Error(1)
}

func (m *MockEntitlementService) Grant(userID, agentID string, opts GrantOptions) (*models.UserAgent, error) {
	args := m.Called(userID, agentID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAgent), args.Error(1)
}

func (m *MockEntitlementService) Revoke(userID, agentID string) error {
	args := m.Called(userID, agentID)
	return args.Error(0)
}

func (m *MockEntitlementService) Extend(userID, agentID string, newExpiry time.Time) error {
	args := m.Called(userID, agentID, newExpiry)
	return args.Error(0)
}

func (m *MockEntitlementService) RecordUsage(userID, agentID string) {
	m.Called(userID, agentID)
}

func (m *MockEntitlementService) ListForUser(userID string, params repository.PaginationParams) ([]models.UserAgent, repository.Pagination, error) {
	args := m.Called(userID, params)
	if args.Get(0) == nil {
		return nil, repository.Pagination{}, args.Error(2)
	}
	return args.Get(0).([]models.UserAgent), args.Get(1).(repository.Pagination), args.Error(2)
}

// MockProviderService is a mock type for the ProviderService interface.
type MockProviderService struct {
	mock.Mock
}

func (m *MockProviderService) Resolve(model string) ProviderKind {
	args := m.Called(model)
	return args.Get(0).(ProviderKind)
}

func (m *MockProviderService) Generate(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	args := m.Called(ctx, model, messages)
	return args.String(0), args.Error(1)
}

func (m *MockProviderService) Stream(ctx context.Context, model string, messages []openai.ChatCompletionMessage, onChunk func(chunk string) error) (string, error) {
	args := m.Called(ctx, model, messages, onChunk)
	return args.String(0), args.Error(1)
}

type chatServiceMocks struct {
	chats        *MockChatRepository
	messages     *MockMessageRepository
	users        *MockUserRepository
	agents       *MockAgentService
	entitlements *MockEntitlementService
	providers    *MockProviderService
}

func newChatServiceForTest() (*chatService, chatServiceMocks) {
	m := chatServiceMocks{
		chats:        new(MockChatRepository),
		messages:     new(MockMessageRepository),
		users:        new(MockUserRepository),
		agents:       new(MockAgentService),
		entitlements: new(MockEntitlementService),
		providers:    new(MockProviderService),
	}
	svc := &chatService{
		chats:        m.chats,
		messages:     m.messages,
		users:        m.users,
		agents:       m.agents,
		entitlements: m.entitlements,
		providers:    m.providers,
		chat:         config.ChatConfig{DefaultModel: "llama3.2", HistoryLimit: 50},
		logger:       zap.NewNop(),
	}
	return svc, m
}

func TestChatService_CreateChat(t *testing.T) {
	t.Run("entitled user gets a chat", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		m.users.On("GetByID", "u1").Return(&models.User{ID: "u1", IsActive: true}, nil)
		m.entitlements.On("CheckAccess", "u1", "a1").Return(AccessCheck{HasAccess: true}, nil)
		m.chats.On("Create", mock.MatchedBy(func(chat *models.Chat) bool {
			return chat.UserID == "u1" && chat.AgentID == "a1"
		})).Return(&models.Chat{ID: "c1", UserID: "u1", AgentID: "a1"}, nil)

		chat, err := svc.CreateChat("u1", "a1", "")
		assert.NoError(t, err)
		assert.Equal(t, "c1", chat.ID)
	})

	t.Run("missing entitlement denies chat creation", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		m.users.On("GetByID", "u1").Return(&models.User{ID: "u1", IsActive: true}, nil)
		m.entitlements.On("CheckAccess", "u1", "a1").
			Return(AccessCheck{HasAccess: false, Reason: "no active subscription found for this agent"}, nil)

		_, err := svc.CreateChat("u1", "a1", "")
		assert.ErrorIs(t, err, ErrAccessDenied)
		m.chats.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("inactive user is an invalid reference", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		m.users.On("GetByID", "u1").Return(&models.User{ID: "u1", IsActive: false}, nil)

		_, err := svc.CreateChat("u1", "a1", "")
		assert.ErrorIs(t, err, repository.ErrInvalidReference)
	})
}

func TestChatService_SendMessage(t *testing.T) {
	agent := &models.Agent{ID: "a1", Model: "llama3.2", SystemPrompt: "Be terse.", IsActive: true}

	t.Run("successful exchange persists both turns", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		userMsg := &models.Message{ID: "m1", ChatID: "c1", Role: models.RoleUser, Content: "hello"}
		m.messages.On("Create", mock.MatchedBy(func(msg *models.Message) bool {
			return msg.Role == models.RoleUser
		})).Return(userMsg, nil).Once()
		m.agents.On("GetAgentForChat", "c1", "u1").Return(agent)
		m.agents.On("ModelFor", agent).Return("llama3.2")
		m.agents.On("SystemPromptFor", agent).Return("Be terse.")
		m.messages.On("GetRecent", "c1", "u1", 50).Return([]models.Message{*userMsg}, nil)
		m.providers.On("Generate", mock.Anything, "llama3.2", mock.MatchedBy(func(payload []openai.ChatCompletionMessage) bool {
			return len(payload) == 2 && payload[0].Role == openai.ChatMessageRoleSystem && payload[0].Content == "Be terse."
		})).Return("hi there", nil)
		m.providers.On("Resolve", "llama3.2").Return(ProviderOllama)
		m.messages.On("Create", mock.MatchedBy(func(msg *models.Message) bool {
			return msg.Role == models.RoleAssistant && msg.Content == "hi there" &&
				msg.Metadata != nil && !msg.Metadata.Streaming
		})).Return(&models.Message{ID: "m2", Role: models.RoleAssistant, Content: "hi there"}, nil).Once()
		m.entitlements.On("RecordUsage", "u1", "a1").Return()

		result, err := svc.SendMessage(context.Background(), "c1", "u1", "hello")
		assert.NoError(t, err)
		assert.Equal(t, "m1", result.UserMessage.ID)
		assert.Equal(t, "m2", result.AssistantMessage.ID)
	})

	t.Run("backend failure keeps the user turn and swallows the error", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		userMsg := &models.Message{ID: "m1", ChatID: "c1", Role: models.RoleUser, Content: "hello"}
		m.messages.On("Create", mock.MatchedBy(func(msg *models.Message) bool {
			return msg.Role == models.RoleUser
		})).Return(userMsg, nil).Once()
		m.agents.On("GetAgentForChat", "c1", "u1").Return(agent)
		m.agents.On("ModelFor", agent).Return("llama3.2")
		m.agents.On("SystemPromptFor", agent).Return("Be terse.")
		m.messages.On("GetRecent", "c1", "u1", 50).Return([]models.Message{*userMsg}, nil)
		m.providers.On("Generate", mock.Anything, "llama3.2", mock.Anything).
			Return("", errors.New("connection refused"))

		result, err := svc.SendMessage(context.Background(), "c1", "u1", "hello")
		assert.NoError(t, err)
		assert.Equal(t, "m1", result.UserMessage.ID)
		assert.Nil(t, result.AssistantMessage)
		m.entitlements.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
	})
}

func TestChatService_StreamMessage(t *testing.T) {
	agent := &models.Agent{ID: "a1", Model: "llama3.2", IsActive: true}

	t.Run("empty stream persists no assistant turn", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		userMsg := &models.Message{ID: "m1", ChatID: "c1", Role: models.RoleUser, Content: "hello"}
		m.messages.On("Create", mock.MatchedBy(func(msg *models.Message) bool {
			return msg.Role == models.RoleUser
		})).Return(userMsg, nil).Once()
		m.agents.On("GetAgentForChat", "c1", "u1").Return(agent)
		m.agents.On("ModelFor", agent).Return("llama3.2")
		m.agents.On("SystemPromptFor", agent).Return("prompt")
		m.messages.On("GetRecent", "c1", "u1", 50).Return([]models.Message{*userMsg}, nil)
		m.providers.On("Stream", mock.Anything, "llama3.2", mock.Anything, mock.Anything).
			Return("", nil)

		result, err := svc.StreamMessage(context.Background(), "c1", "u1", "hello", nil)
		assert.NoError(t, err)
		assert.Nil(t, result.AssistantMessage)
		m.messages.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("mid-stream failure discards the partial reply and propagates", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		userMsg := &models.Message{ID: "m1", ChatID: "c1", Role: models.RoleUser, Content: "hello"}
		m.messages.On("Create", mock.MatchedBy(func(msg *models.Message) bool {
			return msg.Role == models.RoleUser
		})).Return(userMsg, nil).Once()
		m.agents.On("GetAgentForChat", "c1", "u1").Return(agent)
		m.agents.On("ModelFor", agent).Return("llama3.2")
		m.agents.On("SystemPromptFor", agent).Return("prompt")
		m.messages.On("GetRecent", "c1", "u1", 50).Return([]models.Message{*userMsg}, nil)
		streamErr := errors.New("stream receive failed")
		m.providers.On("Stream", mock.Anything, "llama3.2", mock.Anything, mock.Anything).
			Return("partial reply", streamErr)

		result, err := svc.StreamMessage(context.Background(), "c1", "u1", "hello", nil)
		assert.ErrorIs(t, err, streamErr)
		assert.Nil(t, result.AssistantMessage)
		m.messages.AssertNumberOfCalls(t, "Create", 1)
		m.entitlements.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
	})
}

func TestChatService_GenerateTitle(t *testing.T) {
	t.Run("title derived from the first user message", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		m.messages.On("FirstByRole", "c1", "u1", models.RoleUser).
			Return(&models.Message{Role: models.RoleUser, Content: "how do tides work?"}, nil)
		m.agents.On("GetAgentForChat", "c1", "u1").Return(nil)
		m.agents.On("ModelFor", (*models.Agent)(nil)).Return("llama3.2")
		m.providers.On("Generate", mock.Anything, "llama3.2", mock.MatchedBy(func(payload []openai.ChatCompletionMessage) bool {
			return len(payload) == 2 && payload[1].Content == "how do tides work?"
		})).Return(`"Tides Explained"`, nil)
		m.chats.On("UpdateTitle", "c1", "u1", "Tides Explained").
			Return(&models.Chat{ID: "c1", Title: "Tides Explained"}, nil)

		title, err := svc.GenerateTitle(context.Background(), "c1", "u1")
		assert.NoError(t, err)
		assert.Equal(t, "Tides Explained", title)
		m.messages.AssertNotCalled(t, "GetRecent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("chat without user messages is rejected", func(t *testing.T) {
		svc, m := newChatServiceForTest()

		m.messages.On("FirstByRole", "c1", "u1", models.RoleUser).Return(nil, nil)

		_, err := svc.GenerateTitle(context.Background(), "c1", "u1")
		assert.ErrorIs(t, err, ErrEmptyChat)
	})
}
