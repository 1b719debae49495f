package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"agentchat/config"
	"agentchat/models"
	"agentchat/repository"
)

const titleSystemPrompt = "Generate a concise title for this conversation in 3 short words or less. Respond with only the title, no quotes or punctuation."

// SendResult carries the persisted turns of one exchange. AssistantMessage
// is nil when the backend failed and only the user's turn was stored.
type SendResult struct {
	UserMessage      *models.Message
	AssistantMessage *models.Message
}

// ChatService orchestrates conversations: creating chats behind the
// entitlement gate and driving message exchanges against the model
// backends.
type ChatService interface {
	CreateChat(userID, agentID, title string) (*models.Chat, error)
	// SendMessage persists the user's turn, runs a blocking completion
	// and persists the reply. A backend failure is not surfaced to the
	// caller; the user's turn is kept and the result has no assistant
	// message.
	SendMessage(ctx context.Context, chatID, userID, content string) (*SendResult, error)
	// StreamMessage is SendMessage with the reply delivered through
	// onChunk as it arrives. Unlike SendMessage, backend failures are
	// returned. The reply is persisted only once the stream completes;
	// text received before a failure is discarded.
	StreamMessage(ctx context.Context, chatID, userID, content string, onChunk func(chunk string) error) (*SendResult, error)
	// GenerateTitle derives a short title from the chat's first user
	// message and stores it.
	GenerateTitle(ctx context.Context, chatID, userID string) (string, error)
}

type chatService struct {
	chats        repository.ChatRepository
	messages     repository.MessageRepository
	users        repository.UserRepository
	agents       AgentService
	entitlements EntitlementService
	providers    ProviderService
	chat         config.ChatConfig
	logger       *zap.Logger
}

// NewChatService creates a new instance of ChatService.
func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	agents AgentService,
	entitlements EntitlementService,
	providers ProviderService,
	chatCfg config.ChatConfig,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		chats:        chats,
		messages:     messages,
		users:        users,
		agents:       agents,
		entitlements: entitlements,
		providers:    providers,
		chat:         chatCfg,
		logger:       logger,
	}
}

func (s *chatService) CreateChat(userID, agentID, title string) (*models.Chat, error) {
	user, err := s.users.GetByID(userID)
	if err != nil || !user.IsActive {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrInvalidReference)
	}

	access, err := s.entitlements.CheckAccess(userID, agentID)
	if err != nil {
		return nil, err
	}
	if !access.HasAccess {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, access.Reason)
	}

	return s.chats.Create(&models.Chat{
		Title:   title,
		UserID:  userID,
		AgentID: agentID,
	})
}

func (s *chatService) SendMessage(ctx context.Context, chatID, userID, content string) (*SendResult, error) {
	userMsg, err := s.messages.Create(&models.Message{
		ChatID:  chatID,
		UserID:  userID,
		Role:    models.RoleUser,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	agent := s.agents.GetAgentForChat(chatID, userID)
	model := s.agents.ModelFor(agent)

	payload, err := s.buildPayload(chatID, userID, agent)
	if err != nil {
		return nil, err
	}

	reply, err := s.providers.Generate(ctx, model, payload)
	if err != nil {
		// The user's turn is already stored; surface the exchange
		// without a reply rather than failing it.
		s.logger.Warn("completion failed, returning user message only",
			zap.String("chatId", chatID), zap.String("model", model), zap.Error(err))
		return &SendResult{UserMessage: userMsg}, nil
	}

	assistantMsg, err := s.persistReply(chatID, userID, reply, model, false)
	if err != nil {
		return nil, err
	}
	s.recordUsage(userID, agent)

	return &SendResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *chatService) StreamMessage(ctx context.Context, chatID, userID, content string, onChunk func(chunk string) error) (*SendResult, error) {
	userMsg, err := s.messages.Create(&models.Message{
		ChatID:  chatID,
		UserID:  userID,
		Role:    models.RoleUser,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	agent := s.agents.GetAgentForChat(chatID, userID)
	model := s.agents.ModelFor(agent)

	payload, err := s.buildPayload(chatID, userID, agent)
	if err != nil {
		return nil, err
	}

	reply, streamErr := s.providers.Stream(ctx, model, payload, onChunk)

	result := &SendResult{UserMessage: userMsg}
	if streamErr != nil {
		return result, streamErr
	}
	if strings.TrimSpace(reply) != "" {
		assistantMsg, err := s.persistReply(chatID, userID, reply, model, true)
		if err != nil {
			return nil, err
		}
		result.AssistantMessage = assistantMsg
		s.recordUsage(userID, agent)
	}
	return result, nil
}

func (s *chatService) GenerateTitle(ctx context.Context, chatID, userID string) (string, error) {
	firstTurn, err := s.messages.FirstByRole(chatID, userID, models.RoleUser)
	if err != nil {
		return "", err
	}
	if firstTurn == nil {
		return "", ErrEmptyChat
	}

	agent := s.agents.GetAgentForChat(chatID, userID)
	title, err := s.providers.Generate(ctx, s.agents.ModelFor(agent), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: titleSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: firstTurn.Content},
	})
	if err != nil {
		return "", err
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return "", ErrEmptyChat
	}
	if _, err := s.chats.UpdateTitle(chatID, userID, title); err != nil {
		return "", err
	}
	return title, nil
}

// buildPayload assembles the completion request: the agent's system
// prompt followed by the most recent turns in chronological order. The
// just-persisted user message is already part of the history.
func (s *chatService) buildPayload(chatID, userID string, agent *models.Agent) ([]openai.ChatCompletionMessage, error) {
	history, err := s.messages.GetRecent(chatID, userID, s.chat.HistoryLimit)
	if err != nil {
		return nil, err
	}

	payload := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	payload = append(payload, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.agents.SystemPromptFor(agent),
	})
	for _, msg := range history {
		payload = append(payload, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return payload, nil
}

func (s *chatService) persistReply(chatID, userID, reply, model string, streaming bool) (*models.Message, error) {
	return s.messages.Create(&models.Message{
		ChatID:  chatID,
		UserID:  userID,
		Role:    models.RoleAssistant,
		Content: reply,
		Metadata: &models.MessageMetadata{
			Model:     model,
			Provider:  string(s.providers.Resolve(model)),
			Streaming: streaming,
		},
	})
}

func (s *chatService) recordUsage(userID string, agent *models.Agent) {
	if agent == nil {
		return
	}
	s.entitlements.RecordUsage(userID, agent.ID)
}
