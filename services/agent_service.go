package services

import (
	"go.uber.org/zap"

	"agentchat/config"
	"agentchat/models"
	"agentchat/repository"
)

// AgentService resolves the agent behind a conversation and the model
// and prompt settings derived from it.
type AgentService interface {
	// GetAgentForChat returns the active agent bound to the chat, or nil
	// when the chat has no resolvable agent. The caller falls back to
	// configured defaults in that case.
	GetAgentForChat(chatID, userID string) *models.Agent
	SystemPromptFor(agent *models.Agent) string
	ModelFor(agent *models.Agent) string
}

type agentService struct {
	chats  repository.ChatRepository
	agents repository.AgentRepository
	chat   config.ChatConfig
	logger *zap.Logger
}

// NewAgentService creates a new instance of AgentService.
func NewAgentService(
	chats repository.ChatRepository,
	agents repository.AgentRepository,
	chatCfg config.ChatConfig,
	logger *zap.Logger,
) AgentService {
	return &agentService{chats: chats, agents: agents, chat: chatCfg, logger: logger}
}

func (s *agentService) GetAgentForChat(chatID, userID string) *models.Agent {
	chat, err := s.chats.GetByIDForUser(chatID, userID)
	if err != nil {
		s.logger.Debug("chat lookup failed during agent resolution",
			zap.String("chatId", chatID), zap.Error(err))
		return nil
	}
	agent, err := s.agents.GetByID(chat.AgentID)
	if err != nil || !agent.IsActive {
		s.logger.Debug("agent unavailable for chat, using defaults",
			zap.String("chatId", chatID), zap.String("agentId", chat.AgentID))
		return nil
	}
	return agent
}

func (s *agentService) SystemPromptFor(agent *models.Agent) string {
	if agent != nil && agent.SystemPrompt != "" {
		return agent.SystemPrompt
	}
	return s.chat.DefaultSystemPrompt
}

func (s *agentService) ModelFor(agent *models.Agent) string {
	if agent != nil && agent.Model != "" {
		return agent.Model
	}
	return s.chat.DefaultModel
}
