package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agentchat/models"
	"agentchat/repository"
)

// AccessCheck is the result of an entitlement lookup.
type AccessCheck struct {
	HasAccess bool   `json:"hasAccess"`
	Reason    string `json:"reason,omitempty"`
}

// GrantOptions carries the optional fields of a new entitlement.
type GrantOptions struct {
	PaymentID string
	ExpiresAt *time.Time
}

// IsExpired reports whether the entitlement's expiry, if any, has passed.
// A nil ExpiresAt never expires.
func IsExpired(entitlement *models.UserAgent, now time.Time) bool {
	return entitlement.ExpiresAt != nil && entitlement.ExpiresAt.Before(now)
}

// EntitlementService enforces who may converse with which agent.
type EntitlementService interface {
	// CheckAccess reports whether the user currently holds a valid grant
	// for the agent. An expired grant is deactivated as a side effect
	// (lazy expiry; there is no background sweep).
	CheckAccess(userID, agentID string) (AccessCheck, error)
	Grant(userID, agentID string, opts GrantOptions) (*models.UserAgent, error)
	Revoke(userID, agentID string) error
	Extend(userID, agentID string, newExpiry time.Time) error
	// RecordUsage bumps the grant's usage counters. Best effort: a
	// missing grant is not an error at this point.
	RecordUsage(userID, agentID string)
	ListForUser(userID string, params repository.PaginationParams) ([]models.UserAgent, repository.Pagination, error)
}

type entitlementService struct {
	userAgents repository.UserAgentRepository
	users      repository.UserRepository
	agents     repository.AgentRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewEntitlementService creates a new instance of EntitlementService.
func NewEntitlementService(
	userAgents repository.UserAgentRepository,
	users repository.UserRepository,
	agents repository.AgentRepository,
	logger *zap.Logger,
) EntitlementService {
	return &entitlementService{
		userAgents: userAgents,
		users:      users,
		agents:     agents,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *entitlementService) CheckAccess(userID, agentID string) (AccessCheck, error) {
	entitlement, err := s.userAgents.GetActiveByUserAndAgent(userID, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessCheck{HasAccess: false, Reason: "no active subscription found for this agent"}, nil
		}
		return AccessCheck{}, err
	}

	if IsExpired(entitlement, s.now()) {
		// Lazy expiry: flip the record inactive now that we have seen it.
		if err := s.userAgents.Deactivate(entitlement.ID); err != nil {
			s.logger.Warn("failed to deactivate expired entitlement",
				zap.String("entitlementId", entitlement.ID), zap.Error(err))
		}
		return AccessCheck{HasAccess: false, Reason: "the subscription for this agent has expired"}, nil
	}

	return AccessCheck{HasAccess: true}, nil
}

func (s *entitlementService) Grant(userID, agentID string, opts GrantOptions) (*models.UserAgent, error) {
	user, err := s.users.GetByID(userID)
	if err != nil || !user.IsActive {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrInvalidReference)
	}
	agent, err := s.agents.GetByID(agentID)
	if err != nil || !agent.IsActive {
		return nil, fmt.Errorf("agent %s: %w", agentID, repository.ErrInvalidReference)
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiration date must be in the future", repository.ErrValidation)
	}

	existing, err := s.userAgents.GetActiveByUserAndAgent(userID, agentID)
	switch {
	case err == nil:
		if !IsExpired(existing, s.now()) {
			return nil, fmt.Errorf("user %s agent %s: %w", userID, agentID, repository.ErrDuplicateEntitlement)
		}
		// A prior grant that has run out does not block a new purchase;
		// retire it first.
		if err := s.userAgents.Deactivate(existing.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrNotFound):
		// First grant for the pair.
	default:
		return nil, err
	}

	entitlement := &models.UserAgent{
		UserID:      userID,
		AgentID:     agentID,
		PurchasedAt: s.now(),
		ExpiresAt:   opts.ExpiresAt,
		PaymentID:   opts.PaymentID,
	}
	return s.userAgents.Create(entitlement)
}

func (s *entitlementService) Revoke(userID, agentID string) error {
	entitlement, err := s.userAgents.GetActiveByUserAndAgent(userID, agentID)
	if err != nil {
		return err
	}
	return s.userAgents.Deactivate(entitlement.ID)
}

func (s *entitlementService) Extend(userID, agentID string, newExpiry time.Time) error {
	entitlement, err := s.userAgents.GetActiveByUserAndAgent(userID, agentID)
	if err != nil {
		return err
	}
	return s.userAgents.UpdateExpiry(entitlement.ID, &newExpiry)
}

func (s *entitlementService) RecordUsage(userID, agentID string) {
	entitlement, err := s.userAgents.GetActiveByUserAndAgent(userID, agentID)
	if err != nil {
		return
	}
	if err := s.userAgents.IncrementUsage(entitlement.ID); err != nil {
		s.logger.Warn("failed to record entitlement usage",
			zap.String("entitlementId", entitlement.ID), zap.Error(err))
	}
}

func (s *entitlementService) ListForUser(userID string, params repository.PaginationParams) ([]models.UserAgent, repository.Pagination, error) {
	entitlements, pagination, err := s.userAgents.ListByUser(userID, params)
	if err != nil {
		return nil, repository.Pagination{}, err
	}
	// Populate agent data for the listing; a missing agent leaves the
	// field nil rather than failing the whole page.
	for i := range entitlements {
		if agent, err := s.agents.GetByID(entitlements[i].AgentID); err == nil {
			entitlements[i].Agent = agent
		}
	}
	return entitlements, pagination, nil
}
