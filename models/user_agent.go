package models

import "time"

// UserAgent is the entitlement join record between a user and an agent:
// the user's time-bounded right to converse with that agent.
// Invariant: at most one active, non-expired record per (userId, agentId).
type UserAgent struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"userId" gorm:"index:idx_user_agent;not null"`
	AgentID      string     `json:"agentId" gorm:"index:idx_user_agent;not null"`
	PurchasedAt  time.Time  `json:"purchasedAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"` // nil means the grant never expires
	PaymentID    string     `json:"paymentId,omitempty"`
	MessageCount int        `json:"messageCount" gorm:"default:0"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	Agent        *Agent     `json:"agent,omitempty" gorm:"-"`
}

// TableName specifies the table name for the UserAgent model.
func (UserAgent) TableName() string {
	return "user_agents"
}
