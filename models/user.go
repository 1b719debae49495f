package models

import "time"

// SubscriptionPlan defines the possible subscription tiers for a user.
type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "free"
	PlanPremium    SubscriptionPlan = "premium"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// User is an identity record created on first successful OAuth login.
// Users are never hard-deleted, only deactivated.
type User struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	Email         string           `json:"email" gorm:"uniqueIndex;not null"`
	Name          string           `json:"name"`
	Avatar        string           `json:"avatar"`
	Provider      string           `json:"provider"` // "google" or "github"
	Plan          SubscriptionPlan `json:"plan" gorm:"type:varchar(20);default:'free'"`
	PlanExpiresAt *time.Time       `json:"planExpiresAt,omitempty"`
	IsActive      bool             `json:"isActive" gorm:"default:true"`
	CreatedAt     time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
