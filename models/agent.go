package models

import "time"

// AgentCategory groups agents for display purposes.
// Invariant: name is unique among active categories.
type AgentCategory struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"index;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Icon        string    `json:"icon"`
	Order       int       `json:"order" gorm:"column:display_order;default:0"`
	IsActive    bool      `json:"isActive" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the AgentCategory model.
func (AgentCategory) TableName() string {
	return "agent_categories"
}

// Agent is a configured AI persona: a model plus a system prompt plus
// purchase metadata. The model string is free-form and interpreted by the
// provider resolver at request time.
type Agent struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"index;not null"`
	Description  string       `json:"description" gorm:"type:text"`
	Price        float64      `json:"price" gorm:"default:0"`
	CategoryID   string       `json:"categoryId" gorm:"index;not null"`
	Model        string       `json:"model"` // e.g. "gpt-4o-mini", "llama3-8b-8192"
	Capabilities StringList   `json:"capabilities" gorm:"serializer:json"`
	SystemPrompt string       `json:"systemPrompt" gorm:"type:text"`
	Temperature  float32      `json:"temperature" gorm:"default:0"`
	MaxTokens    int          `json:"maxTokens" gorm:"default:0"`
	IsFree       bool         `json:"isFree" gorm:"default:false"`
	Icon         string       `json:"icon"`
	Tags         StringList   `json:"tags" gorm:"serializer:json"`
	IsActive     bool         `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time    `json:"updatedAt" gorm:"autoUpdateTime"`
	Category     *AgentCategory `json:"category,omitempty" gorm:"-"`
}

// TableName specifies the table name for the Agent model.
func (Agent) TableName() string {
	return "agents"
}

// StringList is a string slice stored as a JSON column.
type StringList []string
