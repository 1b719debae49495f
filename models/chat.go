package models

import "time"

// DefaultChatTitle is the placeholder title assigned at creation time,
// later overwritten by the generated title.
const DefaultChatTitle = "New Chat"

// Chat is a conversation thread between one user and one agent.
// messageCount and lastMessageAt are denormalized and bumped on every
// message write.
type Chat struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	Title         string     `json:"title"`
	UserID        string     `json:"userId" gorm:"index;not null"`
	AgentID       string     `json:"agentId" gorm:"index;not null"`
	MessageCount  int        `json:"messageCount" gorm:"default:0"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	IsActive      bool       `json:"isActive" gorm:"default:true"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	Messages      []Message  `json:"messages,omitempty" gorm:"-"`
}

// TableName specifies the table name for the Chat model.
func (Chat) TableName() string {
	return "chats"
}

// MessageRole is the role of one conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ValidRole reports whether r is one of the accepted message roles.
func ValidRole(r MessageRole) bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// MessageMetadata records how an assistant turn was produced.
type MessageMetadata struct {
	Model     string `json:"model,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
	Tokens    int    `json:"tokens,omitempty"`
}

// Message is one turn within a chat. Content is stored trimmed and is
// never empty.
type Message struct {
	ID        string           `json:"id" gorm:"primaryKey"`
	ChatID    string           `json:"chatId" gorm:"index;not null"`
	UserID    string           `json:"userId" gorm:"index;not null"`
	Role      MessageRole      `json:"role" gorm:"type:varchar(20);not null"`
	Content   string           `json:"content" gorm:"type:text;not null"`
	Metadata  *MessageMetadata `json:"metadata,omitempty" gorm:"serializer:json"`
	IsActive  bool             `json:"isActive" gorm:"default:true"`
	CreatedAt time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}
