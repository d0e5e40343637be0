// ABOUTME: Message is one role-tagged entry in a conversation history
// ABOUTME: Conversations alternate user and assistant messages
package models

import (
	"errors"
	"time"
)

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation message
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks if the message has a known role
func (m *Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return errors.New("invalid message role")
	}
	return nil
}

// Label returns the display label used in prompts
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "Assistant"
}
