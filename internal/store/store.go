// ABOUTME: Store interface and data types for supervisor session history
// ABOUTME: Defines Session and Message structs shared by the SQLite and mock stores

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session groups the messages of one conversation with the supervisor
type Session struct {
	ID           string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one turn recorded in a session
type Message struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Author    string // who produced it: "user", "supervisor", or an agent name
	Content   string
	CreatedAt time.Time
}

// Store persists session history. Implementations must be safe for
// concurrent use.
type Store interface {
	// AddSessionMessage appends a message, creating the session on first use.
	// Empty ID and zero CreatedAt are filled in.
	AddSessionMessage(ctx context.Context, msg *Message) error

	// GetSessionMessages returns the most recent limit messages in
	// chronological order. limit <= 0 returns all of them.
	GetSessionMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// GetSession returns session metadata or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	Close() error
}
