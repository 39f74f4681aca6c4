package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by lookups whose subject does not exist.
var ErrNotFound = errors.New("record not found")

type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// DirectMessage is immutable once stored; the gateway never updates or
// deletes one.
type DirectMessage struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
}

type GroupMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	SenderID  string    `json:"senderId"`
	GroupID   string    `json:"groupId"`
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

type GroupStore interface {
	GetGroup(ctx context.Context, id string) (*Group, error)
	// MemberIDs resolves the current membership set. Callers must re-resolve
	// on every send rather than cache the result.
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

type MessageStore interface {
	SaveDirect(ctx context.Context, m *DirectMessage) error
	SaveGroup(ctx context.Context, m *GroupMessage) error
	// DirectHistory returns messages exchanged between two users, oldest
	// first.
	DirectHistory(ctx context.Context, userA, userB string, limit int) ([]DirectMessage, error)
	// GroupHistory returns a group's messages, oldest first.
	GroupHistory(ctx context.Context, groupID string, limit int) ([]GroupMessage, error)
}

// Store is the full durable-store surface the gateway depends on.
type Store interface {
	UserStore
	GroupStore
	MessageStore
}
