package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
)

// Frame is the envelope for every event in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → server event types.
const (
	EventAuth             = "auth"
	EventSendMessage      = "sendMessage"
	EventSendGroupMessage = "sendGroupMessage"
	EventTyping           = "typing"
)

// Server → client event types.
const (
	EventConnectionConfirmed = "connection_confirmed"
	EventAuthError           = "auth_error"
	EventUsers               = "users"
	EventReceiveMessage      = "receiveMessage"
	EventUserTyping          = "userTyping"
	EventError               = "error"
)

type AuthPayload struct {
	Token string `json:"token"`
}

type SendMessagePayload struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

type SendGroupMessagePayload struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

type TypingPayload struct {
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

type UserRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessagePayload is the persisted representation pushed to live recipients.
// Exactly one of Recipient/Group is set.
type MessagePayload struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    UserRef   `json:"sender"`
	Recipient *UserRef  `json:"recipient,omitempty"`
	Group     *GroupRef `json:"group,omitempty"`
}

type UserTypingPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Typing      bool   `json:"typing"`
}

type ConnectionConfirmedPayload struct {
	User UserRef `json:"user"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return &f, nil
}

func (f *Frame) DecodePayload(v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("frame %q missing payload", f.Type)
	}
	return json.Unmarshal(f.Payload, v)
}

// ---- server frame builders ----

func buildFrame(typ string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		// our own types only; a failure here is a programming error
		logger.Errorf("[frames] marshal %s payload: %v", typ, err)
		return nil
	}
	data, err := json.Marshal(Frame{Type: typ, Payload: raw})
	if err != nil {
		logger.Errorf("[frames] marshal %s frame: %v", typ, err)
		return nil
	}
	return data
}

func BuildConnectionConfirmed(user UserRef) []byte {
	return buildFrame(EventConnectionConfirmed, ConnectionConfirmedPayload{User: user})
}

func BuildAuthError(e *errs.CodeError) []byte {
	return buildFrame(EventAuthError, ErrorPayload{Message: e.Msg, Code: e.Code})
}

func BuildError(e *errs.CodeError) []byte {
	return buildFrame(EventError, ErrorPayload{Message: e.Msg, Code: e.Code})
}

func BuildUsers(users []UserRef) []byte {
	if users == nil {
		users = []UserRef{}
	}
	return buildFrame(EventUsers, users)
}

func BuildDirectMessage(m *storage.DirectMessage, sender, recipient UserRef) []byte {
	return buildFrame(EventReceiveMessage, MessagePayload{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Sender:    sender,
		Recipient: &recipient,
	})
}

func BuildGroupMessage(m *storage.GroupMessage, sender UserRef, group GroupRef) []byte {
	return buildFrame(EventReceiveMessage, MessagePayload{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Sender:    sender,
		Group:     &group,
	})
}

func BuildUserTyping(user UserRef, typing bool) []byte {
	return buildFrame(EventUserTyping, UserTypingPayload{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Typing:      typing,
	})
}
