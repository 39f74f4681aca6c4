package errs

// Terminal authentication errors. Any of these force-closes the connection;
// the client must reconnect with a fresh token.
var (
	ErrNoToken        = New("NO_TOKEN", "no bearer token supplied")
	ErrInvalidPayload = New("INVALID_PAYLOAD", "malformed auth payload")
	ErrUserNotFound   = New("USER_NOT_FOUND", "token subject does not resolve to a user")
	ErrTokenExpired   = New("TOKEN_EXPIRED", "bearer token has expired")
	ErrInvalidToken   = New("INVALID_TOKEN", "bearer token is not valid")
	ErrAuthFailed     = New("AUTH_FAILED", "authentication failed")
)

// Non-fatal request errors. Signalled back on the same connection, which
// stays open.
var (
	ErrEmptyContent      = New("EMPTY_CONTENT", "message content is empty")
	ErrContentTooLong    = New("CONTENT_TOO_LONG", "message content exceeds 1000 characters")
	ErrSelfSend          = New("SELF_SEND", "cannot send a message to yourself")
	ErrRecipientNotFound = New("RECIPIENT_NOT_FOUND", "recipient does not exist")
	ErrGroupNotFound     = New("GROUP_NOT_FOUND", "group does not exist")
	ErrNotGroupMember    = New("NOT_GROUP_MEMBER", "sender is not a member of the group")
	ErrRateLimited       = New("RATE_LIMITED", "too many messages, slow down")
	ErrUnknownEvent      = New("UNKNOWN_EVENT", "unrecognized event type")
	ErrBadFrame          = New("BAD_FRAME", "malformed frame")
)

// Infrastructure errors.
var (
	ErrSendFailed      = New("SEND_FAILED", "message could not be stored")
	ErrSessionReplaced = New("SESSION_REPLACED", "this session was replaced by a newer connection")
)
