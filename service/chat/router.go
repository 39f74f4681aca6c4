package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/natsx"
	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
	"github.com/harbor-im/harbor/tools/ids"
)

// MaxContentLength caps message content at 1000 Unicode code points after
// trimming.
const MaxContentLength = 1000

// Router validates, persists and delivers messages. A message is always
// persisted before any live delivery; delivery itself is fire-and-forget
// relative to the sender's acknowledgment.
type Router struct {
	store    storage.Store
	reg      *Registry
	limiter  *RateLimiter
	firehose *natsx.Firehose // nil when disabled

	now   func() time.Time
	newID func() string
}

func NewRouter(store storage.Store, reg *Registry, limiter *RateLimiter, firehose *natsx.Firehose) *Router {
	return &Router{
		store:    store,
		reg:      reg,
		limiter:  limiter,
		firehose: firehose,
		now:      time.Now,
		newID:    ids.GenerateString,
	}
}

// SendDirect handles a direct-send intent from an active connection. A nil
// return means the message was persisted and the sender's echo enqueued;
// otherwise the returned CodeError is signalled back and the connection stays
// open.
func (r *Router) SendDirect(ctx context.Context, sender *Client, p SendMessagePayload) *errs.CodeError {
	content, cerr := validateContent(p.Content)
	if cerr != nil {
		return cerr
	}
	if p.To == sender.UserID {
		return errs.ErrSelfSend
	}

	recipient, err := r.store.GetUser(ctx, p.To)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errs.ErrRecipientNotFound
		}
		logger.Errorf("[router] resolve recipient %s: %v", p.To, err)
		return errs.ErrSendFailed
	}

	if !r.limiter.Check(sender.UserID) {
		return errs.ErrRateLimited
	}

	m := &storage.DirectMessage{
		ID:          r.newID(),
		Content:     content,
		CreatedAt:   r.now().UTC(),
		SenderID:    sender.UserID,
		RecipientID: recipient.ID,
	}
	if err := r.store.SaveDirect(ctx, m); err != nil {
		logger.Errorf("[router] persist direct message from=%s to=%s: %v", m.SenderID, m.RecipientID, err)
		return errs.ErrSendFailed
	}
	r.firehose.PublishDirect(m)

	frame := BuildDirectMessage(m,
		UserRef{ID: sender.UserID, DisplayName: sender.DisplayName},
		UserRef{ID: recipient.ID, DisplayName: recipient.DisplayName})

	// echo to the sender exactly once, then the recipient if online
	sender.Enqueue(frame)
	if rc, ok := r.reg.Lookup(recipient.ID); ok {
		rc.Enqueue(frame)
	}
	return nil
}

// SendGroup handles a group-send intent. Membership is resolved fresh on
// every send; a member who joined seconds ago receives this message.
func (r *Router) SendGroup(ctx context.Context, sender *Client, p SendGroupMessagePayload) *errs.CodeError {
	content, cerr := validateContent(p.Content)
	if cerr != nil {
		return cerr
	}

	group, err := r.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errs.ErrGroupNotFound
		}
		logger.Errorf("[router] resolve group %s: %v", p.GroupID, err)
		return errs.ErrSendFailed
	}
	isMember, err := r.store.IsMember(ctx, group.ID, sender.UserID)
	if err != nil {
		logger.Errorf("[router] check membership group=%s user=%s: %v", group.ID, sender.UserID, err)
		return errs.ErrSendFailed
	}
	if !isMember {
		return errs.ErrNotGroupMember
	}

	if !r.limiter.Check(sender.UserID) {
		return errs.ErrRateLimited
	}

	members, err := r.store.MemberIDs(ctx, group.ID)
	if err != nil {
		logger.Errorf("[router] list members group=%s: %v", group.ID, err)
		return errs.ErrSendFailed
	}

	m := &storage.GroupMessage{
		ID:        r.newID(),
		Content:   content,
		CreatedAt: r.now().UTC(),
		SenderID:  sender.UserID,
		GroupID:   group.ID,
	}
	if err := r.store.SaveGroup(ctx, m); err != nil {
		logger.Errorf("[router] persist group message from=%s group=%s: %v", m.SenderID, m.GroupID, err)
		return errs.ErrSendFailed
	}
	r.firehose.PublishGroup(m)

	frame := BuildGroupMessage(m,
		UserRef{ID: sender.UserID, DisplayName: sender.DisplayName},
		GroupRef{ID: group.ID, Name: group.Name})

	sender.Enqueue(frame)
	for _, memberID := range members {
		if memberID == sender.UserID {
			continue // already echoed
		}
		if mc, ok := r.reg.Lookup(memberID); ok {
			mc.Enqueue(frame)
		}
	}
	return nil
}

// validateContent trims and bounds message content: non-empty, at most
// MaxContentLength code points.
func validateContent(content string) (string, *errs.CodeError) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", errs.ErrEmptyContent
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", errs.ErrContentTooLong
	}
	return trimmed, nil
}
