package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-im/harbor/service/storage"
	"github.com/harbor-im/harbor/tools/errs"
)

func newRouterFixture(t *testing.T) (*Router, *storage.MemoryStore, *Registry) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.AddUser(storage.User{ID: "u1", DisplayName: "Alice"})
	store.AddUser(storage.User{ID: "u2", DisplayName: "Bob"})
	store.AddUser(storage.User{ID: "u3", DisplayName: "Carol"})
	store.AddUser(storage.User{ID: "u4", DisplayName: "Dave"})
	store.AddGroup(storage.Group{ID: "g1", Name: "general", OwnerID: "u1"}, "u1", "u2", "u4")

	reg := NewRegistry()
	r := NewRouter(store, reg, NewRateLimiter(), nil)
	return r, store, reg
}

func TestDirectSendValidation(t *testing.T) {
	r, _, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	reg.Admit(sender)
	drainFrames(t, sender) // discard presence

	tests := []struct {
		name    string
		payload SendMessagePayload
		want    *errs.CodeError
	}{
		{"whitespace only", SendMessagePayload{To: "u2", Content: "   "}, errs.ErrEmptyContent},
		{"empty", SendMessagePayload{To: "u2", Content: ""}, errs.ErrEmptyContent},
		{"too long", SendMessagePayload{To: "u2", Content: strings.Repeat("x", 1001)}, errs.ErrContentTooLong},
		{"self send", SendMessagePayload{To: "u1", Content: "hi"}, errs.ErrSelfSend},
		{"unknown recipient", SendMessagePayload{To: "nobody", Content: "hi"}, errs.ErrRecipientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := r.SendDirect(context.Background(), sender, tt.payload)
			require.NotNil(t, cerr)
			assert.Equal(t, tt.want.Code, cerr.Code)
			assert.Empty(t, drainFrames(t, sender), "rejected send must deliver nothing")
		})
	}
}

func TestDirectSendBoundaryLength(t *testing.T) {
	r, _, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	reg.Admit(sender)
	drainFrames(t, sender)

	cerr := r.SendDirect(context.Background(), sender, SendMessagePayload{
		To:      "u2",
		Content: strings.Repeat("x", 1000),
	})
	assert.Nil(t, cerr, "exactly 1000 characters is accepted")
}

func TestDirectSendOfflineRecipient(t *testing.T) {
	r, store, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	other := newTestClient("u3", "Carol")
	reg.Admit(sender)
	reg.Admit(other)
	drainFrames(t, sender)
	drainFrames(t, other)

	cerr := r.SendDirect(context.Background(), sender, SendMessagePayload{To: "u2", Content: "hi"})
	require.Nil(t, cerr)

	// sender gets exactly one echo
	echoes := framesOfType(drainFrames(t, sender), EventReceiveMessage)
	require.Len(t, echoes, 1)
	msg := decodePayload[MessagePayload](t, echoes[0])
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "u1", msg.Sender.ID)
	require.NotNil(t, msg.Recipient)
	assert.Equal(t, "u2", msg.Recipient.ID)

	// no other live connection sees it
	assert.Empty(t, framesOfType(drainFrames(t, other), EventReceiveMessage))

	// the recipient can fetch it from history later
	hist, err := store.DirectHistory(context.Background(), "u2", "u1", 100)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0].Content)
}

func TestDirectSendDeliversToOnlineRecipient(t *testing.T) {
	r, _, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	recipient := newTestClient("u2", "Bob")
	reg.Admit(sender)
	reg.Admit(recipient)
	drainFrames(t, sender)
	drainFrames(t, recipient)

	require.Nil(t, r.SendDirect(context.Background(), sender, SendMessagePayload{To: "u2", Content: "hey"}))

	require.Len(t, framesOfType(drainFrames(t, sender), EventReceiveMessage), 1)
	got := framesOfType(drainFrames(t, recipient), EventReceiveMessage)
	require.Len(t, got, 1)
	assert.Equal(t, "hey", decodePayload[MessagePayload](t, got[0]).Content)
}

func TestDirectSendPersistsBeforeDelivery(t *testing.T) {
	r, store, reg := newRouterFixture(t)
	store.FailSaves = assert.AnError

	sender := newTestClient("u1", "Alice")
	recipient := newTestClient("u2", "Bob")
	reg.Admit(sender)
	reg.Admit(recipient)
	drainFrames(t, sender)
	drainFrames(t, recipient)

	cerr := r.SendDirect(context.Background(), sender, SendMessagePayload{To: "u2", Content: "hi"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrSendFailed.Code, cerr.Code)

	// a message that was never stored must not reach anyone
	assert.Empty(t, framesOfType(drainFrames(t, sender), EventReceiveMessage))
	assert.Empty(t, framesOfType(drainFrames(t, recipient), EventReceiveMessage))
}

func TestDirectSendRateLimited(t *testing.T) {
	r, _, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	reg.Admit(sender)

	for i := 0; i < RateLimitMax; i++ {
		require.True(t, r.limiter.Check("u1"))
	}
	cerr := r.SendDirect(context.Background(), sender, SendMessagePayload{To: "u2", Content: "hi"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrRateLimited.Code, cerr.Code)
}

func TestGroupSendValidation(t *testing.T) {
	r, _, reg := newRouterFixture(t)
	sender := newTestClient("u3", "Carol") // not a member of g1
	reg.Admit(sender)

	cerr := r.SendGroup(context.Background(), sender, SendGroupMessagePayload{GroupID: "missing", Content: "hi"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGroupNotFound.Code, cerr.Code)

	cerr = r.SendGroup(context.Background(), sender, SendGroupMessagePayload{GroupID: "g1", Content: "hi"})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotGroupMember.Code, cerr.Code)
}

func TestGroupFanout(t *testing.T) {
	r, store, reg := newRouterFixture(t)
	// members of g1: u1, u2, u4; u4 stays offline, u3 is online but not a member
	sender := newTestClient("u1", "Alice")
	bob := newTestClient("u2", "Bob")
	carol := newTestClient("u3", "Carol")
	reg.Admit(sender)
	reg.Admit(bob)
	reg.Admit(carol)
	drainFrames(t, sender)
	drainFrames(t, bob)
	drainFrames(t, carol)

	require.Nil(t, r.SendGroup(context.Background(), sender, SendGroupMessagePayload{GroupID: "g1", Content: "hello all"}))

	// sender: exactly one echo
	echoes := framesOfType(drainFrames(t, sender), EventReceiveMessage)
	require.Len(t, echoes, 1)
	msg := decodePayload[MessagePayload](t, echoes[0])
	require.NotNil(t, msg.Group)
	assert.Equal(t, "g1", msg.Group.ID)
	assert.Equal(t, "general", msg.Group.Name)

	// online member receives it, online non-member does not
	require.Len(t, framesOfType(drainFrames(t, bob), EventReceiveMessage), 1)
	assert.Empty(t, framesOfType(drainFrames(t, carol), EventReceiveMessage))

	// the offline member finds it in history
	hist, err := store.GroupHistory(context.Background(), "g1", 100)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello all", hist[0].Content)
}

func TestGroupMembershipResolvedFreshPerSend(t *testing.T) {
	r, store, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	carol := newTestClient("u3", "Carol")
	reg.Admit(sender)
	reg.Admit(carol)
	drainFrames(t, sender)
	drainFrames(t, carol)

	require.Nil(t, r.SendGroup(context.Background(), sender, SendGroupMessagePayload{GroupID: "g1", Content: "first"}))
	assert.Empty(t, framesOfType(drainFrames(t, carol), EventReceiveMessage))

	// Carol joins between sends and must receive the next message
	store.AddMember("g1", "u3")
	require.Nil(t, r.SendGroup(context.Background(), sender, SendGroupMessagePayload{GroupID: "g1", Content: "second"}))

	got := framesOfType(drainFrames(t, carol), EventReceiveMessage)
	require.Len(t, got, 1)
	assert.Equal(t, "second", decodePayload[MessagePayload](t, got[0]).Content)
}

func TestSenderOrderingPreserved(t *testing.T) {
	r, store, reg := newRouterFixture(t)
	sender := newTestClient("u1", "Alice")
	reg.Admit(sender)
	drainFrames(t, sender)

	base := time.Unix(1_700_000_000, 0)
	step := 0
	r.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Millisecond)
	}

	for _, content := range []string{"one", "two", "three"} {
		require.Nil(t, r.SendDirect(context.Background(), sender, SendMessagePayload{To: "u2", Content: content}))
	}

	hist, err := store.DirectHistory(context.Background(), "u1", "u2", 100)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "one", hist[0].Content)
	assert.Equal(t, "two", hist[1].Content)
	assert.Equal(t, "three", hist[2].Content)

	echoes := framesOfType(drainFrames(t, sender), EventReceiveMessage)
	require.Len(t, echoes, 3)
	assert.Equal(t, "one", decodePayload[MessagePayload](t, echoes[0]).Content)
	assert.Equal(t, "three", decodePayload[MessagePayload](t, echoes[2]).Content)
}
