package chat

import (
	"context"
	"time"

	"github.com/harbor-im/harbor/logger"
	"github.com/harbor-im/harbor/service/storage"
)

const mirrorTimeout = 2 * time.Second

// Presence pushes the full online-user list to every connection whenever the
// registry changes, relays ephemeral typing signals, and writes liveness
// through to the optional redis mirror.
type Presence struct {
	reg    *Registry
	mirror *storage.PresenceMirror // nil when disabled
	nodeID string
}

// NewPresence wires itself in as the registry's change hook.
func NewPresence(reg *Registry, mirror *storage.PresenceMirror, nodeID string) *Presence {
	p := &Presence{reg: reg, mirror: mirror, nodeID: nodeID}
	reg.OnChange(p.broadcast)
	return p
}

// broadcast runs inside the registry lock; it only does non-blocking
// enqueues.
func (p *Presence) broadcast(snapshot []UserRef, conns []*Client) {
	frame := BuildUsers(snapshot)
	for _, c := range conns {
		c.Enqueue(frame)
	}
}

// RelayTyping forwards a typing signal to the named target's connection if
// one exists. Typing signals are not persisted and not rate-limited; a
// dropped signal is not an error.
func (p *Presence) RelayTyping(from *Client, targetID string, typing bool) {
	target, ok := p.reg.Lookup(targetID)
	if !ok {
		return
	}
	target.Enqueue(BuildUserTyping(UserRef{ID: from.UserID, DisplayName: from.DisplayName}, typing))
}

// Mirror write-through. Best effort: failures are logged, never surfaced to
// the connection. Called from the connection's own goroutine, outside the
// registry lock.

func (p *Presence) MirrorOnline(userID string) {
	if p.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := p.mirror.Online(ctx, userID, p.nodeID); err != nil {
		logger.Warnf("[presence] mirror online user=%s: %v", userID, err)
	}
}

func (p *Presence) MirrorRefresh(userID string) {
	if p.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := p.mirror.Refresh(ctx, userID); err != nil {
		logger.Debugf("[presence] mirror refresh user=%s: %v", userID, err)
	}
}

func (p *Presence) MirrorOffline(userID string) {
	if p.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := p.mirror.Offline(ctx, userID); err != nil {
		logger.Warnf("[presence] mirror offline user=%s: %v", userID, err)
	}
}
