package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local development. It
// mirrors the postgres implementation's semantics, including oldest-first
// history ordering.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	groups   map[string]*Group
	members  map[string]map[string]struct{} // group -> set(user)
	directs  []DirectMessage
	groupMsg []GroupMessage

	// FailSaves makes every Save return an error, for exercising the
	// persistence-failure path.
	FailSaves error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		groups:  make(map[string]*Group),
		members: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

func (s *MemoryStore) AddGroup(g Group, memberIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := g
	s.groups[g.ID] = &cp
	set := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		set[id] = struct{}{}
	}
	s.members[g.ID] = set
}

func (s *MemoryStore) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[string]struct{})
	}
	s.members[groupID][userID] = struct{}{}
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetGroup(_ context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) MemberIDs(_ context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.members[groupID]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[groupID][userID]
	return ok, nil
}

func (s *MemoryStore) SaveDirect(_ context.Context, m *DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	s.directs = append(s.directs, *m)
	return nil
}

func (s *MemoryStore) SaveGroup(_ context.Context, m *GroupMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	s.groupMsg = append(s.groupMsg, *m)
	return nil
}

func (s *MemoryStore) DirectHistory(_ context.Context, userA, userB string, limit int) ([]DirectMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DirectMessage
	for _, m := range s.directs {
		if (m.SenderID == userA && m.RecipientID == userB) ||
			(m.SenderID == userB && m.RecipientID == userA) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GroupHistory(_ context.Context, groupID string, limit int) ([]GroupMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GroupMessage
	for _, m := range s.groupMsg {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
