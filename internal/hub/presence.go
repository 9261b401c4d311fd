package hub

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"realtime-chat/internal/domain"
)

// Transition is a user going from zero to one connection (Online) or from
// one to zero (!Online).
type Transition struct {
	User   domain.Identity
	Online bool
}

// TransitionFunc observes presence transitions. It is called while the
// user's shard is locked, so it must not block and must not call back into
// AddConnection or RemoveConnection.
type TransitionFunc func(Transition)

type presenceEntry struct {
	user  domain.Identity
	conns map[string]Conn
}

type presenceShard struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*presenceEntry
}

// Presence maps each online user to the set of its open connections.
// A user is present iff it has at least one connection.
type Presence struct {
	shards [shardCount]*presenceShard

	// every open connection, for global broadcasts
	allMu sync.RWMutex
	all   map[string]Conn

	onTransition TransitionFunc
}

func NewPresence() *Presence {
	p := &Presence{all: make(map[string]Conn)}
	for i := range p.shards {
		p.shards[i] = &presenceShard{users: make(map[uuid.UUID]*presenceEntry)}
	}
	return p
}

// OnTransition installs fn as the transition observer. Call it before any
// connection is added.
func (p *Presence) OnTransition(fn TransitionFunc) {
	p.onTransition = fn
}

func (p *Presence) shard(userID uuid.UUID) *presenceShard {
	return p.shards[shardFor(userID.String())]
}

// AddConnection registers conn under user and reports whether this was the
// user's first connection.
func (p *Presence) AddConnection(user domain.Identity, conn Conn) (becameOnline bool) {
	s := p.shard(user.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[user.UserID]
	if !ok {
		entry = &presenceEntry{user: user, conns: make(map[string]Conn)}
		s.users[user.UserID] = entry
	}
	if _, dup := entry.conns[conn.ID()]; dup {
		return false
	}
	entry.conns[conn.ID()] = conn

	p.allMu.Lock()
	p.all[conn.ID()] = conn
	p.allMu.Unlock()

	becameOnline = len(entry.conns) == 1
	if becameOnline && p.onTransition != nil {
		p.onTransition(Transition{User: entry.user, Online: true})
	}
	return becameOnline
}

// RemoveConnection deregisters conn and reports whether the user has no
// connections left. Removing an unknown connection is a no-op.
func (p *Presence) RemoveConnection(userID uuid.UUID, conn Conn) (becameOffline bool) {
	s := p.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		return false
	}
	if _, member := entry.conns[conn.ID()]; !member {
		return false
	}
	delete(entry.conns, conn.ID())

	p.allMu.Lock()
	delete(p.all, conn.ID())
	p.allMu.Unlock()

	if len(entry.conns) > 0 {
		return false
	}
	delete(s.users, userID)
	if p.onTransition != nil {
		p.onTransition(Transition{User: entry.user, Online: false})
	}
	return true
}

// ConnectionsFor returns the user's open connections, empty when offline.
func (p *Presence) ConnectionsFor(userID uuid.UUID) []Conn {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.users[userID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(entry.conns))
	for _, c := range entry.conns {
		conns = append(conns, c)
	}
	return conns
}

func (p *Presence) IsOnline(userID uuid.UUID) bool {
	s := p.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// OnlineUsers returns a snapshot of every online user, sorted by username.
func (p *Presence) OnlineUsers() []domain.Identity {
	var users []domain.Identity
	for _, s := range p.shards {
		s.mu.RLock()
		for _, entry := range s.users {
			users = append(users, entry.user)
		}
		s.mu.RUnlock()
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Username == users[j].Username {
			return users[i].UserID.String() < users[j].UserID.String()
		}
		return users[i].Username < users[j].Username
	})
	return users
}

// ConnectionCount returns the number of open connections across all users.
func (p *Presence) ConnectionCount() int {
	p.allMu.RLock()
	defer p.allMu.RUnlock()
	return len(p.all)
}

// Broadcast sends frame to every open connection.
func (p *Presence) Broadcast(frame []byte) PublishResult {
	p.allMu.RLock()
	conns := make([]Conn, 0, len(p.all))
	for _, c := range p.all {
		conns = append(conns, c)
	}
	p.allMu.RUnlock()

	var res PublishResult
	for _, c := range conns {
		res.record(c.Send(frame))
	}
	return res
}

// SendToUser sends frame to each connection of userID.
func (p *Presence) SendToUser(userID uuid.UUID, frame []byte) PublishResult {
	var res PublishResult
	for _, c := range p.ConnectionsFor(userID) {
		res.record(c.Send(frame))
	}
	return res
}
