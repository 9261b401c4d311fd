package hub

import (
	"sync"
)

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

// Rooms maps a room id to the connections subscribed to it.
type Rooms struct {
	shards [shardCount]*roomShard
}

func NewRooms() *Rooms {
	r := &Rooms{}
	for i := range r.shards {
		r.shards[i] = &roomShard{rooms: make(map[string]map[string]Conn)}
	}
	return r
}

func (r *Rooms) shard(room string) *roomShard {
	return r.shards[shardFor(room)]
}

// Join subscribes conn to room. Joining twice has the effect of once;
// the result is false when conn was already a member.
func (r *Rooms) Join(room string, conn Conn) bool {
	s := r.shard(room)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		s.rooms[room] = members
	}
	if _, exists := members[conn.ID()]; exists {
		return false
	}
	members[conn.ID()] = conn
	return true
}

// Leave unsubscribes conn from room. Empty rooms are dropped.
func (r *Rooms) Leave(room string, conn Conn) bool {
	s := r.shard(room)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[conn.ID()]; !exists {
		return false
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(s.rooms, room)
	}
	return true
}

// MembersOf returns a snapshot of the connections in room.
func (r *Rooms) MembersOf(room string) []Conn {
	s := r.shard(room)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.rooms[room]
	conns := make([]Conn, 0, len(members))
	for _, c := range members {
		conns = append(conns, c)
	}
	return conns
}

func (r *Rooms) IsMember(room string, conn Conn) bool {
	s := r.shard(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[room][conn.ID()]
	return ok
}

// Count returns the number of non-empty rooms.
func (r *Rooms) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.rooms)
		s.mu.RUnlock()
	}
	return n
}

// Broadcast delivers frame to every member of room except exclude, which
// may be nil. Members whose queue is full are counted as dropped.
func (r *Rooms) Broadcast(room string, frame []byte, exclude Conn) PublishResult {
	var res PublishResult
	for _, c := range r.MembersOf(room) {
		if exclude != nil && c.ID() == exclude.ID() {
			continue
		}
		res.record(c.Send(frame))
	}
	return res
}
