// Package hub holds the in-memory connection state shared by all sessions:
// who is online on which connections, and which connections are subscribed
// to which rooms. Both tables lock per key (striped) so unrelated users and
// rooms never wait on each other.
package hub

import (
	"errors"
	"hash/fnv"
)

const shardCount = 32

var (
	// ErrBackpressure is returned by Conn.Send when the outbound queue is full.
	ErrBackpressure = errors.New("hub: outbound queue full")
	// ErrClosed is returned by Conn.Send after the connection closed.
	ErrClosed = errors.New("hub: connection closed")
)

// Conn is one live connection as seen by the hub. Send must not block.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// PublishResult counts the outcome of a fan-out.
type PublishResult struct {
	Delivered int
	Dropped   int
}

func (r *PublishResult) record(err error) {
	if err != nil {
		r.Dropped++
		return
	}
	r.Delivered++
}

func shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
