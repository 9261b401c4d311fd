package hub

import (
	"fmt"
	"sync"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return ErrBackpressure
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	return out
}

func connID(user, n int) string {
	return fmt.Sprintf("u%d-c%d", user, n)
}
