package session

import (
	"sync"

	"github.com/dronegrade/harness/pkg/core"
)

// Context holds the active session and, once it has ended, its result.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	result  *core.SessionResult
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Session returns the active session, or nil before Init.
func (c *Context) Session() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Result returns the final result, or nil while the session is running.
func (c *Context) Result() *core.SessionResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Set makes s the active session and clears any previous result.
func (c *Context) Set(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.result = nil
}

// End records the final result of the active session.
func (c *Context) End(r core.SessionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &r
}
