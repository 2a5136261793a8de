package auth

import "sync"

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session reports who is signed in. IsLoading is true while the identity is
// still being resolved, in which case CurrentUser may be nil.
type Session interface {
	CurrentUser() *User
	IsLoading() bool
}

// Context is a mutable, process-wide session.
type Context struct {
	mu      sync.RWMutex
	user    *User
	loading bool
}

func NewContext() *Context {
	return &Context{}
}

// StartLoading marks the identity as unresolved, e.g. while a token is being checked.
func (c *Context) StartLoading() {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
}

func (c *Context) Begin(u User) {
	c.mu.Lock()
	c.user = &u
	c.loading = false
	c.mu.Unlock()
}

func (c *Context) End() {
	c.mu.Lock()
	c.user = nil
	c.loading = false
	c.mu.Unlock()
}

func (c *Context) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Context) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

type fixedSession struct {
	user *User
}

func (s fixedSession) CurrentUser() *User { return s.user }
func (s fixedSession) IsLoading() bool    { return false }

// Anonymous is a resolved session with nobody signed in.
var Anonymous Session = fixedSession{}

// UserSession is a resolved session for u, used per request by the HTTP host.
func UserSession(u User) Session {
	return fixedSession{user: &u}
}
