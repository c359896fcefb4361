// Package router holds the route table of the admin and the navigation guard in front of it.
package router

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Route is one navigable page and its access requirements.
type Route struct {
	Name          string
	Path          string
	RequiresAuth  bool
	RequiresAdmin bool
}

// Route names.
const (
	NameHome  = "Home"
	NameAdmin = "Admin"
	NameLogin = "Login"
)

// Routes is the route table.
var Routes = []Route{
	{Name: NameHome, Path: "/", RequiresAuth: true},
	{Name: NameAdmin, Path: "/admin", RequiresAuth: true, RequiresAdmin: true},
	{Name: NameLogin, Path: "/login"},
}

// Lookup returns the route registered under name.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Route {
	r, ok := Lookup(name)
	if !ok {
		panic("router: unknown route " + name)
	}
	return r
}

// Decision is the outcome of a navigation check.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	}
	return "unknown"
}

// SessionView is what the guard needs from the session.
type SessionView interface {
	Initialize(ctx context.Context) error
	Authenticated() bool
	IsAdmin() bool
}

// Guard decides navigations. The session is initialized on the first check and never again
// for the lifetime of the guard, even after the session has been cleared.
type Guard struct {
	sess SessionView
	log  *zap.Logger

	once sync.Once
	done chan struct{}
}

// NewGuard constructs a guard over sess.
func NewGuard(sess SessionView, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{sess: sess, log: log, done: make(chan struct{})}
}

// Ready waits until the one-time session initialization has completed. Concurrent callers
// share the same initialization.
func (g *Guard) Ready(ctx context.Context) error {
	g.once.Do(func() {
		go func() {
			defer close(g.done)
			if err := g.sess.Initialize(context.WithoutCancel(ctx)); err != nil {
				g.log.Warn("session initialization", zap.Error(err))
			}
		}()
	})
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check decides whether navigation to r may proceed.
func (g *Guard) Check(ctx context.Context, r Route) (Decision, error) {
	if err := g.Ready(ctx); err != nil {
		return RedirectLogin, err
	}

	var d Decision
	switch {
	case !r.RequiresAuth:
		d = Allow
	case !g.sess.Authenticated():
		d = RedirectLogin
	case r.RequiresAdmin && !g.sess.IsAdmin():
		d = RedirectHome
	default:
		d = Allow
	}
	g.log.Debug("navigation", zap.String("route", r.Name), zap.Stringer("decision", d))
	return d, nil
}
