// Package router decides which portal view a navigation ends up on.
// It mirrors the access rules of the web frontend: a handful of public
// pages, everything else requires a session, and the admin pages
// additionally require admin rights.
package router

import (
	"context"
	"log"
	"net/url"
	"strings"

	"portalctl/internal/notify"
)

// Well-known paths.
const (
	PathHome       = "/"
	PathLogin      = "/login"
	PathInterfaces = "/interfaces"
	PathUsers      = "/users"
	PathAudit      = "/audit"
	PathProfile    = "/profile"
	PathSettings   = "/settings"
)

// loginStateParam marks a navigation that returns from an external
// login provider. Its presence forces a session probe before the
// access rules run.
const loginStateParam = "wgLoginState"

// Route is one entry of the navigation table.
type Route struct {
	Path      string
	Name      string
	Public    bool
	AdminOnly bool
}

// Routes returns the portal's navigation table.
func Routes() []Route {
	return []Route{
		{Path: PathHome, Name: "home", Public: true},
		{Path: PathLogin, Name: "login", Public: true},
		{Path: PathInterfaces, Name: "interfaces", AdminOnly: true},
		{Path: PathUsers, Name: "users", AdminOnly: true},
		{Path: PathAudit, Name: "audit", AdminOnly: true},
		{Path: PathProfile, Name: "profile"},
		{Path: PathSettings, Name: "settings"},
	}
}

// Session is the slice of the session store the guard needs.
type Session interface {
	IsAuthenticated() bool
	IsAdmin() bool
	ReturnURL() string
	SetReturnURL(link string)
	LoadSession(ctx context.Context) (string, error)
}

// TokenLoader refreshes the CSRF token, implemented by the security
// store.
type TokenLoader interface {
	LoadToken(ctx context.Context)
}

// Decision is the outcome of resolving a navigation target.
type Decision struct {
	Route      Route
	Redirected bool
}

// Guard applies the access rules to navigation targets.
type Guard struct {
	routes  []Route
	session Session
	notes   notify.Notifier
}

func NewGuard(session Session, notes notify.Notifier) *Guard {
	return &Guard{routes: Routes(), session: session, notes: notes}
}

// Resolve decides where a navigation to target ends up. Targets
// carrying the external login marker complete a provider login first:
// a successful one continues to the stored return URL, a failed one
// lands on the login page. Restricted targets reached without a
// session record the target as return URL and land on the login page.
func (g *Guard) Resolve(ctx context.Context, target string) Decision {
	u, err := url.Parse(target)
	if err != nil {
		log.Printf("router: invalid target %q: %v", target, err)
		return Decision{Route: g.mustRoute(PathHome), Redirected: true}
	}

	if u.Query().Has(loginStateParam) && !g.session.IsAuthenticated() {
		return g.finishProviderLogin(ctx, u.Query().Get(loginStateParam))
	}

	route, ok := g.route(u.Path)
	if !ok {
		return Decision{Route: g.mustRoute(PathHome), Redirected: true}
	}

	if !route.Public && !g.session.IsAuthenticated() {
		g.session.SetReturnURL(target)
		return Decision{Route: g.mustRoute(PathLogin), Redirected: true}
	}
	if route.AdminOnly && !g.session.IsAdmin() {
		return Decision{Route: g.mustRoute(PathHome), Redirected: true}
	}
	return Decision{Route: route}
}

// finishProviderLogin handles the callback from an external login
// provider. The stored return URL is read before the session probe,
// which resets it, so a successful login continues to the page the
// user originally asked for.
func (g *Guard) finishProviderLogin(ctx context.Context, state string) Decision {
	returnURL := g.session.ReturnURL()

	if state != "success" {
		g.notes.Notify(notify.New("Login failed!", "Authentication via external provider failed!", notify.TypeError))
		return Decision{Route: g.mustRoute(PathLogin), Redirected: true}
	}
	if _, err := g.session.LoadSession(ctx); err != nil {
		log.Printf("router: provider login did not produce a session: %v", err)
		g.notes.Notify(notify.New("Login failed!", "Provider session is invalid!", notify.TypeError))
		return Decision{Route: g.mustRoute(PathLogin), Redirected: true}
	}

	g.notes.Notify(notify.New("Logged in", "Authentication succeeded!", notify.TypeSuccess))
	d := g.Resolve(ctx, returnURL)
	d.Redirected = true
	return d
}

func (g *Guard) route(path string) (Route, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = PathHome
	}
	for _, r := range g.routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

func (g *Guard) mustRoute(path string) Route {
	r, _ := g.route(path)
	return r
}

// Navigator runs navigations end to end: guard rules first, then a
// CSRF token refresh whenever an unauthenticated visitor lands on a
// public page, so the login form always has a fresh token.
type Navigator struct {
	guard   *Guard
	session Session
	tokens  TokenLoader
}

func NewNavigator(guard *Guard, session Session, tokens TokenLoader) *Navigator {
	return &Navigator{guard: guard, session: session, tokens: tokens}
}

// Navigate resolves the target and performs the post-navigation work.
func (n *Navigator) Navigate(ctx context.Context, target string) Decision {
	d := n.guard.Resolve(ctx, target)
	if d.Route.Public && !n.session.IsAuthenticated() {
		n.tokens.LoadToken(ctx)
	}
	return d
}
