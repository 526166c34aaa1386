// Package guard decides, before a page renders, whether the visitor must be
// redirected based on authentication state and path category.
package guard

import (
	"net/url"
	"strings"
)

const (
	DashboardPath = "/dashboard"
	SignInPath    = "/signin"
	SignUpPath    = "/signup"

	// ReturnToParam carries the originally requested path through sign-in
	ReturnToParam = "from"
)

// Category classifies a request path for the guard
type Category int

const (
	Unguarded Category = iota
	AuthPage
	ProtectedPage
)

// Classify returns the category of a request path. Only /dashboard,
// /dashboard/*, /signin and /signup are guarded.
func Classify(path string) Category {
	switch {
	case path == SignInPath || path == SignUpPath:
		return AuthPage
	case path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/"):
		return ProtectedPage
	default:
		return Unguarded
	}
}

// Matches reports whether the guard applies to path at all
func Matches(path string) bool {
	return Classify(path) != Unguarded
}

// Decision is the outcome of evaluating the guard for one request.
// An empty Redirect means the request proceeds.
type Decision struct {
	Redirect string
}

// Pass reports whether the request is allowed through
func (d Decision) Pass() bool {
	return d.Redirect == ""
}

// Target is the redirect path without its query string
func (d Decision) Target() string {
	if i := strings.IndexByte(d.Redirect, '?'); i >= 0 {
		return d.Redirect[:i]
	}
	return d.Redirect
}

// Decide evaluates the guard. rawQuery is the request's query string without
// the leading "?".
func Decide(authenticated bool, path, rawQuery string) Decision {
	switch Classify(path) {
	case AuthPage:
		if authenticated {
			return Decision{Redirect: DashboardPath}
		}
	case ProtectedPage:
		if !authenticated {
			return Decision{Redirect: SignInRedirect(path, rawQuery)}
		}
	}
	return Decision{}
}

// SignInRedirect builds the sign-in URL preserving the original path and query
func SignInRedirect(path, rawQuery string) string {
	from := path
	if rawQuery != "" {
		from += "?" + rawQuery
	}
	return SignInPath + "?" + ReturnToParam + "=" + url.QueryEscape(from)
}
