package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		path          string
		rawQuery      string
		wantRedirect  string
	}{
		{
			name:          "authenticated on signin goes to dashboard",
			authenticated: true,
			path:          "/signin",
			wantRedirect:  "/dashboard",
		},
		{
			name:          "authenticated on signup goes to dashboard",
			authenticated: true,
			path:          "/signup",
			wantRedirect:  "/dashboard",
		},
		{
			name:         "anonymous on nested dashboard page keeps path and query",
			path:         "/dashboard/settings",
			rawQuery:     "x=1",
			wantRedirect: "/signin?from=%2Fdashboard%2Fsettings%3Fx%3D1",
		},
		{
			name:         "anonymous on dashboard root",
			path:         "/dashboard",
			wantRedirect: "/signin?from=%2Fdashboard",
		},
		{
			name: "anonymous on signin passes",
			path: "/signin",
		},
		{
			name:          "authenticated on dashboard passes",
			authenticated: true,
			path:          "/dashboard/projects",
		},
		{
			name: "anonymous on marketing page passes",
			path: "/pricing",
		},
		{
			name: "lookalike prefix is not protected",
			path: "/dashboards",
		},
		{
			name: "signin subpath is not an auth page",
			path: "/signin/help",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.authenticated, tt.path, tt.rawQuery)
			assert.Equal(t, tt.wantRedirect, d.Redirect)
			assert.Equal(t, tt.wantRedirect == "", d.Pass())
		})
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("/dashboard"))
	assert.True(t, Matches("/dashboard/a/b"))
	assert.True(t, Matches("/signin"))
	assert.True(t, Matches("/signup"))
	assert.False(t, Matches("/"))
	assert.False(t, Matches("/api/waitlist"))
	assert.False(t, Matches("/verify-email"))
}

func TestDecision_Target(t *testing.T) {
	assert.Equal(t, "/signin", Decide(false, "/dashboard/x", "a=b").Target())
	assert.Equal(t, "/dashboard", Decide(true, "/signup", "").Target())
	assert.Equal(t, "", Decide(false, "/", "").Target())
}
