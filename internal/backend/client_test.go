package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do_ForwardsBearerAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, WaitlistPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "proj_9", r.Header.Get("X-Project-ID"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"a@b.co"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"queued":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	resp, err := c.Do(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        WaitlistPath,
		Body:        []byte(`{"email":"a@b.co"}`),
		AccessToken: "tok",
		Header:      http.Header{"X-Project-ID": []string{"proj_9"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"queued":true}`, string(resp.Body))
}

func TestClient_Do_NoAuthHeaderWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New(srv.URL, time.Second).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestClient_Do_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestResponse_ErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantHit bool
	}{
		{name: "error field", body: `{"error":"Email taken"}`, want: "Email taken", wantHit: true},
		{name: "message field", body: `{"message":"Bad company"}`, want: "Bad company", wantHit: true},
		{name: "no fields", body: `{"status":"nope"}`},
		{name: "not json", body: `<html>502</html>`},
		{name: "array", body: `["x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := (&Response{Body: []byte(tt.body)}).ErrorMessage()
			assert.Equal(t, tt.wantHit, ok)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"bad credentials"}`))
			return
		}
		w.Write([]byte(`{"accessToken":"a","refreshToken":"r","projectId":"p","user":{"id":"u","email":"ada@example.com"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	tokens, resp, err := c.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a", tokens.AccessToken)
	assert.Equal(t, "p", tokens.ProjectID)
	assert.Equal(t, "u", tokens.User.ID)

	tokens, resp, err = c.Login(context.Background(), "ada@example.com", "wrong")
	require.NoError(t, err)
	assert.Nil(t, tokens)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClient_Refresh_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"refreshToken":"r"}`))
	}))
	defer srv.Close()

	_, _, err := New(srv.URL, time.Second).Refresh(context.Background(), "r")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestStatusError(t *testing.T) {
	err := StatusError(&Response{StatusCode: 503, Body: []byte(`{"error":"maintenance"}`)})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")

	err = StatusError(&Response{StatusCode: 404})
	assert.EqualError(t, err, "unexpected backend status 404")
}
