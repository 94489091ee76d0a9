package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginInstallsCredential(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gamer@example.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":"u1","username":"gamer","email":"gamer@example.com"}}`))
	}))
	defer auth.Close()

	var gotAuthz string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer api.Close()

	c := New(api.URL, auth.URL)
	resp, err := c.Login(context.Background(), "gamer@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "gamer", resp.User.Username)

	_, err = c.ListServers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuthz)
}

func TestListMessagesPassesLimitAndOrder(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/c1/messages", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"m3","channel_id":"c1","user_id":"u1","content":"newest","attachments":[],"created_at":"2026-03-01T12:00:03Z"},
			{"id":"m2","channel_id":"c1","user_id":"u1","content":"middle","attachments":[],"created_at":"2026-03-01T12:00:02Z"},
			{"id":"m1","channel_id":"c1","user_id":"u1","content":"oldest","attachments":[],"created_at":"2026-03-01T12:00:01Z"}
		]`))
	}))
	defer api.Close()

	c := New(api.URL, api.URL, WithToken("tok-1"))
	messages, err := c.ListMessages(context.Background(), "c1", 50)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// the collaborator's newest-first order is passed through untouched
	assert.Equal(t, "m3", messages[0].ID)
	assert.Equal(t, "m1", messages[2].ID)
}

func TestNonSuccessYieldsStatusError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("not a member of this server"))
	}))
	defer api.Close()

	c := New(api.URL, api.URL, WithToken("tok-1"))
	_, err := c.ListChannels(context.Background(), "s1")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "not a member of this server", statusErr.Body)
	assert.Contains(t, err.Error(), "not a member")
}

func TestStatusErrorWithoutBodyUsesCode(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "HTTP 502", err.Error())
}

func TestCreateServerPostsName(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/servers", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "squad", body["name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"s1","name":"squad","owner_id":"u1","invite_code":"abc123","created_at":"2026-03-01T12:00:00Z"}`))
	}))
	defer api.Close()

	c := New(api.URL, api.URL, WithToken("tok-1"))
	srv, err := c.CreateServer(context.Background(), "squad")
	require.NoError(t, err)
	assert.Equal(t, "s1", srv.ID)
	assert.Equal(t, "abc123", srv.InviteCode)
}

func TestPostMessageReturnsCreated(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/c1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "glhf", body["content"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","channel_id":"c1","user_id":"u1","content":"glhf","attachments":[],"created_at":"2026-03-01T12:00:00Z"}`))
	}))
	defer api.Close()

	c := New(api.URL, api.URL, WithToken("tok-1"))
	msg, err := c.PostMessage(context.Background(), "c1", "glhf")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
}

func TestRegister(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gamer", body["username"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer auth.Close()

	c := New(auth.URL, auth.URL)
	require.NoError(t, c.Register(context.Background(), "gamer", "gamer@example.com", "hunter2"))
}
