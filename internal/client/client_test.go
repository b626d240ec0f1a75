package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyspoiler/spoilercheck/internal/client"
	"github.com/storyspoiler/spoilercheck/internal/metrics"
	"github.com/storyspoiler/spoilercheck/internal/spoilertwin"
	"github.com/storyspoiler/spoilercheck/internal/spoilertwin/twintest"
)

func login(t *testing.T, tw *twintest.Twin, opts ...client.Option) *client.Session {
	t.Helper()
	session, err := client.NewAuthClient(tw.BaseURL, opts...).Login(context.Background(), client.Credentials{
		Username: twintest.Username,
		Password: twintest.Password,
	})
	require.NoError(t, err)
	return session
}

// countClosed serves h and counts connections the server has seen closed.
func countClosed(t *testing.T, h http.Handler) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var closed atomic.Int32
	srv := httptest.NewUnstartedServer(h)
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateClosed {
			closed.Add(1)
		}
	}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv, &closed
}

func TestLogin(t *testing.T) {
	tw := twintest.Start(t)

	session := login(t, tw)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, 1, tw.IssuedTokens())

	entries := tw.Requests.Entries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Authorization, "login must not send a bearer token")
}

func TestLoginBadCredentials(t *testing.T) {
	tw := twintest.Start(t)

	_, err := client.NewAuthClient(tw.BaseURL).Login(context.Background(), client.Credentials{
		Username: twintest.Username,
		Password: "nope",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrNoAccessToken))
	assert.Contains(t, err.Error(), "status 401")
}

func TestLoginMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"u"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := client.NewAuthClient(srv.URL).Login(context.Background(), client.Credentials{})
	assert.ErrorIs(t, err, client.ErrNoAccessToken)
}

func TestLoginTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.NewAuthClient(url, client.WithTimeout(time.Second)).Login(context.Background(), client.Credentials{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, client.ErrNoAccessToken))
	assert.Contains(t, err.Error(), "login: request failed")
}

func TestLoginReleasesConnection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "accepted", status: http.StatusOK, body: `{"accessToken":"tok"}`},
		{name: "rejected", status: http.StatusUnauthorized, body: `{"msg":"Invalid username or password!"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, closed := countClosed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, _ = client.NewAuthClient(srv.URL, client.WithMetrics(metrics.New())).
				Login(context.Background(), client.Credentials{Username: "u", Password: "p"})

			require.Eventually(t, func() bool { return closed.Load() >= 1 }, time.Second, 10*time.Millisecond,
				"login left its connection open")
		})
	}
}

func TestSessionMasked(t *testing.T) {
	assert.Equal(t, "abcd...wxyz", (&client.Session{Token: "abcdefghijklmnopqrstuvwxyz"}).Masked())
	assert.Equal(t, "*****", (&client.Session{Token: "short"}).Masked())
}

func TestStoryLifecycle(t *testing.T) {
	tw := twintest.Start(t)
	session := login(t, tw)
	sc := client.NewStoryClient(tw.BaseURL, session)
	defer sc.Close()
	ctx := context.Background()

	created, err := sc.Create(ctx, client.StoryDraft{Title: "My Secret Ending", Description: "The hero dies."})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, created.StatusCode)
	assert.Equal(t, spoilertwin.MsgCreated, created.Msg)
	require.NotEmpty(t, created.StoryID)

	edited, err := sc.Edit(ctx, created.StoryID, client.StoryDraft{Title: "Edited Spoiler Title", Description: "Now the villain dies!"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, edited.StatusCode)
	assert.Equal(t, spoilertwin.MsgEdited, edited.Msg)

	listed, err := sc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, listed.StatusCode)
	require.Len(t, listed.Stories, 1)
	var story spoilertwin.Story
	require.NoError(t, json.Unmarshal(listed.Stories[0], &story))
	assert.Equal(t, "Edited Spoiler Title", story.Title)

	deleted, err := sc.Delete(ctx, created.StoryID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, deleted.StatusCode)
	assert.Equal(t, spoilertwin.MsgDeleted, deleted.Msg)
}

func TestCloseReleasesIdleConnections(t *testing.T) {
	for _, withMetrics := range []bool{false, true} {
		name := "plain"
		if withMetrics {
			name = "instrumented"
		}
		t.Run(name, func(t *testing.T) {
			srv, closed := countClosed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			}))

			var opts []client.Option
			if withMetrics {
				opts = append(opts, client.WithMetrics(metrics.New()))
			}
			sc := client.NewStoryClient(srv.URL, &client.Session{Token: "t"}, opts...)
			_, err := sc.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int32(0), closed.Load(), "connection stays pooled until Close")

			sc.Close()
			require.Eventually(t, func() bool { return closed.Load() >= 1 }, time.Second, 10*time.Millisecond,
				"Close did not release the idle connection")
		})
	}
}

func TestStoryRequestsCarryBearerToken(t *testing.T) {
	tw := twintest.Start(t)
	session := login(t, tw)
	sc := client.NewStoryClient(tw.BaseURL, session)
	ctx := context.Background()

	_, err := sc.List(ctx)
	require.NoError(t, err)
	_, err = sc.Delete(ctx, "missing")
	require.NoError(t, err)

	entries := tw.Requests.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries[1:] {
		assert.Equal(t, "Bearer "+session.Token, e.Authorization, e.Path)
	}
}

func TestNonSuccessIsNotAnError(t *testing.T) {
	tw := twintest.Start(t)
	sc := client.NewStoryClient(tw.BaseURL, login(t, tw))
	ctx := context.Background()

	resp, err := sc.Create(ctx, client.StoryDraft{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, resp.StoryID)

	resp, err = sc.Edit(ctx, "00000000-0000-0000-0000-000000000000", client.StoryDraft{Title: "t", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.True(t, resp.BodyContains(spoilertwin.MsgNoSpoilers))
}

func TestInvalidTokenGets401(t *testing.T) {
	tw := twintest.Start(t)
	sc := client.NewStoryClient(tw.BaseURL, &client.Session{Token: "forged"})

	resp, err := sc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, resp.Stories)
	assert.Equal(t, spoilertwin.MsgUnauthorized, resp.Msg)
}

func TestIDIsPathEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	sc := client.NewStoryClient(srv.URL+"/api/", &client.Session{Token: "t"})
	_, err := sc.Edit(context.Background(), "a b/c", client.StoryDraft{})
	require.NoError(t, err)
	assert.Equal(t, "/api/Story/Edit/a%20b%2Fc", gotPath)
}

func TestPlainTextBodyLeavesMsgEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Unable to delete this story spoiler!"))
	}))
	t.Cleanup(srv.Close)

	sc := client.NewStoryClient(srv.URL, &client.Session{Token: "t"})
	resp, err := sc.Delete(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, resp.Msg)
	assert.True(t, resp.BodyContains("Unable to delete"))
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	sc := client.NewStoryClient(srv.URL, &client.Session{Token: "tok"}, client.WithUserAgent("spoilercheck-ci/1.0"))
	_, err := sc.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "spoilercheck-ci/1.0", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Empty(t, got.Get("Content-Type"), "bodyless request")
}

func TestTimeout(t *testing.T) {
	tw := twintest.Start(t)
	session := login(t, tw)
	tw.Faults.Set("list", spoilertwin.Fault{Delay: time.Second, StatusCode: http.StatusOK})

	sc := client.NewStoryClient(tw.BaseURL, session, client.WithTimeout(50*time.Millisecond))
	_, err := sc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list: request failed")
}

func TestRateLimitSpacesRequests(t *testing.T) {
	tw := twintest.Start(t)
	session := login(t, tw)

	sc := client.NewStoryClient(tw.BaseURL, session, client.WithRateLimit(20, 1))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := sc.List(ctx)
		require.NoError(t, err)
	}
	// Burst of one at 20/s: the second and third calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitHonorsContext(t *testing.T) {
	tw := twintest.Start(t)
	session := login(t, tw)

	sc := client.NewStoryClient(tw.BaseURL, session, client.WithRateLimit(0.001, 1))
	_, err := sc.List(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sc.List(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestRateLimitSharedAcrossClients(t *testing.T) {
	tw := twintest.Start(t)
	limit := client.WithRateLimit(20, 1)

	start := time.Now()
	session := login(t, tw, limit)
	sc := client.NewStoryClient(tw.BaseURL, session, limit)
	_, err := sc.List(context.Background())
	require.NoError(t, err)

	// Login spent the only token, so the story call waits ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestMetricsRecorded(t *testing.T) {
	tw := twintest.Start(t)
	m := metrics.New()
	session := login(t, tw, client.WithMetrics(m))

	sc := client.NewStoryClient(tw.BaseURL, session, client.WithMetrics(m))
	_, err := sc.Create(context.Background(), client.StoryDraft{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("400", "post")))

	var text strings.Builder
	require.NoError(t, m.WriteText(&text))
	assert.Contains(t, text.String(), "spoilercheck_operations_total")
}
