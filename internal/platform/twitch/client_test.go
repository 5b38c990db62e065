package twitch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

type fakeHelix struct {
	tokenCalls   atomic.Int32
	streamCalls  atomic.Int32
	rejectFirst  atomic.Bool
	mu           sync.Mutex
	lastGameIDs  []string
	lastAfter    string
	streamsPages map[string]streamsResponse
}

func (f *fakeHelix) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		n := f.tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "tok" + string(rune('0'+n)),
			ExpiresIn:   3600,
			TokenType:   "bearer",
		})
	})
	mux.HandleFunc("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		f.streamCalls.Add(1)
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		if f.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid token"}`))
			return
		}
		f.mu.Lock()
		f.lastGameIDs = r.URL.Query()["game_id"]
		f.lastAfter = r.URL.Query().Get("after")
		page := f.streamsPages[f.lastAfter]
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/helix/games", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(categoriesResponse{})
	})
	mux.HandleFunc("/helix/search/categories", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Pokemon Unite", r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(categoriesResponse{Data: []Category{{ID: "1", Name: "Pokémon UNITE"}}})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeHelix) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient("cid", "secret",
		WithHelixURL(srv.URL+"/helix"),
		WithTokenURL(srv.URL+"/oauth2/token"),
		WithRateLimit(1000, 100),
	)
}

func TestLiveStreamsFollowsCursor(t *testing.T) {
	f := &fakeHelix{streamsPages: map[string]streamsResponse{
		"": {
			Data:       []APIStream{{ID: "s1", UserLogin: "ash", Title: "Ash vs Misty"}},
			Pagination: pagination{Cursor: "c1"},
		},
		"c1": {
			Data: []APIStream{{ID: "s2", UserLogin: "misty", Title: "Misty wins"}},
		},
	}}
	c := newTestClient(t, f)

	streams, err := c.LiveStreams(context.Background(), []string{"10", "20"}, 100, 3)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "s1", streams[0].ID)
	assert.Equal(t, "ash", streams[0].UserLogin)
	assert.Equal(t, "s2", streams[1].ID)
	f.mu.Lock()
	assert.Equal(t, []string{"10", "20"}, f.lastGameIDs)
	f.mu.Unlock()
	assert.Equal(t, int32(1), f.tokenCalls.Load(), "token is cached between calls")
}

func TestLiveStreamsSinglePageByDefault(t *testing.T) {
	f := &fakeHelix{streamsPages: map[string]streamsResponse{
		"": {Data: []APIStream{{ID: "s1"}}, Pagination: pagination{Cursor: "c1"}},
	}}
	c := newTestClient(t, f)

	streams, err := c.LiveStreams(context.Background(), []string{"10"}, 100, 0)
	require.NoError(t, err)
	assert.Len(t, streams, 1)
	assert.Equal(t, int32(1), f.streamCalls.Load())
}

func TestUnauthorizedRefreshesTokenOnce(t *testing.T) {
	f := &fakeHelix{streamsPages: map[string]streamsResponse{
		"": {Data: []APIStream{{ID: "s1"}}},
	}}
	f.rejectFirst.Store(true)
	c := newTestClient(t, f)

	streams, _, err := c.GetStreams(context.Background(), StreamsQuery{GameIDs: []string{"10"}})
	require.NoError(t, err)
	assert.Len(t, streams, 1)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
	assert.Equal(t, int32(2), f.streamCalls.Load())
}

func TestGetGameNotFound(t *testing.T) {
	c := newTestClient(t, &fakeHelix{})
	_, err := c.GetGame(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchCategories(t *testing.T) {
	c := newTestClient(t, &fakeHelix{})
	cats, err := c.SearchCategories(context.Background(), "Pokemon Unite")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Pokémon UNITE", cats[0].Name)
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(http.StatusOK, nil))
	assert.ErrorIs(t, checkHTTPStatus(http.StatusNotFound, nil), domain.ErrNotFound)
	assert.ErrorIs(t, checkHTTPStatus(http.StatusForbidden, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(http.StatusTooManyRequests, nil), domain.ErrRateLimited)
	assert.Error(t, checkHTTPStatus(http.StatusInternalServerError, []byte("boom")))
}

func TestTimeoutOptionLeavesCustomClientAlone(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}

	c := NewClient("cid", "secret", WithHTTPClient(hc), WithTimeout(30*time.Second))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, time.Second, hc.Timeout)

	c = NewClient("cid", "secret", WithTimeout(30*time.Second), WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, time.Second, hc.Timeout)
}

func TestTimeoutOptionAppliesToDefaultClient(t *testing.T) {
	assert.Equal(t, defaultTimeout, NewClient("cid", "secret").httpClient.Timeout)
	assert.Equal(t, 3*time.Second, NewClient("cid", "secret", WithTimeout(3*time.Second)).httpClient.Timeout)
	assert.Equal(t, defaultTimeout, NewClient("cid", "secret", WithTimeout(0)).httpClient.Timeout)
}
