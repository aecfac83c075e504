package tastytrade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/pkg/errors"
)

func TestTokenCachedUntilNearExpiry(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&grants, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Write([]byte(`{"access_token":"tok-1","expires_in":900}`))
	}))
	defer srv.Close()

	now := time.Unix(1700000000, 0)
	ts := &TokenSource{
		ClientID:     "cid",
		ClientSecret: "sec",
		BaseURL:      srv.URL,
		Now:          func() time.Time { return now },
	}

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// still fresh: 900s lifetime, 100s elapsed
	now = now.Add(100 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&grants))

	// within the 60s margin of expiry: refreshed
	now = now.Add(745 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&grants))
}

func TestRefreshFailureFallsBackToFreshGrant(t *testing.T) {
	var grantTypes []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grantType := r.Form.Get("grant_type")
		mu.Lock()
		grantTypes = append(grantTypes, grantType)
		mu.Unlock()

		if grantType == "refresh_token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"invalid_grant","message":"refresh token revoked"}}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok-2","refresh_token":"ref-2","expires_in":900}`))
	}))
	defer srv.Close()

	now := time.Unix(1700000000, 0)
	ts := &TokenSource{
		ClientID:     "cid",
		ClientSecret: "sec",
		BaseURL:      srv.URL,
		Now:          func() time.Time { return now },
	}
	ts.refreshToken = "ref-1"

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, []string{"refresh_token", "client_credentials"}, grantTypes)
}

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&grants, 1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(`{"access_token":"tok-1","expires_in":900}`))
	}))
	defer srv.Close()

	ts := &TokenSource{ClientID: "cid", ClientSecret: "sec", BaseURL: srv.URL}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&grants))
}

func TestInvalidateDropsOnlyMatchingToken(t *testing.T) {
	ts := &TokenSource{ClientID: "cid", ClientSecret: "sec"}
	ts.accessToken = "tok-1"
	ts.expiry = time.Now().Add(time.Hour)

	ts.Invalidate("tok-0")
	assert.Equal(t, "tok-1", ts.accessToken)

	ts.Invalidate("tok-1")
	assert.Empty(t, ts.accessToken)
}

func TestGrantRequiresCredentials(t *testing.T) {
	ts := &TokenSource{}
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSigning))
}
