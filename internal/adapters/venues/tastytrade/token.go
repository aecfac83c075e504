package tastytrade

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

// refreshMargin is how early a token is considered stale. Refreshing ahead
// of expiry avoids racing the venue's clock on the last request.
const refreshMargin = 60 * time.Second

// TokenSource exchanges a client-credentials pair for a bearer token and
// keeps it fresh. A token within refreshMargin of expiry is refreshed
// before use; a refresh-grant failure falls back to a fresh
// client-credentials acquisition. Concurrent callers share one in-flight
// exchange via singleflight.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	BaseURL      string

	HTTPClient *http.Client
	Now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time

	group singleflight.Group
}

// Token returns a bearer token valid for at least refreshMargin.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	token := ts.accessToken
	fresh := token != "" && ts.now().Before(ts.expiry.Add(-refreshMargin))
	ts.mu.Unlock()

	if fresh {
		return token, nil
	}
	return ts.exchange(ctx)
}

// Invalidate drops the cached token if it is still the one the caller got a
// 401 with. The next Token call performs a fresh exchange.
func (ts *TokenSource) Invalidate(token string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.accessToken == token {
		ts.accessToken = ""
		ts.expiry = time.Time{}
	}
}

func (ts *TokenSource) exchange(ctx context.Context) (string, error) {
	v, err, _ := ts.group.Do("token", func() (interface{}, error) {
		ts.mu.Lock()
		refresh := ts.refreshToken
		ts.mu.Unlock()

		if refresh != "" {
			token, err := ts.grant(ctx, url.Values{
				"grant_type":    []string{"refresh_token"},
				"refresh_token": []string{refresh},
				"client_secret": []string{ts.ClientSecret},
			})
			if err == nil {
				return token, nil
			}
			logger.Get().Debugw("tastytrade token refresh failed, acquiring fresh", "error", err)
		}

		return ts.grant(ctx, url.Values{
			"grant_type":    []string{"client_credentials"},
			"client_id":     []string{ts.ClientID},
			"client_secret": []string{ts.ClientSecret},
		})
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ts *TokenSource) grant(ctx context.Context, form url.Values) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.Wrap(errors.ErrSigning, "tastytrade credentials require client id and secret")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(errors.ErrSigning, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := ts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", venues.ClassifyTransport(venues.VenueTasty, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", venues.ClassifyTransport(venues.VenueTasty, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.NewVenueError(errors.ErrAuth, string(venues.VenueTasty), "", "token exchange rejected", string(raw))
	}

	var res struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &res); err != nil || res.AccessToken == "" {
		return "", errors.NewVenueError(errors.ErrAuth, string(venues.VenueTasty), "", "malformed token response", string(raw))
	}

	ts.mu.Lock()
	ts.accessToken = res.AccessToken
	if res.RefreshToken != "" {
		ts.refreshToken = res.RefreshToken
	}
	ts.expiry = ts.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	ts.mu.Unlock()

	return res.AccessToken, nil
}

func (ts *TokenSource) now() time.Time {
	if ts.Now != nil {
		return ts.Now()
	}
	return time.Now()
}
