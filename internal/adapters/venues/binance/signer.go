package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"keyprobe/pkg/errors"
)

// Signer implements the Binance HMAC query-string scheme shared by the
// spot and Portfolio-Margin hosts: stable key-ordered query, millisecond
// timestamp sourced at signing time, HMAC-SHA256 hex appended as
// &signature=.
type Signer struct {
	APIKey     string
	Secret     string
	RecvWindow int64 // milliseconds

	// Now is overridable for deterministic signing in tests.
	Now func() time.Time
}

// SignQuery stamps timestamp/recvWindow into params and returns the final
// encoded query including the signature. params is modified in place.
func (s *Signer) SignQuery(params url.Values) (string, error) {
	if s.Secret == "" {
		return "", errors.Wrap(errors.ErrSigning, "missing secret key")
	}
	if params == nil {
		params = url.Values{}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	params.Set("timestamp", strconv.FormatInt(now().UnixMilli(), 10))
	if s.RecvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(s.RecvWindow, 10))
	}

	// url.Values.Encode sorts by key, which is the canonical order the
	// signature must cover. The signature itself goes last, outside the
	// sorted region, as the venue verifies the raw string up to it.
	payload := params.Encode()
	return payload + "&signature=" + s.sign(payload), nil
}

// Apply sets the authentication headers on a signed request.
func (s *Signer) Apply(req *http.Request) {
	req.Header.Set("X-MBX-APIKEY", s.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write([]byte(payload))
	return fmt.Sprintf("%x", mac.Sum(nil))
}
