package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"keyprobe/pkg/errors"
)

// timestampLayout is the exact ISO millisecond format the venue verifies.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Signer implements the OKX header scheme: the signature covers
// timestamp + METHOD + requestPath(+query) + body, HMAC-SHA256 with the
// secret, base64-encoded, and travels in OK-ACCESS-* headers alongside the
// key and passphrase. Entirely separate from the Binance query scheme.
type Signer struct {
	APIKey     string
	Secret     string
	Passphrase string
	Simulated  bool

	Now func() time.Time
}

// Apply signs the request and sets the authentication headers.
// requestPath must include the query string when present.
func (s *Signer) Apply(req *http.Request, requestPath, body string) error {
	if s.APIKey == "" || s.Secret == "" || s.Passphrase == "" {
		return errors.Wrap(errors.ErrSigning, "okx credentials require key, secret and passphrase")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	timestamp := now().UTC().Format(timestampLayout)

	prehash := timestamp + strings.ToUpper(req.Method) + requestPath + body

	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write([]byte(prehash))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("OK-ACCESS-KEY", s.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", s.Passphrase)
	if s.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
	return nil
}
