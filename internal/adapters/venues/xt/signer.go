package xt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"keyprobe/pkg/errors"
)

// Header prefixes differ between the spot and futures hosts; the digest
// construction is the same.
const (
	spotHeaderPrefix    = "xt-validate-"
	futuresHeaderPrefix = "validate-"

	algorithm         = "HmacSHA256"
	defaultRecvWindow = "5000"
)

// Signer implements the XT validate-header scheme: the signature covers a
// canonical header string (X) plus #path[#query][#body] (Y), HMAC-SHA256
// hex with the secret.
type Signer struct {
	APIKey string
	Secret string
	// Prefix is spotHeaderPrefix or futuresHeaderPrefix depending on host.
	Prefix string

	Now func() time.Time
}

// Apply signs the request and sets the validate headers. query and body
// are the exact strings going on the wire; either may be empty.
func (s *Signer) Apply(req *http.Request, path, query, body string) error {
	if s.APIKey == "" || s.Secret == "" {
		return errors.Wrap(errors.ErrSigning, "xt credentials require app key and secret")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	timestamp := strconv.FormatInt(now().UnixMilli(), 10)

	// X: the signed headers in fixed order. Y: #path with query and body
	// segments appended only when present.
	x := s.Prefix + "algorithms=" + algorithm +
		"&" + s.Prefix + "appkey=" + s.APIKey +
		"&" + s.Prefix + "recvwindow=" + defaultRecvWindow +
		"&" + s.Prefix + "timestamp=" + timestamp
	y := "#" + path
	if query != "" {
		y += "#" + query
	}
	if body != "" {
		y += "#" + body
	}

	mac := hmac.New(sha256.New, []byte(s.Secret))
	_, _ = mac.Write([]byte(x + y))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set(s.Prefix+"algorithms", algorithm)
	req.Header.Set(s.Prefix+"appkey", s.APIKey)
	req.Header.Set(s.Prefix+"recvwindow", defaultRecvWindow)
	req.Header.Set(s.Prefix+"timestamp", timestamp)
	req.Header.Set(s.Prefix+"signature", signature)
	return nil
}
