package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/pkg/errors"
)

func TestApplySignsPrehash(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	signer := &Signer{
		APIKey:     "key",
		Secret:     "secret",
		Passphrase: "phrase",
		Now:        func() time.Time { return now },
	}

	req, err := http.NewRequest(http.MethodPost, "https://www.okx.com/api/v5/trade/order", nil)
	require.NoError(t, err)

	body := `{"instId":"BTC-USDT","side":"buy"}`
	require.NoError(t, signer.Apply(req, "/api/v5/trade/order", body))

	timestamp := req.Header.Get("OK-ACCESS-TIMESTAMP")
	assert.Equal(t, "2024-03-01T12:30:45.123Z", timestamp)
	assert.Equal(t, "key", req.Header.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "phrase", req.Header.Get("OK-ACCESS-PASSPHRASE"))
	assert.Empty(t, req.Header.Get("x-simulated-trading"))

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(timestamp + "POST" + "/api/v5/trade/order" + body))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, req.Header.Get("OK-ACCESS-SIGN"))
}

func TestApplySimulatedHeader(t *testing.T) {
	signer := &Signer{APIKey: "k", Secret: "s", Passphrase: "p", Simulated: true}
	req, _ := http.NewRequest(http.MethodGet, "https://www.okx.com/api/v5/account/balance", nil)
	require.NoError(t, signer.Apply(req, "/api/v5/account/balance", ""))
	assert.Equal(t, "1", req.Header.Get("x-simulated-trading"))
}

func TestApplyRequiresFullCredential(t *testing.T) {
	signer := &Signer{APIKey: "k", Secret: "s"}
	req, _ := http.NewRequest(http.MethodGet, "https://www.okx.com/api/v5/account/balance", nil)
	err := signer.Apply(req, "/api/v5/account/balance", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSigning))
}
