package binance

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/pkg/errors"
)

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func TestSignQueryDeterministic(t *testing.T) {
	signer := &Signer{APIKey: "key", Secret: "secret", RecvWindow: 5000, Now: fixedClock}

	first, err := signer.SignQuery(url.Values{"symbol": []string{"BTCUSDT"}, "side": []string{"BUY"}})
	require.NoError(t, err)
	second, err := signer.SignQuery(url.Values{"side": []string{"BUY"}, "symbol": []string{"BTCUSDT"}})
	require.NoError(t, err)

	assert.Equal(t, first, second, "same params and timestamp must sign identically")
}

func TestSignQueryShape(t *testing.T) {
	signer := &Signer{APIKey: "key", Secret: "secret", RecvWindow: 5000, Now: fixedClock}

	query, err := signer.SignQuery(url.Values{"symbol": []string{"BTCUSDT"}})
	require.NoError(t, err)

	parsed, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", parsed.Get("timestamp"))
	assert.Equal(t, "5000", parsed.Get("recvWindow"))
	assert.Len(t, parsed.Get("signature"), 64, "hex-encoded sha256")

	// signature is appended after the sorted canonical region
	last := query[strings.LastIndex(query, "&")+1:]
	assert.True(t, strings.HasPrefix(last, "signature="))
}

func TestSignQueryMissingSecret(t *testing.T) {
	signer := &Signer{APIKey: "key"}
	_, err := signer.SignQuery(url.Values{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSigning))
}
