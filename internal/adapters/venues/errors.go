package venues

import (
	"context"
	"net"
	"strconv"

	"github.com/tidwall/gjson"

	"keyprobe/pkg/errors"
)

// ClassifyTransport maps a failed HTTP round trip into the common taxonomy.
// Deadline expiry becomes a timeout, everything else a network failure;
// the caller decides whether either is retryable.
func ClassifyTransport(venue VenueName, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewVenueError(errors.ErrTimeout, string(venue), "", err.Error(), "")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewVenueError(errors.ErrTimeout, string(venue), "", err.Error(), "")
	}

	return errors.NewVenueError(errors.ErrNetwork, string(venue), "", err.Error(), "")
}

// payloadCodeFields and payloadMsgFields cover the error-shape vocabulary
// seen across the supported venues. Used only for payloads the adapter's
// own decoder did not recognize.
var (
	payloadCodeFields = []string{"code", "error_code", "returnCode", "rc", "mc", "error.code"}
	payloadMsgFields  = []string{"msg", "message", "error", "error.message", "mc"}
)

// Unmapped wraps a venue error payload the adapter does not recognize.
// The raw payload is preserved verbatim; a best-effort probe pulls a code
// and message out of common field spellings so logs stay searchable.
func Unmapped(venue VenueName, status int, raw []byte) error {
	code := ""
	msg := ""

	for _, field := range payloadCodeFields {
		if v := gjson.GetBytes(raw, field); v.Exists() {
			code = v.String()
			break
		}
	}
	for _, field := range payloadMsgFields {
		if v := gjson.GetBytes(raw, field); v.Exists() && v.Type == gjson.String {
			msg = v.String()
			break
		}
	}

	if msg == "" {
		msg = "http status " + strconv.Itoa(status)
	}

	return errors.NewVenueError(errors.ErrUnmappedVenue, string(venue), code, msg, string(raw))
}
