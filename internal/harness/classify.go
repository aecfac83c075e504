package harness

import (
	"strings"

	"keyprobe/pkg/errors"
)

// Pattern allowlists back up the structured error kinds for payloads an
// adapter could not map. Matching is case-insensitive substring.
var (
	permissionPatterns = []string{
		"permission",
		"not authorized",
		"api-key",
		"apikey",
		"insufficient permissions",
		"auth_106",
		"403",
	}

	businessPatterns = []string{
		"no open orders",
		"no orders",
		"no position",
	}

	// IP allow-list rejections on read probes mean the key works but this
	// host is not whitelisted; treated as pass with an explanation.
	readToleratedPatterns = []string{
		"ip address",
		"whitelist",
	}
)

func matchesAny(msg string, patterns []string) bool {
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func classifyRead(credential, probe string, err error) Verdict {
	v := Verdict{Credential: credential, Probe: probe}

	switch {
	case err == nil:
		v.Passed = true
		v.Message = "ok"
	case errors.Is(err, errors.ErrNotSupported):
		v.Passed = true
		v.Message = "not supported by venue, skipped"
	case matchesAny(err.Error(), readToleratedPatterns):
		v.Passed = true
		v.Message = "restricted by IP allow-list: " + err.Error()
	default:
		v.Message = err.Error()
	}
	return v
}

func classifyWrite(credential, probe string, err error, readOnly bool) Verdict {
	v := Verdict{Credential: credential, Probe: probe}

	if readOnly {
		switch {
		case err == nil:
			v.Message = "write unexpectedly succeeded on a read-only credential"
		case errors.Is(err, errors.ErrNotSupported):
			v.Passed = true
			v.Message = "not supported by venue, skipped"
		case errors.Is(err, errors.ErrPermission):
			v.Passed = true
			v.Message = "write correctly denied"
		case matchesAny(err.Error(), permissionPatterns):
			v.Passed = true
			v.Message = "write correctly denied: " + err.Error()
		default:
			v.Message = err.Error()
		}
		return v
	}

	switch {
	case err == nil:
		v.Passed = true
		v.Message = "ok"
	case errors.Is(err, errors.ErrNotSupported):
		v.Passed = true
		v.Message = "not supported by venue, skipped"
	case errors.Is(err, errors.ErrVenueBusiness):
		v.Passed = true
		v.Message = "acceptable business condition: " + err.Error()
	case matchesAny(err.Error(), businessPatterns):
		v.Passed = true
		v.Message = "acceptable business condition: " + err.Error()
	default:
		v.Message = err.Error()
	}
	return v
}
