package gate

import "strings"

// MatchApproval checks a message body against the approval grammar: the
// marker token, a colon, then non-empty free text. The marker comparison is
// case-insensitive; the reason is kept verbatim.
//
// ok is true only for a well-formed approval. malformed is true when the
// body carries the marker but no usable reason; such messages are rejected
// and never transition the gate.
func MatchApproval(marker, body string) (reason string, ok, malformed bool) {
	marker = strings.TrimSpace(marker)
	trimmed := strings.TrimSpace(body)
	if marker == "" || len(trimmed) < len(marker) {
		return "", false, false
	}
	if !strings.EqualFold(trimmed[:len(marker)], marker) {
		return "", false, false
	}

	rest := strings.TrimLeft(trimmed[len(marker):], " \t")
	if !strings.HasPrefix(rest, ":") {
		// Marker without the colon separator, or a longer word that merely
		// starts with the marker. Only the bare marker counts as malformed.
		if rest == "" {
			return "", false, true
		}
		return "", false, false
	}

	reason = strings.TrimSpace(rest[1:])
	if reason == "" {
		return "", false, true
	}
	return reason, true, false
}
