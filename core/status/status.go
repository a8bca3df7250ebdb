// Package status maps HTTP status codes to reason phrases and infers a
// response content type from a Go value, mirroring the subset of IANA
// status codes the dispatcher and rate limiter actually emit.
package status

import "strings"

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	422: "Unprocessable Entity",
	429: "Too Many Requests",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// Text returns the canonical reason phrase for code, or "Unknown Status"
// if code isn't one tejas recognizes.
func Text(code int) string {
	if phrase, ok := reasonPhrases[code]; ok {
		return phrase
	}
	return "Unknown Status"
}

// CodeForPhrase reverse-looks-up a status code from its reason phrase,
// case-insensitively. Used by the error sender when a generic error's
// message happens to spell out a known phrase (e.g. "not found").
func CodeForPhrase(phrase string) (int, bool) {
	phrase = strings.TrimSpace(phrase)
	for code, text := range reasonPhrases {
		if strings.EqualFold(text, phrase) {
			return code, true
		}
	}
	return 0, false
}

// IsStatusCode reports whether v is a valid HTTP status code, [100, 599].
func IsStatusCode(v int) bool {
	return v >= 100 && v <= 599
}

// ContentType infers a response Content-Type from the shape of v:
// objects/arrays are JSON, HTML-looking strings are text/html,
// everything else is text/plain.
func ContentType(v any) string {
	switch val := v.(type) {
	case nil:
		return "text/plain"
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
			return "text/html"
		}
		return "text/plain"
	case map[string]any, []any:
		return "application/json"
	default:
		return "text/plain"
	}
}
