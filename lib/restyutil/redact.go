package restyutil

import (
	"net/http"
	"strings"
)

var sensitiveHeaders = map[string]bool{
	"authorization":                     true,
	"cookie":                            true,
	"set-cookie":                        true,
	"x-shopify-storefront-access-token": true,
	"x-shopify-access-token":            true,
	"x-algolia-api-key":                 true,
}

// IsSensitiveHeader reports whether values of the header must not be
// written to dumps or span attributes.
func IsSensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	return sensitiveHeaders[name] || strings.Contains(name, "token") || strings.Contains(name, "secret")
}

// RedactHeaders returns a copy of headers with sensitive values masked.
func RedactHeaders(headers http.Header) http.Header {
	out := make(http.Header, len(headers))
	for k, vals := range headers {
		if IsSensitiveHeader(k) {
			out[k] = []string{"[redacted]"}
			continue
		}
		out[k] = vals
	}
	return out
}
