package fetcher

import (
	"net/http"
	"net/url"
	"strings"
)

// maskedHeaders are headers whose values never reach a log line or error
// message.
var maskedHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
	"X-App-Key",
}

// sensitiveParams are query parameter names masked on exact match. Exact
// matching keeps harmless names like "monkey" or "broken" intact.
var sensitiveParams = map[string]struct{}{
	"token":         {},
	"auth":          {},
	"key":           {},
	"secret":        {},
	"pass":          {},
	"password":      {},
	"passwd":        {},
	"credential":    {},
	"signature":     {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"api_key":       {},
	"app_key":       {},
	"auth_key":      {},
	"client_id":     {},
	"client_secret": {},
	"access_key":    {},
	"secret_key":    {},
	"private_key":   {},
}

// sensitiveParamSuffixes catch structured names like "session_token" that
// the exact table cannot enumerate.
var sensitiveParamSuffixes = []string{
	"_token", "_secret", "_cred", "_sig", "_password", "_passwd",
}

// redactHeaders returns a copy of the headers with authentication values
// masked. The original headers are not modified.
func redactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}

	masked := h.Clone()
	for _, key := range maskedHeaders {
		if masked.Get(key) != "" {
			masked.Set(key, "***")
		}
	}
	return masked
}

// redactURL returns the URL as a string with credentials and sensitive
// query parameter values masked. The original URL is not modified.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	ru := *u

	if u.User != nil {
		if _, has := u.User.Password(); has {
			ru.User = url.UserPassword(u.User.Username(), "xxxxx")
		} else if u.User.Username() != "" {
			// a lone username is likely a token
			ru.User = url.User("xxxxx")
		}
	}

	if u.RawQuery != "" {
		query := ru.Query()
		for key := range query {
			if isSensitiveParam(key) {
				query.Set(key, "xxxxx")
			}
		}
		ru.RawQuery = query.Encode()
	}

	return ru.String()
}

func isSensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := sensitiveParams[lower]; ok {
		return true
	}
	for _, suffix := range sensitiveParamSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
