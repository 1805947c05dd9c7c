package atlassian

import (
	"errors"
	"net/http"
	"strings"
)

// Hint returns a short operator-facing explanation for a failed request,
// or "" when there is nothing useful to add.
func Hint(service string, err error) string {
	var remote *RemoteAPIError
	if errors.As(err, &remote) {
		return statusHint(service, remote.StatusCode, remote.Body)
	}
	if errors.Is(err, errHTMLResponse) {
		return service + " answered with an HTML page; the base URL may point at a login form or a proxy."
	}
	return ""
}

func statusHint(service string, status int, body string) string {
	prefix := strings.ToUpper(service)
	switch {
	case status == http.StatusUnauthorized:
		return service + " returned 401. Check " + prefix + "_PAT, and " + prefix + "_USERNAME when " + prefix + "_AUTH_MODE=basic."
	case status == http.StatusForbidden:
		return service + " returned 403. The account lacks permission for this resource."
	case status == http.StatusNotFound:
		return service + " returned 404. The resource may not exist or may be hidden from this account."
	case status == http.StatusTooManyRequests:
		return service + " returned 429 (rate limited). Retry later."
	case status >= 300 && status < 400:
		return service + " redirected the request; the base URL may be wrong or require an interactive login."
	case strings.Contains(strings.ToLower(body), "captcha"):
		return service + " reported a CAPTCHA challenge; log in through the browser once to clear it."
	default:
		return ""
	}
}
