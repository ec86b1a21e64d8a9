package rest

import (
	"fmt"
	"strings"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/wire"
)

// extractPath reduces an absolute API URL or a bare path to the path portion,
// dropping query and fragment. Absolute URLs must point at the pinned host.
func extractPath(input string) (string, error) {
	if strings.HasPrefix(input, "http://") {
		return "", fmt.Errorf("%w: plaintext api url", errs.ErrInvalidParam)
	}
	if strings.HasPrefix(input, "https://") {
		if !wire.IsAPIURL(input) {
			return "", fmt.Errorf("%w: not a discord api url: %s", errs.ErrInvalidParam, input)
		}
		path := input[len(wire.APIBaseURL):]
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			return "/", nil
		}
		return path, nil
	}
	if input == "" {
		return "", fmt.Errorf("%w: empty request path", errs.ErrInvalidParam)
	}
	if input[0] != '/' {
		input = "/" + input
	}
	if i := strings.IndexAny(input, "?#"); i >= 0 {
		input = input[:i]
	}
	return input, nil
}

// isInteractionPath marks interaction callback routes, which are exempt from
// the global limiter.
func isInteractionPath(path string) bool {
	return strings.HasPrefix(path, "/interactions/")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// buildRouteKey derives the rate-limit route key and major parameter from a
// method and path. Numeric segments become ":id"; the segment after a webhook
// id becomes ":token" so distinct webhook tokens share one bucket. The major
// parameter is the first id after a channels/guilds/webhooks/interactions
// root, or "global" when the route has none.
func buildRouteKey(method, path string) (string, string) {
	var key strings.Builder
	key.WriteString(method)
	key.WriteString(" ")

	major := ""
	prevSeg := ""
	prevWasWebhookID := false
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		key.WriteString("/")
		switch {
		case isDigits(seg):
			if major == "" {
				switch prevSeg {
				case "channels", "guilds", "webhooks", "interactions":
					major = prevSeg + "/" + seg
				}
			}
			key.WriteString(":id")
		case prevWasWebhookID:
			key.WriteString(":token")
		default:
			key.WriteString(seg)
		}
		prevWasWebhookID = isDigits(seg) && prevSeg == "webhooks"
		prevSeg = seg
	}

	if major == "" {
		major = "global"
	}
	return key.String(), major
}
