// Package wire implements the compliance rules both clients share: the
// pinned API base URL, gateway URL assembly, user-agent and content-type
// validation, and parsing of Discord's rate-limit and error payloads.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skua-io/skua/src/errs"
)

const (
	// APIBaseURL is the only REST origin this library will talk to.
	APIBaseURL = "https://discord.com/api/v10"

	GatewayVersion  = "10"
	GatewayEncoding = "json"
	GatewayCompress = "zlib-stream"

	LibraryName    = "skua"
	LibraryVersion = "0.1.0"
	LibraryURL     = "https://github.com/skua-io/skua"
)

// IsAPIURL reports whether url points at the pinned host and API version.
// Legacy discordapp.com hosts are rejected outright.
func IsAPIURL(url string) bool {
	if !strings.HasPrefix(url, "https://") {
		return false
	}
	if strings.Contains(url, "discordapp.com") {
		return false
	}
	if !strings.HasPrefix(url, APIBaseURL) {
		return false
	}
	rest := url[len(APIBaseURL):]
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '/', '?', '#':
		return true
	}
	return false
}

// BuildAPIURL turns a path (or an already-absolute URL) into a full API URL.
// Absolute URLs must already satisfy IsAPIURL.
func BuildAPIURL(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if !IsAPIURL(path) {
			return "", fmt.Errorf("%w: not a discord api url: %s", errs.ErrInvalidParam, path)
		}
		return path, nil
	}
	if path == "" {
		return APIBaseURL, nil
	}
	if path[0] == '/' {
		return APIBaseURL + path, nil
	}
	return APIBaseURL + "/" + path, nil
}

// UserAgent holds the parts of the user-agent string Discord documents:
// "DiscordBot (url, version)" plus optional trailing identifiers.
type UserAgent struct {
	Name    string
	Version string
	URL     string
	Extra   string
}

func FormatUserAgent(ua UserAgent) (string, error) {
	if ua.URL == "" || ua.Version == "" {
		return "", fmt.Errorf("%w: user agent requires url and version", errs.ErrInvalidParam)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DiscordBot (%s, %s)", ua.URL, ua.Version)
	if ua.Name != "" {
		b.WriteString(" " + ua.Name)
	}
	if ua.Extra != "" {
		b.WriteString(" " + ua.Extra)
	}
	return b.String(), nil
}

func DefaultUserAgent() string {
	s, _ := FormatUserAgent(UserAgent{
		Name:    LibraryName,
		Version: LibraryVersion,
		URL:     LibraryURL,
	})
	return s
}

// ValidUserAgent checks a user-agent string against the documented pattern.
// Anything after the closing paren must begin with a single space.
func ValidUserAgent(value string) bool {
	const prefix = "DiscordBot ("
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	rest := value[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma <= 0 {
		return false
	}
	after := rest[comma+1:]
	if !strings.HasPrefix(after, " ") {
		return false
	}
	ver := after[1:]
	end := strings.IndexByte(ver, ')')
	if end <= 0 {
		return false
	}
	suffix := ver[end+1:]
	return suffix == "" || suffix[0] == ' '
}

// AuthType selects the Authorization header scheme.
type AuthType int

const (
	AuthBot AuthType = iota
	AuthBearer
)

func FormatAuthHeader(kind AuthType, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", errs.ErrInvalidParam)
	}
	switch kind {
	case AuthBot:
		return "Bot " + token, nil
	case AuthBearer:
		return "Bearer " + token, nil
	}
	return "", fmt.Errorf("%w: unknown auth type %d", errs.ErrInvalidParam, kind)
}

// ctMatches reports whether value names the given media type, ignoring case,
// leading blanks and any ";"-delimited parameters.
func ctMatches(value, token string) bool {
	value = strings.TrimLeft(value, " \t")
	if len(value) < len(token) {
		return false
	}
	if !strings.EqualFold(value[:len(token)], token) {
		return false
	}
	rest := strings.TrimLeft(value[len(token):], " \t")
	return rest == "" || rest[0] == ';'
}

// ContentTypeAllowed reports whether the request content type is one the API
// accepts.
func ContentTypeAllowed(contentType string) bool {
	return ctMatches(contentType, "application/json") ||
		ctMatches(contentType, "application/x-www-form-urlencoded") ||
		ctMatches(contentType, "multipart/form-data")
}

// ValidJSON reports whether body is a complete, well-formed JSON document.
func ValidJSON(body []byte) bool {
	return len(body) > 0 && json.Valid(body)
}

// BoolFormat selects how boolean query parameters are rendered.
type BoolFormat int

const (
	BoolTrueFalse BoolFormat = iota
	BoolOneZero
)

// AppendQueryBool appends key=value to a query string, starting it with "?"
// when empty and chaining with "&" otherwise.
func AppendQueryBool(query, key string, value bool, format BoolFormat) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty query key", errs.ErrInvalidParam)
	}
	var val string
	switch format {
	case BoolTrueFalse:
		if value {
			val = "true"
		} else {
			val = "false"
		}
	case BoolOneZero:
		if value {
			val = "1"
		} else {
			val = "0"
		}
	default:
		return "", fmt.Errorf("%w: unknown bool format %d", errs.ErrInvalidParam, format)
	}
	sep := "?"
	if query != "" {
		sep = "&"
	}
	return query + sep + key + "=" + val, nil
}
