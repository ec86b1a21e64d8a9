package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/skua-io/skua/src/errs"
)

// HeaderFunc looks up a response header by name, returning "" when absent.
// Both the live http.Response path and test fakes satisfy it.
type HeaderFunc func(name string) string

// Scope identifies which quota a rate-limit response refers to.
type Scope string

const (
	ScopeUnknown Scope = ""
	ScopeUser    Scope = "user"
	ScopeGlobal  Scope = "global"
	ScopeShared  Scope = "shared"
)

func scopeFromString(value string) Scope {
	switch value {
	case "user":
		return ScopeUser
	case "global":
		return ScopeGlobal
	case "shared":
		return ScopeShared
	}
	return ScopeUnknown
}

// RateLimit is the bucket snapshot carried by Discord's rate-limit response
// headers. Reset is epoch seconds; ResetAfter and RetryAfter are relative
// seconds.
type RateLimit struct {
	Limit      int
	Remaining  int
	Reset      float64
	ResetAfter float64
	RetryAfter float64
	Bucket     string
	Global     bool
	Scope      Scope
}

func parseNonNegativeInt(value string) (int, bool) {
	value = strings.TrimRight(value, " \t")
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseSeconds(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseRateLimit reads the X-RateLimit-* and Retry-After headers into a
// snapshot. Absent or malformed headers leave zero values.
func ParseRateLimit(get HeaderFunc) RateLimit {
	var rl RateLimit
	if v := get("X-RateLimit-Limit"); v != "" {
		if n, ok := parseNonNegativeInt(v); ok {
			rl.Limit = n
		}
	}
	if v := get("X-RateLimit-Remaining"); v != "" {
		if n, ok := parseNonNegativeInt(v); ok {
			rl.Remaining = n
		}
	}
	if v := get("X-RateLimit-Reset"); v != "" {
		if f, ok := parseSeconds(v); ok {
			rl.Reset = f
		}
	}
	if v := get("X-RateLimit-Reset-After"); v != "" {
		if f, ok := parseSeconds(v); ok {
			rl.ResetAfter = f
		}
	}
	rl.Bucket = get("X-RateLimit-Bucket")
	if v := get("X-RateLimit-Global"); v != "" {
		rl.Global = v == "true"
	}
	if v := get("X-RateLimit-Scope"); v != "" {
		rl.Scope = scopeFromString(v)
	}
	if v := get("Retry-After"); v != "" {
		if f, ok := parseSeconds(v); ok {
			rl.RetryAfter = f
		}
	}
	return rl
}

// APIError is the error document returned by the REST API for 4xx/5xx
// responses. Errors keeps the per-field sub-error tree raw.
type APIError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// ParseAPIError decodes an error body. The message field is required; a
// present code must be an integer.
func ParseAPIError(body []byte) (APIError, error) {
	var out APIError
	raw, err := decodeObject(body)
	if err != nil {
		return out, err
	}
	if msgRaw, ok := raw["message"]; ok {
		if err := json.Unmarshal(msgRaw, &out.Message); err != nil {
			return APIError{}, fmt.Errorf("%w: error message is not a string", errs.ErrFormat)
		}
	} else {
		return out, fmt.Errorf("%w: error body missing message", errs.ErrFormat)
	}
	if codeRaw, ok := raw["code"]; ok {
		if err := json.Unmarshal(codeRaw, &out.Code); err != nil {
			return APIError{}, fmt.Errorf("%w: error code is not an integer", errs.ErrFormat)
		}
	}
	if errsRaw, ok := raw["errors"]; ok {
		out.Errors = errsRaw
	}
	return out, nil
}

// RateLimitBody is the JSON document carried by 429 responses.
type RateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
	Code       int     `json:"code"`
}

// ParseRateLimitBody decodes a 429 body. The message field is required;
// present retry_after, global and code fields must have their documented
// types.
func ParseRateLimitBody(body []byte) (RateLimitBody, error) {
	var out RateLimitBody
	raw, err := decodeObject(body)
	if err != nil {
		return out, err
	}
	msgRaw, ok := raw["message"]
	if !ok {
		return out, fmt.Errorf("%w: rate limit body missing message", errs.ErrFormat)
	}
	if err := json.Unmarshal(msgRaw, &out.Message); err != nil {
		return RateLimitBody{}, fmt.Errorf("%w: rate limit message is not a string", errs.ErrFormat)
	}
	if v, ok := raw["retry_after"]; ok {
		if err := json.Unmarshal(v, &out.RetryAfter); err != nil {
			return RateLimitBody{}, fmt.Errorf("%w: retry_after is not a number", errs.ErrFormat)
		}
	}
	if v, ok := raw["global"]; ok {
		if err := json.Unmarshal(v, &out.Global); err != nil {
			return RateLimitBody{}, fmt.Errorf("%w: global is not a bool", errs.ErrFormat)
		}
	}
	if v, ok := raw["code"]; ok {
		if err := json.Unmarshal(v, &out.Code); err != nil {
			return RateLimitBody{}, fmt.Errorf("%w: code is not an integer", errs.ErrFormat)
		}
	}
	return out, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", errs.ErrFormat)
	}
	if !ValidJSON(body) {
		return nil, fmt.Errorf("%w: body is not valid json", errs.ErrJSON)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: body is not a json object", errs.ErrFormat)
	}
	return raw, nil
}
