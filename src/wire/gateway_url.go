package wire

import (
	"fmt"
	"strings"

	"github.com/skua-io/skua/src/errs"
)

func urlHasParam(url, key string) bool {
	_, ok := urlParamValue(url, key)
	return ok
}

func urlParamValue(url, key string) (string, bool) {
	q := strings.IndexByte(url, '?')
	if q < 0 {
		return "", false
	}
	for _, pair := range strings.Split(url[q+1:], "&") {
		if v, found := strings.CutPrefix(pair, key+"="); found {
			return v, true
		}
	}
	return "", false
}

// BuildGatewayURL validates a gateway URL and appends the version, encoding
// and compression query parameters the connection needs. Parameters already
// present must not conflict; the compress parameter is only legal when
// compression is enabled for the client.
func BuildGatewayURL(base string, compress bool) (string, error) {
	if !strings.HasPrefix(base, "wss://") {
		return "", fmt.Errorf("%w: gateway url must use wss scheme", errs.ErrInvalidParam)
	}
	if v, ok := urlParamValue(base, "v"); ok && v != GatewayVersion {
		return "", fmt.Errorf("%w: gateway version %q conflicts with pinned v%s", errs.ErrInvalidParam, v, GatewayVersion)
	}
	if enc, ok := urlParamValue(base, "encoding"); ok && enc != GatewayEncoding {
		return "", fmt.Errorf("%w: gateway encoding %q not supported", errs.ErrInvalidParam, enc)
	}
	if c, ok := urlParamValue(base, "compress"); ok {
		if !compress {
			return "", fmt.Errorf("%w: compress parameter present but compression disabled", errs.ErrInvalidParam)
		}
		if c != GatewayCompress {
			return "", fmt.Errorf("%w: compress %q not supported", errs.ErrInvalidParam, c)
		}
	}

	out := base
	hasQuery := strings.IndexByte(base, '?') >= 0
	appendParam := func(kv string) {
		if hasQuery {
			out += "&" + kv
		} else {
			out += "?" + kv
			hasQuery = true
		}
	}
	if !urlHasParam(base, "v") {
		appendParam("v=" + GatewayVersion)
	}
	if !urlHasParam(base, "encoding") {
		appendParam("encoding=" + GatewayEncoding)
	}
	if compress && !urlHasParam(base, "compress") {
		appendParam("compress=" + GatewayCompress)
	}
	return out, nil
}
