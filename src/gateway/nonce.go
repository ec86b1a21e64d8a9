package gateway

import (
	"strings"

	"github.com/google/uuid"
)

// newNonce returns a 32-character correlation id, the longest the gateway
// accepts for guild member requests.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
