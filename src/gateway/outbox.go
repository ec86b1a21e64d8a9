package gateway

import (
	"fmt"
	"time"

	"github.com/skua-io/skua/src/errs"
)

// maxPayloadSize is the gateway's limit for a single sent frame.
const maxPayloadSize = 4096

// outgoing is one queued frame. due delays sends (identify spacing); urgent
// frames jump the queue so heartbeats and handshakes never sit behind bulk
// requests.
type outgoing struct {
	payload []byte
	due     time.Time
	urgent  bool
	op      GatewayOpcode
}

func (c *Client) outboxPush(payload []byte, urgent bool, due time.Time, op GatewayOpcode) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload exceeds %d bytes", errs.ErrInvalidParam, maxPayloadSize)
	}
	msg := outgoing{payload: payload, due: due, urgent: urgent, op: op}
	if urgent {
		c.outbox = append([]outgoing{msg}, c.outbox...)
	} else {
		c.outbox = append(c.outbox, msg)
	}
	return nil
}

func (c *Client) outboxClear() {
	c.outbox = nil
}

// outboxNextReady returns the index of the first sendable frame, or -1.
func (c *Client) outboxNextReady(now time.Time) int {
	for i := range c.outbox {
		if !c.outbox[i].due.After(now) {
			return i
		}
	}
	return -1
}
