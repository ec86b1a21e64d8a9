package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skua-io/skua/src/errs"
)

// CloseError carries the close code the server sent when it ended the
// connection.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("gateway closed: %d %s", e.Code, CloseCodeString(e.Code))
}

// Incoming is one delivery from the transport's read pump. A non-nil Err is
// terminal; the channel is closed right after it.
type Incoming struct {
	Data []byte
	Err  error
}

// Transport is the websocket connection as the client sees it. Recv exposes a
// channel so Process can wait on frames with a bounded timeout while all
// protocol state stays on the caller's goroutine.
type Transport interface {
	Dial(ctx context.Context, url string, header http.Header) error
	Recv() <-chan Incoming
	Send(data []byte) error
	Close() error
}

// wsTransport drives one gorilla connection. A single reader goroutine feeds
// recv; it exits on the first read error or when the transport is closed.
type wsTransport struct {
	conn      *websocket.Conn
	recv      chan Incoming
	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport() Transport {
	return &wsTransport{done: make(chan struct{})}
}

func (t *wsTransport) Dial(ctx context.Context, url string, header http.Header) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrTransport, err)
	}
	t.conn = conn
	t.recv = make(chan Incoming, 32)
	go t.readPump()
	return nil
}

func (t *wsTransport) readPump() {
	defer close(t.recv)
	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				t.deliver(Incoming{Err: &CloseError{Code: ce.Code, Text: ce.Text}})
			} else {
				t.deliver(Incoming{Err: fmt.Errorf("%w: %s", errs.ErrTransport, err)})
			}
			return
		}
		if !t.deliver(Incoming{Data: message}) {
			return
		}
	}
}

// deliver hands one read to the client, giving up once the transport is
// closed so an abandoned connection cannot strand the pump.
func (t *wsTransport) deliver(in Incoming) bool {
	select {
	case t.recv <- in:
		return true
	case <-t.done:
		return false
	}
}

func (t *wsTransport) Recv() <-chan Incoming {
	return t.recv
}

func (t *wsTransport) Send(data []byte) error {
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrTransport, err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	if t.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
