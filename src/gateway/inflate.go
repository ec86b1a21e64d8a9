package gateway

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/skua-io/skua/src/errs"
)

// zlib-stream messages end with an empty stored-block marker.
var zlibSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// windowSize is the deflate back-reference window.
const windowSize = 32 * 1024

func hasZlibSuffix(buf []byte) bool {
	return len(buf) >= len(zlibSuffix) && bytes.Equal(buf[len(buf)-len(zlibSuffix):], zlibSuffix)
}

// zlibStream inflates the connection's shared compression context. Each
// message ends on a sync-flush boundary, which is byte aligned, so messages
// decode independently as long as the previous 32K of output is supplied as
// the dictionary. Only a reconnect resets the context.
type zlibStream struct {
	started bool
	window  []byte
}

// Decompress inflates one complete compressed message (suffix included).
func (z *zlibStream) Decompress(message []byte) ([]byte, error) {
	data := message
	if !z.started {
		// The first message opens the stream with a two-byte zlib header.
		if len(data) < 2 || data[0]&0x0f != 8 {
			return nil, fmt.Errorf("%w: bad zlib stream header", errs.ErrFormat)
		}
		if data[1]&0x20 != 0 {
			return nil, fmt.Errorf("%w: preset dictionary not supported", errs.ErrFormat)
		}
		data = data[2:]
		z.started = true
	}

	fr := flate.NewReaderDict(bytes.NewReader(data), z.window)
	out, err := io.ReadAll(fr)
	// The sync-flush marker leaves the stream mid-block; the reader reports
	// that as an unexpected EOF once the message is fully decoded.
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: inflate: %s", errs.ErrFormat, err)
	}

	z.window = append(z.window, out...)
	if len(z.window) > windowSize {
		z.window = append([]byte(nil), z.window[len(z.window)-windowSize:]...)
	}
	return out, nil
}

// Reset discards the shared context so the next message starts a new stream.
func (z *zlibStream) Reset() {
	z.started = false
	z.window = nil
}
