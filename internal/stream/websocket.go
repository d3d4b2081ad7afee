package stream

import (
	"errors"
	"io"

	"github.com/gorilla/websocket"
)

// WebSocketReader presents the messages of a websocket as one continuous
// byte stream, so a Decoder can consume them like an HTTP body. A normal
// close from the peer reads as io.EOF.
type WebSocketReader struct {
	conn *websocket.Conn
	cur  io.Reader
}

// NewWebSocketReader wraps conn.
func NewWebSocketReader(conn *websocket.Conn) *WebSocketReader {
	return &WebSocketReader{conn: conn}
}

func (w *WebSocketReader) Read(p []byte) (int, error) {
	for {
		if w.cur == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			w.cur = r
		}

		n, err := w.cur.Read(p)
		if errors.Is(err, io.EOF) {
			w.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}
